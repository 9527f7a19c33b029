package ufs

import (
	"bytes"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"
)

// Directory is an inode known to hold directory records.
type Directory struct {
	ip *Inode
}

// NewDirectory wraps ip, which must be a directory.
func NewDirectory(ip *Inode) (*Directory, error) {
	if !ip.IsDir() {
		return nil, fmt.Errorf("inode %d: %w", ip.ino, ErrNotDir)
	}
	return &Directory{ip: ip}, nil
}

// Inode returns the directory's inode.
func (d *Directory) Inode() *Inode { return d.ip }

// Iter returns an iterator positioned at the first record.
func (d *Directory) Iter() *DirIter {
	return &DirIter{ip: d.ip}
}

// Lookup returns the first live entry called name.
func (d *Directory) Lookup(name []byte) (DirEntry, error) {
	it := d.Iter()
	for it.Next() {
		e := it.Entry()
		if e.ino != 0 && bytes.Equal(e.Name(), name) {
			return e, nil
		}
	}
	return DirEntry{}, fmt.Errorf("%q: %w", name, fs.ErrNotExist)
}

// DirEntry is one directory record.
type DirEntry struct {
	ino     uint32
	reclen  uint16
	namelen uint16
	name    []byte
	off     uint64
}

// Ino returns the inode number the entry names; 0 marks a free slot.
func (e DirEntry) Ino() uint32 { return e.ino }

// Reclen returns the record length, including any slack left behind by
// deleted entries.
func (e DirEntry) Reclen() uint16 { return e.reclen }

// Namelen returns the name length as recorded on disk.
func (e DirEntry) Namelen() uint16 { return e.namelen }

// Name returns the entry name, cut at the first NUL.
func (e DirEntry) Name() []byte { return e.name }

// Offset returns the byte offset of the record within the directory.
func (e DirEntry) Offset() uint64 { return e.off }

// DirSize returns the space the entry actually needs: the prefix plus the
// NUL-terminated name rounded up to 4 bytes.
func (e DirEntry) DirSize() uint16 {
	return DirSize(e.namelen)
}

// DirSize returns the minimal record length for a name of namelen bytes.
func DirSize(namelen uint16) uint16 {
	return DirPrefixSize + (namelen+1+3)&^3
}

func (e DirEntry) String() string {
	return fmt.Sprintf("%q -> #%d (reclen %d)", e.name, e.ino, e.reclen)
}

// DirIter walks the records of a directory once, in on-disk order. A
// truncated or inconsistent record ends the walk.
type DirIter struct {
	ip    *Inode
	pos   uint64
	entry DirEntry
	done  bool
}

// Next advances to the next record and reports whether there was one.
func (it *DirIter) Next() bool {
	if it.done {
		return false
	}
	e, ok := it.next()
	if !ok {
		it.done = true
		it.entry = DirEntry{}
		return false
	}
	it.entry = e
	return true
}

// Entry returns the record Next stopped at.
func (it *DirIter) Entry() DirEntry { return it.entry }

func (it *DirIter) next() (DirEntry, bool) {
	log := it.ip.fs.log.WithFields(logrus.Fields{"dir": it.ip.ino, "pos": it.pos})

	var prefix [DirPrefixSize]byte
	n, err := it.ip.Read(it.pos, prefix[:])
	if err != nil {
		log.WithError(err).Warn("reading directory record")
		return DirEntry{}, false
	}
	if n < DirPrefixSize {
		return DirEntry{}, false
	}

	order := it.ip.fs.sb.order
	ino := order.Uint32(prefix[0:4])
	reclen := order.Uint16(prefix[4:6])
	namelen := order.Uint16(prefix[6:8])
	if reclen == 0 {
		return DirEntry{}, false
	}
	if reclen < DirPrefixSize || reclen-DirPrefixSize < namelen || namelen > MaxNameLen {
		log.WithFields(logrus.Fields{"reclen": reclen, "namelen": namelen}).Debug("malformed directory record")
		return DirEntry{}, false
	}

	name := make([]byte, namelen)
	n, err = it.ip.Read(it.pos+DirPrefixSize, name)
	if err != nil || n != int(namelen) {
		log.WithError(err).Debug("short directory name")
		return DirEntry{}, false
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	e := DirEntry{ino: ino, reclen: reclen, namelen: namelen, name: name, off: it.pos}
	it.pos += uint64(reclen)
	return e, true
}
