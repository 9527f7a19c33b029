package ufs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/lvdlvd/ufscat/fsys"
	"github.com/sirupsen/logrus"
)

var (
	_ fsys.FS           = (*FS)(nil)
	_ fsys.ExtentMapper = (*FS)(nil)
	_ fsys.FileInfo     = (*fileInfo)(nil)
)

// fs.FS implementation

// Open implements fs.FS. Directories open as fs.ReadDirFile; everything
// else opens as a file whose content is the inode's data, or the target
// for a symbolic link.
func (f *FS) Open(name string) (fs.File, error) {
	ip, err := f.Lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	info, err := newFileInfo(ip, path.Base(name))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if ip.IsDir() {
		return &dir{ip: ip, info: info}, nil
	}

	var r io.ReaderAt = ip
	if ip.Type() == TypeSymlink {
		r = strings.NewReader(info.target)
	}
	return &file{info: info, r: r}, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDir}
	}
	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
	return entries, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

// FileExtents implements fsys.ExtentMapper for regular files.
func (f *FS) FileExtents(name string) ([]fsys.Extent, error) {
	ip, err := f.Lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "extents", Path: name, Err: err}
	}
	if ip.Type() != TypeRegular {
		return nil, &fs.PathError{Op: "extents", Path: name, Err: fmt.Errorf("%v is not a regular file", ip.Type())}
	}
	return ip.Extents()
}

// file implements fs.File, io.ReaderAt and io.Seeker.
type file struct {
	info   *fileInfo
	r      io.ReaderAt
	offset int64
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *file) Read(b []byte) (int, error) {
	size := f.info.size
	if f.offset >= size {
		return 0, io.EOF
	}
	if len(b) == 0 {
		return 0, nil
	}
	n, err := f.r.ReadAt(b[:min(int64(len(b)), size-f.offset)], f.offset)
	f.offset += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *file) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &fs.PathError{Op: "readat", Path: f.info.name, Err: fs.ErrInvalid}
	}
	return f.r.ReadAt(b, off)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += f.info.size
	default:
		return 0, &fs.PathError{Op: "seek", Path: f.info.name, Err: fs.ErrInvalid}
	}
	if offset < 0 {
		return 0, &fs.PathError{Op: "seek", Path: f.info.name, Err: fs.ErrInvalid}
	}
	f.offset = offset
	return offset, nil
}

func (f *file) Close() error { return nil }

// dir implements fs.ReadDirFile.
type dir struct {
	ip      *Inode
	info    *fileInfo
	entries []fs.DirEntry
	loaded  bool
	offset  int
}

func (d *dir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *dir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errors.New("is a directory")}
}

func (d *dir) Close() error { return nil }

func (d *dir) load() error {
	ufsDir, err := NewDirectory(d.ip)
	if err != nil {
		return err
	}
	f := d.ip.fs
	it := ufsDir.Iter()
	for it.Next() {
		e := it.Entry()
		if e.Ino() == 0 || bytes.Equal(e.Name(), []byte(".")) || bytes.Equal(e.Name(), []byte("..")) {
			continue
		}
		ip, err := f.Inode(e.Ino())
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{"dir": d.ip.ino, "name": string(e.Name())}).Warn("skipping entry")
			continue
		}
		d.entries = append(d.entries, &dirEntry{ip: ip, name: string(e.Name())})
	}
	d.loaded = true
	return nil
}

func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		if err := d.load(); err != nil {
			return nil, &fs.PathError{Op: "readdir", Path: d.info.name, Err: err}
		}
	}

	if n <= 0 {
		entries := d.entries[d.offset:]
		d.offset = len(d.entries)
		return entries, nil
	}
	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}
	end := min(d.offset+n, len(d.entries))
	entries := d.entries[d.offset:end]
	d.offset = end
	return entries, nil
}

// dirEntry implements fs.DirEntry.
type dirEntry struct {
	ip   *Inode
	name string
}

func (e *dirEntry) Name() string               { return e.name }
func (e *dirEntry) IsDir() bool                { return e.ip.IsDir() }
func (e *dirEntry) Type() fs.FileMode          { return e.ip.Mode().FileMode().Type() }
func (e *dirEntry) Info() (fs.FileInfo, error) { return newFileInfo(e.ip, e.name) }

// fileInfo implements fs.FileInfo and fsys.FileInfo.
type fileInfo struct {
	ip     *Inode
	name   string
	size   int64
	target string
}

// newFileInfo reports a symbolic link with the size of its target. Sizes
// past MaxOffset+1 are rejected.
func newFileInfo(ip *Inode, name string) (*fileInfo, error) {
	if ip.Type() == TypeSymlink {
		target, err := ip.Readlink()
		if err != nil {
			return nil, err
		}
		return &fileInfo{ip: ip, name: name, size: int64(len(target)), target: target}, nil
	}
	if ip.Size() > MaxOffset+1 {
		return nil, fmt.Errorf("inode %d: %w: size %d", ip.Ino(), ErrOffsetTooLarge, ip.Size())
	}
	return &fileInfo{ip: ip, name: name, size: int64(ip.Size())}, nil
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.size }
func (i *fileInfo) Mode() fs.FileMode  { return i.ip.Mode().FileMode() }
func (i *fileInfo) ModTime() time.Time { return i.ip.Mtime() }
func (i *fileInfo) IsDir() bool        { return i.ip.IsDir() }
func (i *fileInfo) Sys() any           { return i.ip }
func (i *fileInfo) Inode() uint64      { return uint64(i.ip.Ino()) }
