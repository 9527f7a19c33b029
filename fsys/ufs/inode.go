package ufs

import (
	"fmt"
	"time"
)

// Offsets of inode fields within the on-disk record.
const (
	diMode     = 0
	diNlink    = 2
	diSUID     = 4
	diSGID     = 6
	diSize     = 8
	diAtime    = 16
	diMtime    = 24
	diCtime    = 32
	diDB       = 40
	diIB       = 88
	diFlags    = 100
	diBlocks   = 104
	diGen      = 108
	diShadow   = 112
	diUID      = 116
	diGID      = 120
	diOeftflag = 124
)

// Inode is a decoded on-disk inode. It refers back to the FS it came from
// and is only valid while that FS is.
type Inode struct {
	fs  *FS
	ino uint32
	raw []byte

	mode     uint16
	nlink    uint16
	suid     uint16
	sgid     uint16
	size     uint64
	atime    time.Time
	mtime    time.Time
	ctime    time.Time
	db       [NDADDR]uint32
	ib       [NIADDR]uint32
	flags    uint32
	blocks   uint32
	gen      uint32
	shadow   uint32
	uid      uint32
	gid      uint32
	oeftflag uint32
}

// Inode decodes inode ino.
func (f *FS) Inode(ino uint32) (*Inode, error) {
	if ino == 0 || uint64(ino) >= f.sb.MaxInodes() {
		return nil, fmt.Errorf("%w: %d", ErrInodeRange, ino)
	}
	raw, err := f.BytesAt(f.sb.InodeOffset(ino), InodeSize)
	if err != nil {
		return nil, fmt.Errorf("reading inode %d: %w", ino, err)
	}
	return decodeInode(f, ino, raw), nil
}

func decodeInode(f *FS, ino uint32, raw []byte) *Inode {
	order := f.sb.order
	u16 := func(off int) uint16 { return order.Uint16(raw[off : off+2]) }
	u32 := func(off int) uint32 { return order.Uint32(raw[off : off+4]) }
	timeval := func(off int) time.Time {
		return time.Unix(int64(int32(u32(off))), int64(int32(u32(off+4)))*int64(time.Microsecond))
	}

	ip := &Inode{
		fs:       f,
		ino:      ino,
		raw:      raw,
		mode:     u16(diMode),
		nlink:    u16(diNlink),
		suid:     u16(diSUID),
		sgid:     u16(diSGID),
		size:     order.Uint64(raw[diSize : diSize+8]),
		atime:    timeval(diAtime),
		mtime:    timeval(diMtime),
		ctime:    timeval(diCtime),
		flags:    u32(diFlags),
		blocks:   u32(diBlocks),
		gen:      u32(diGen),
		shadow:   u32(diShadow),
		uid:      u32(diUID),
		gid:      u32(diGID),
		oeftflag: u32(diOeftflag),
	}
	for i := range ip.db {
		ip.db[i] = u32(diDB + 4*i)
	}
	for i := range ip.ib {
		ip.ib[i] = u32(diIB + 4*i)
	}
	return ip
}

// Ino returns the inode number.
func (ip *Inode) Ino() uint32 { return ip.ino }

// FS returns the filesystem the inode belongs to.
func (ip *Inode) FS() *FS { return ip.fs }

// Mode returns the decoded mode word.
func (ip *Inode) Mode() Mode { return DecodeMode(ip.mode) }

// RawMode returns the undecoded mode word.
func (ip *Inode) RawMode() uint16 { return ip.mode }

// Type returns the file type.
func (ip *Inode) Type() FileType { return decodeFileType(uint8(ip.mode >> modeTypeSh)) }

// IsDir reports whether the inode holds directory records.
func (ip *Inode) IsDir() bool { return ip.Type().IsDir() }

// Size returns the file size in bytes.
func (ip *Inode) Size() uint64 { return ip.size }

// Nlink returns the link count.
func (ip *Inode) Nlink() uint16 { return ip.nlink }

// UID returns the owner's user id.
func (ip *Inode) UID() uint32 { return ip.uid }

// GID returns the owner's group id.
func (ip *Inode) GID() uint32 { return ip.gid }

// ShortUID returns the 16-bit user id kept for old binaries.
func (ip *Inode) ShortUID() uint16 { return ip.suid }

// ShortGID returns the 16-bit group id kept for old binaries.
func (ip *Inode) ShortGID() uint16 { return ip.sgid }

// Atime returns the last access time.
func (ip *Inode) Atime() time.Time { return ip.atime }

// Mtime returns the last modification time.
func (ip *Inode) Mtime() time.Time { return ip.mtime }

// Ctime returns the last inode change time.
func (ip *Inode) Ctime() time.Time { return ip.ctime }

// Direct returns direct block address i.
func (ip *Inode) Direct(i int) uint32 { return ip.db[i] }

// Indirect returns the (i+1)-fold indirect block address.
func (ip *Inode) Indirect(i int) uint32 { return ip.ib[i] }

// Flags returns the inode flags word.
func (ip *Inode) Flags() uint32 { return ip.flags }

// Blocks returns the number of 512-byte device blocks held by the file.
func (ip *Inode) Blocks() uint32 { return ip.blocks }

// Generation returns the generation number.
func (ip *Inode) Generation() uint32 { return ip.gen }

// Shadow returns the shadow (ACL) inode number, or 0.
func (ip *Inode) Shadow() uint32 { return ip.shadow }

// AttrDir returns the extended attribute directory inode number, or 0.
func (ip *Inode) AttrDir() uint32 { return ip.oeftflag }

func (ip *Inode) String() string {
	return fmt.Sprintf("#%d %v nlink=%d uid=%d gid=%d size=%d", ip.ino, ip.Mode(), ip.nlink, ip.uid, ip.gid, ip.size)
}
