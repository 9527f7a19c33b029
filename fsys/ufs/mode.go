package ufs

import (
	"io/fs"
	"strings"
)

// FileType is the 4-bit type field of an inode mode.
type FileType uint8

const (
	TypeUnused  FileType = 0o00
	TypeFIFO    FileType = 0o01
	TypeChar    FileType = 0o02
	TypeDir     FileType = 0o04
	TypeBlock   FileType = 0o06
	TypeRegular FileType = 0o10
	TypeSymlink FileType = 0o12
	TypeShadow  FileType = 0o13
	TypeSocket  FileType = 0o14
	TypeAttrDir FileType = 0o16
)

var fileTypes = [16]FileType{
	0o01: TypeFIFO,
	0o02: TypeChar,
	0o04: TypeDir,
	0o06: TypeBlock,
	0o10: TypeRegular,
	0o12: TypeSymlink,
	0o13: TypeShadow,
	0o14: TypeSocket,
	0o16: TypeAttrDir,
}

// decodeFileType maps the raw type field; values with no meaning decode as
// TypeUnused.
func decodeFileType(raw uint8) FileType {
	return fileTypes[raw&0xf]
}

// Char returns the type letter used by ls -l.
func (t FileType) Char() byte {
	switch t {
	case TypeFIFO:
		return 'p'
	case TypeChar:
		return 'c'
	case TypeDir:
		return 'd'
	case TypeBlock:
		return 'b'
	case TypeRegular:
		return '-'
	case TypeSymlink:
		return 'l'
	case TypeShadow:
		return 'I'
	case TypeSocket:
		return 's'
	case TypeAttrDir:
		return 'A'
	default:
		return 'X'
	}
}

func (t FileType) String() string {
	switch t {
	case TypeFIFO:
		return "fifo"
	case TypeChar:
		return "char"
	case TypeDir:
		return "dir"
	case TypeBlock:
		return "block"
	case TypeRegular:
		return "regular"
	case TypeSymlink:
		return "symlink"
	case TypeShadow:
		return "shadow"
	case TypeSocket:
		return "socket"
	case TypeAttrDir:
		return "attrdir"
	default:
		return "unused"
	}
}

// IsDir reports whether entries of this type hold directory records.
func (t FileType) IsDir() bool {
	return t == TypeDir || t == TypeAttrDir
}

// Mode is a decoded inode mode word.
type Mode struct {
	Type FileType

	SetUID bool
	SetGID bool
	Sticky bool

	UserRead   bool
	UserWrite  bool
	UserExec   bool
	GroupRead  bool
	GroupWrite bool
	GroupExec  bool
	OtherRead  bool
	OtherWrite bool
	OtherExec  bool
}

// Mode word bits.
const (
	modeOX     = 1 << 0
	modeOW     = 1 << 1
	modeOR     = 1 << 2
	modeGX     = 1 << 3
	modeGW     = 1 << 4
	modeGR     = 1 << 5
	modeUX     = 1 << 6
	modeUW     = 1 << 7
	modeUR     = 1 << 8
	modeSticky = 1 << 9
	modeSGID   = 1 << 10
	modeSUID   = 1 << 11
	modeTypeSh = 12
)

// DecodeMode splits a raw mode word into its fields.
func DecodeMode(m uint16) Mode {
	bit := func(b uint16) bool { return m&b != 0 }
	return Mode{
		Type:       decodeFileType(uint8(m >> modeTypeSh)),
		SetUID:     bit(modeSUID),
		SetGID:     bit(modeSGID),
		Sticky:     bit(modeSticky),
		UserRead:   bit(modeUR),
		UserWrite:  bit(modeUW),
		UserExec:   bit(modeUX),
		GroupRead:  bit(modeGR),
		GroupWrite: bit(modeGW),
		GroupExec:  bit(modeGX),
		OtherRead:  bit(modeOR),
		OtherWrite: bit(modeOW),
		OtherExec:  bit(modeOX),
	}
}

// Encode is the inverse of DecodeMode.
func (m Mode) Encode() uint16 {
	var v uint16
	set := func(ok bool, b uint16) {
		if ok {
			v |= b
		}
	}
	set(m.SetUID, modeSUID)
	set(m.SetGID, modeSGID)
	set(m.Sticky, modeSticky)
	set(m.UserRead, modeUR)
	set(m.UserWrite, modeUW)
	set(m.UserExec, modeUX)
	set(m.GroupRead, modeGR)
	set(m.GroupWrite, modeGW)
	set(m.GroupExec, modeGX)
	set(m.OtherRead, modeOR)
	set(m.OtherWrite, modeOW)
	set(m.OtherExec, modeOX)
	return v | uint16(m.Type&0xf)<<modeTypeSh
}

// Perm returns the nine permission bits.
func (m Mode) Perm() fs.FileMode {
	return fs.FileMode(m.Encode() & 0o777)
}

// FileMode converts m to an io/fs mode.
func (m Mode) FileMode() fs.FileMode {
	mode := m.Perm()
	switch m.Type {
	case TypeDir, TypeAttrDir:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeBlock:
		mode |= fs.ModeDevice
	case TypeChar:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case TypeFIFO:
		mode |= fs.ModeNamedPipe
	case TypeSocket:
		mode |= fs.ModeSocket
	case TypeRegular:
	default:
		mode |= fs.ModeIrregular
	}
	if m.SetUID {
		mode |= fs.ModeSetuid
	}
	if m.SetGID {
		mode |= fs.ModeSetgid
	}
	if m.Sticky {
		mode |= fs.ModeSticky
	}
	return mode
}

// String renders m the way ls -l does, e.g. "drwxr-xr-x" or "-rwsr-xr-t".
func (m Mode) String() string {
	var sb strings.Builder
	alt := func(b bool, t, f byte) {
		if b {
			sb.WriteByte(t)
		} else {
			sb.WriteByte(f)
		}
	}
	exec := func(x, special bool, s, S byte) {
		switch {
		case special:
			alt(x, s, S)
		default:
			alt(x, 'x', '-')
		}
	}
	sb.WriteByte(m.Type.Char())
	alt(m.UserRead, 'r', '-')
	alt(m.UserWrite, 'w', '-')
	exec(m.UserExec, m.SetUID, 's', 'S')
	alt(m.GroupRead, 'r', '-')
	alt(m.GroupWrite, 'w', '-')
	exec(m.GroupExec, m.SetGID, 's', 'S')
	alt(m.OtherRead, 'r', '-')
	alt(m.OtherWrite, 'w', '-')
	exec(m.OtherExec, m.Sticky, 't', 'T')
	return sb.String()
}
