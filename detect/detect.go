// Package detect identifies UFS images before they are opened.
package detect

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Type represents an image type.
type Type int

const (
	Unknown Type = iota
	UFS          // UFS1, little-endian (x86 Solaris and illumos)
	UFSBigEndian // UFS1, big-endian (SPARC Solaris)
	UFS2         // FreeBSD UFS2; recognized but not supported
)

const (
	ufs1SuperblockOffset = 8192
	ufs2SuperblockOffset = 65536
	magicOffset          = 1372

	ufs1Magic = 0x011954
	ufs2Magic = 0x19540119
)

func (t Type) String() string {
	switch t {
	case UFS:
		return "ufs"
	case UFSBigEndian:
		return "ufs (big-endian)"
	case UFS2:
		return "ufs2"
	default:
		return "unknown"
	}
}

// IsSupported reports whether images of this type can be opened.
func (t Type) IsSupported() bool {
	return t == UFS || t == UFSBigEndian
}

// ByteOrder returns the byte order of the image, or nil if unknown.
func (t Type) ByteOrder() binary.ByteOrder {
	switch t {
	case UFS, UFS2:
		return binary.LittleEndian
	case UFSBigEndian:
		return binary.BigEndian
	default:
		return nil
	}
}

// Detect identifies the image type by looking for the superblock magic
// number at each known superblock location, in both byte orders.
func Detect(r io.ReaderAt) (Type, error) {
	if t, err := probe(r, ufs1SuperblockOffset+magicOffset, ufs1Magic, UFS, UFSBigEndian); t != Unknown || err != nil {
		return t, err
	}
	return probe(r, ufs2SuperblockOffset+magicOffset, ufs2Magic, UFS2, UFS2)
}

func probe(r io.ReaderAt, off int64, magic uint32, le, be Type) (Type, error) {
	var b [4]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		if errors.Is(err, io.EOF) {
			return Unknown, nil
		}
		return Unknown, fmt.Errorf("reading superblock magic: %w", err)
	}
	switch {
	case binary.LittleEndian.Uint32(b[:]) == magic:
		return le, nil
	case binary.BigEndian.Uint32(b[:]) == magic:
		return be, nil
	}
	return Unknown, nil
}
