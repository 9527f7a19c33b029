package ufs

import (
	"fmt"
	"io"

	"github.com/lvdlvd/ufscat/fsys"
)

// Read copies file data starting at byte off into buf and returns the
// number of bytes copied. Reads stop at the end of the file; reading at or
// past the end returns 0 and no error. Holes read as zeros.
func (ip *Inode) Read(off uint64, buf []byte) (int, error) {
	if off > MaxOffset {
		return 0, fmt.Errorf("%w: %d", ErrOffsetTooLarge, off)
	}
	if off >= ip.size {
		return 0, nil
	}
	n := min(uint64(len(buf)), ip.size-off)
	fsize := ip.fs.FragSize()

	var nread uint64
	for nread < n {
		fragOff := off % fsize
		m := min(n-nread, fsize-fragOff)
		blk, err := ip.Bmap(off)
		if err != nil {
			return int(nread), err
		}
		dst := buf[nread : nread+m]
		if blk.Hole() {
			clear(dst)
		} else {
			copy(dst, blk.data[fragOff:fragOff+m])
		}
		off += m
		nread += m
	}
	return int(n), nil
}

// ReadAt implements io.ReaderAt over the file contents.
func (ip *Inode) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("ufs: negative offset %d", off)
	}
	n, err := ip.Read(uint64(off), p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the whole file in a fresh buffer.
func (ip *Inode) Bytes() ([]byte, error) {
	if ip.size > MaxOffset+1 {
		return nil, fmt.Errorf("inode %d: %w: size %d", ip.ino, ErrOffsetTooLarge, ip.size)
	}
	buf := make([]byte, ip.size)
	n, err := ip.Read(0, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Readlink returns the target of a symbolic link. Short targets live in the
// address table itself and have no data blocks.
func (ip *Inode) Readlink() (string, error) {
	if ip.Type() != TypeSymlink {
		return "", fmt.Errorf("inode %d: %w", ip.ino, ErrNotSymlink)
	}
	if ip.blocks == 0 && ip.size <= FSLSize {
		return string(ip.raw[diDB : diDB+ip.size]), nil
	}
	if ip.size > MaxPathLen {
		return "", fmt.Errorf("inode %d: %w: symlink target of %d bytes", ip.ino, ErrCorrupt, ip.size)
	}
	b, err := ip.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Extents returns the allocated parts of the file as runs of contiguous
// fragments in the image. Holes are left out.
func (ip *Inode) Extents() ([]fsys.Extent, error) {
	var (
		extents []fsys.Extent
		cur     *fsys.Extent
	)
	fsize := ip.fs.FragSize()
	for off := uint64(0); off < ip.size; {
		blk, next, err := ip.bmap(off)
		if err != nil {
			return nil, err
		}
		if blk.Hole() {
			off = max(next, off+fsize)
			continue
		}
		length := int64(min(fsize, ip.size-off))
		phys := int64(blk.Offset())
		if cur != nil && cur.End() == int64(off) && cur.Physical+cur.Length == phys {
			cur.Length += length
		} else {
			if cur != nil {
				extents = append(extents, *cur)
			}
			cur = &fsys.Extent{Logical: int64(off), Physical: phys, Length: length}
		}
		off += fsize
	}
	if cur != nil {
		extents = append(extents, *cur)
	}
	return extents, nil
}
