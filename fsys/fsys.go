// Package fsys defines the read-only filesystem interfaces shared by the
// image decoders and the commands built on them.
package fsys

import (
	"fmt"
	"io"
	"io/fs"
	"slices"
	"sort"
)

// Extent maps a run of file bytes to the image bytes that hold them.
type Extent struct {
	Logical  int64 // Offset within the file
	Physical int64 // Offset within the image
	Length   int64 // Length of this extent
}

// End returns the first logical offset past the extent.
func (e Extent) End() int64 { return e.Logical + e.Length }

// FS is a read-only filesystem opened from a disk image.
type FS interface {
	fs.FS
	fs.ReadDirFS
	fs.StatFS

	// Type returns the filesystem type name, e.g. "ufs".
	Type() string

	// Close releases any resources held by the filesystem.
	Close() error
}

// ExtentMapper is an optional interface for filesystems that can report
// where file data lives in the image.
type ExtentMapper interface {
	// FileExtents returns the extents of a regular file in ascending
	// logical order. Unallocated ranges are not covered by any extent.
	FileExtents(path string) ([]Extent, error)
}

// FileInfo is fs.FileInfo plus the inode number.
type FileInfo interface {
	fs.FileInfo

	// Inode returns the inode number.
	Inode() uint64
}

// ExtentReaderAt reads a file through its extent list without loading it
// into memory. Bytes not covered by an extent read as zeros.
type ExtentReaderAt struct {
	r       io.ReaderAt
	extents []Extent
	size    int64
}

// NewExtentReaderAt returns a reader for a file of the given size whose
// data lives in r at the given extents.
func NewExtentReaderAt(r io.ReaderAt, extents []Extent, size int64) *ExtentReaderAt {
	sorted := slices.Clone(extents)
	slices.SortFunc(sorted, func(a, b Extent) int {
		switch {
		case a.Logical < b.Logical:
			return -1
		case a.Logical > b.Logical:
			return 1
		}
		return 0
	})
	return &ExtentReaderAt{r: r, extents: sorted, size: size}
}

// Extents returns the flattened extent list.
func (e *ExtentReaderAt) Extents() []Extent {
	return e.extents
}

// ReadAt implements io.ReaderAt.
func (e *ExtentReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= e.size {
		return 0, io.EOF
	}
	short := false
	if off+int64(len(p)) > e.size {
		p = p[:e.size-off]
		short = true
	}

	var total int
	for total < len(p) {
		ext, ok := findExtent(e.extents, off)
		if !ok {
			end := min(nextExtentStart(e.extents, off, e.size), off+int64(len(p)-total))
			clear(p[total : total+int(end-off)])
			total += int(end - off)
			off = end
			continue
		}
		skip := off - ext.Logical
		n := int(min(ext.Length-skip, int64(len(p)-total)))
		nr, err := e.r.ReadAt(p[total:total+n], ext.Physical+skip)
		total += nr
		off += int64(nr)
		if nr < n {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return total, err
		}
	}
	if short {
		return total, io.EOF
	}
	return total, nil
}

// findExtent returns the extent of the sorted list that covers off.
func findExtent(extents []Extent, off int64) (Extent, bool) {
	i := sort.Search(len(extents), func(i int) bool { return extents[i].End() > off })
	if i < len(extents) && extents[i].Logical <= off {
		return extents[i], true
	}
	return Extent{}, false
}

// nextExtentStart returns the start of the first extent beginning after
// off, or def if there is none.
func nextExtentStart(extents []Extent, off, def int64) int64 {
	i := sort.Search(len(extents), func(i int) bool { return extents[i].Logical > off })
	if i < len(extents) {
		return extents[i].Logical
	}
	return def
}
