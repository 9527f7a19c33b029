package ufs

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// FS is a read-only view of a UFS image held in memory.
type FS struct {
	data    []byte
	sb      *Superblock
	log     logrus.FieldLogger
	release func() error
}

type options struct {
	log    logrus.FieldLogger
	noMmap bool
}

// Option configures New and OpenImage.
type Option func(*options)

// WithLogger directs diagnostics about damaged structures to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithoutMmap makes OpenImage read the image into memory instead of mapping it.
func WithoutMmap() Option {
	return func(o *options) { o.noMmap = true }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	return o
}

// New returns a view of the image b. The buffer is borrowed, never
// modified, and must stay unchanged for as long as the FS or anything
// obtained from it is in use.
func New(b []byte, opts ...Option) (*FS, error) {
	o := buildOptions(opts)
	sb, err := DecodeSuperblock(b)
	if err != nil {
		return nil, err
	}
	return &FS{
		data: b,
		sb:   sb,
		log:  o.log.WithField("fs", "ufs"),
	}, nil
}

// Superblock returns the decoded superblock.
func (f *FS) Superblock() *Superblock { return f.sb }

// Size returns the size of the image in bytes.
func (f *FS) Size() int64 { return int64(len(f.data)) }

// FragSize returns the fragment size in bytes.
func (f *FS) FragSize() uint64 { return uint64(f.sb.Fsize) }

// BlockSize returns the block size in bytes.
func (f *FS) BlockSize() uint64 { return uint64(f.sb.Bsize) }

// IndirSpan returns the number of block addresses held by one indirect block.
func (f *FS) IndirSpan() uint64 { return uint64(f.sb.Nindir) }

// Groups returns the number of cylinder groups.
func (f *FS) Groups() uint32 { return f.sb.Ncg }

// Type implements fsys.FS.
func (f *FS) Type() string { return "ufs" }

// BaseReader returns the raw image as an io.ReaderAt. Extents returned by
// FileExtents are offsets into it.
func (f *FS) BaseReader() io.ReaderAt { return imageReader(f.data) }

// Close releases the image mapping, if any. Nothing obtained from f may be
// used afterwards.
func (f *FS) Close() error {
	if f.release == nil {
		return nil
	}
	release := f.release
	f.release = nil
	return release()
}

// BytesAt returns the bytes [off, off+n) of the image without copying.
func (f *FS) BytesAt(off, n uint64) ([]byte, error) {
	size := uint64(len(f.data))
	end := off + n
	if end < off || end > size {
		f.log.WithFields(logrus.Fields{"off": off, "len": n, "size": size}).Warn("byte range outside image")
		return nil, fmt.Errorf("%w: [%#x, %#x) of %#x", ErrOutOfRange, off, end, size)
	}
	return f.data[off:end:end], nil
}

// Root returns the root directory inode.
func (f *FS) Root() (*Inode, error) {
	return f.Inode(RootIno)
}

// imageReader adapts the image buffer to io.ReaderAt.
type imageReader []byte

func (r imageReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("ufs: negative offset %d", off)
	}
	if off >= int64(len(r)) {
		return 0, io.EOF
	}
	n := copy(p, r[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
