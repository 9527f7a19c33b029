//go:build unix

package ufs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenImage maps the image file at path read-only and returns a view of it.
// If mapping is disabled or fails, the image is read into memory instead.
// The returned FS must be closed to release the mapping.
func OpenImage(path string, opts ...Option) (*FS, error) {
	o := buildOptions(opts)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	// The mapping outlives the descriptor.
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}

	var (
		data    []byte
		release func() error
	)
	if !o.noMmap && info.Size() > 0 {
		mapped, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			o.log.WithError(err).WithField("image", path).Warn("mmap failed, reading image into memory")
		} else {
			data = mapped
			release = func() error { return unix.Munmap(mapped) }
		}
	}
	if data == nil {
		if data, err = readImage(file, info.Size()); err != nil {
			return nil, err
		}
	}

	f, err := New(data, opts...)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	f.release = release
	return f, nil
}
