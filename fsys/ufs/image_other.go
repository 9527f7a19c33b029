//go:build !unix

package ufs

import (
	"fmt"
	"os"
)

// OpenImage reads the image file at path into memory and returns a view of
// it.
func OpenImage(path string, opts ...Option) (*FS, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	data, err := readImage(file, info.Size())
	if err != nil {
		return nil, err
	}
	return New(data, opts...)
}
