package ufs

import (
	"fmt"
	"io"
)

// readImage reads size bytes of r into a fresh buffer.
func readImage(r io.Reader, size int64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}
