package ufs

import (
	"bytes"
	"fmt"
	"io/fs"
)

// Namei resolves a slash-separated path to an inode, starting from the
// root directory. Empty components are skipped, so "", "/" and "//" all
// name the root. Every component but the last must be a directory.
func (f *FS) Namei(path []byte) (*Inode, error) {
	ip, err := f.Root()
	if err != nil {
		return nil, err
	}
	for _, name := range bytes.Split(path, []byte{'/'}) {
		if len(name) == 0 {
			continue
		}
		dir, err := NewDirectory(ip)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		e, err := dir.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if ip, err = f.Inode(e.Ino()); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return ip, nil
}

// Lookup is Namei for io/fs style names: "." is the root and names never
// start with a slash.
func (f *FS) Lookup(name string) (*Inode, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	if name == "." {
		return f.Root()
	}
	return f.Namei([]byte(name))
}
