package cmd

import (
	"testing/fstest"
	"time"
)

var testTime = time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)

// memFS adapts fstest.MapFS to fsys.FS.
type memFS struct {
	fstest.MapFS
}

func (memFS) Type() string { return "mem" }
func (memFS) Close() error { return nil }

func newMemFS() memFS {
	return memFS{fstest.MapFS{
		"a/b":     {Data: []byte("b\n"), Mode: 0o644, ModTime: testTime},
		"hello":   {Data: []byte("hello, world\n"), Mode: 0o644, ModTime: testTime},
		".hidden": {Data: []byte("secret\n"), Mode: 0o600, ModTime: testTime},
	}}
}
