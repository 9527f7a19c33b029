// Package cmd implements the ufscat commands.
package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/lvdlvd/ufscat/fsys"
	"github.com/lvdlvd/ufscat/fsys/ufs"
)

// LsOptions controls ls behavior
type LsOptions struct {
	Long bool // Long format (-l)
	All  bool // Show dot files (-a)
}

// Ls lists the contents of a path in the filesystem.
// If the path is a file, it shows file information.
// If the path is a directory, it lists its contents.
func Ls(filesystem fsys.FS, fsPath string, out io.Writer, opts LsOptions) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(filesystem, fsPath)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return listDirectory(filesystem, fsPath, out, opts)
	}

	return showFileInfo(info, out, opts.Long)
}

// normalizePath turns a user supplied path into an io/fs name.
func normalizePath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}

func listDirectory(filesystem fsys.FS, dirPath string, out io.Writer, opts LsOptions) error {
	entries, err := fs.ReadDir(filesystem, dirPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if !opts.All && strings.HasPrefix(name, ".") {
			continue
		}

		if opts.Long {
			info, err := entry.Info()
			if err != nil {
				fmt.Fprintf(out, "%8s %-10s %3s %5s %5s %12s %s\n", "?", "??????????", "?", "?", "?", "?", name)
				continue
			}
			printLongFormat(info, out)
		} else {
			if entry.IsDir() {
				name += "/"
			}
			fmt.Fprintln(out, name)
		}
	}

	return nil
}

func showFileInfo(info fs.FileInfo, out io.Writer, long bool) error {
	if long {
		printLongFormat(info, out)
	} else {
		fmt.Fprintln(out, info.Name())
	}
	return nil
}

// printLongFormat writes one ls -l line. Inodes from a UFS image also show
// the link count and ownership, and keep the type letters of the on-disk
// format.
func printLongFormat(info fs.FileInfo, out io.Writer) {
	modTime := info.ModTime().UTC().Format("Jan _2 15:04")
	name := info.Name()

	ip, ok := info.Sys().(*ufs.Inode)
	if !ok {
		var inode string
		if fi, ok := info.(fsys.FileInfo); ok {
			inode = fmt.Sprintf("%8d ", fi.Inode())
		}
		fmt.Fprintf(out, "%s%s %12d %s %s\n", inode, info.Mode(), info.Size(), modTime, name)
		return
	}

	if ip.Type() == ufs.TypeSymlink {
		if target, err := ip.Readlink(); err == nil {
			name += " -> " + target
		}
	}
	fmt.Fprintf(out, "%8d %s %3d %5d %5d %12d %s %s\n",
		ip.Ino(), ip.Mode(), ip.Nlink(), ip.UID(), ip.GID(), ip.Size(), modTime, name)
}
