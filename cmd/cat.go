package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lvdlvd/ufscat/fsys"
	"github.com/lvdlvd/ufscat/fsys/ufs"
)

// Cat copies the contents of a file to the given writer.
// When the filesystem supports extent mapping, it streams directly
// from the underlying image without loading the file into memory.
func Cat(filesystem fsys.FS, fsPath string, out io.Writer) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(filesystem, fsPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", fsPath)
	}

	fileSize := info.Size()

	// Try extent-based streaming first
	if em, ok := filesystem.(fsys.ExtentMapper); ok {
		if br, ok := filesystem.(interface{ BaseReader() io.ReaderAt }); ok {
			extents, err := em.FileExtents(fsPath)
			if err == nil && len(extents) > 0 {
				reader := fsys.NewExtentReaderAt(br.BaseReader(), extents, fileSize)
				return streamFromReaderAt(reader, fileSize, out)
			}
		}
	}

	// Fall back to standard file reading
	file, err := filesystem.Open(fsPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(out, file)
	return err
}

// streamFromReaderAt copies data from a ReaderAt to a Writer in chunks
func streamFromReaderAt(r io.ReaderAt, size int64, out io.Writer) error {
	const bufSize = 64 * 1024
	buf := make([]byte, bufSize)

	for offset := int64(0); offset < size; {
		n, err := r.ReadAt(buf[:min(bufSize, size-offset)], offset)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			offset += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// Stat shows detailed information about files or directories. The paths
// are resolved concurrently; output follows the order of paths. Paths that
// cannot be resolved are reported together after the others are printed.
func Stat(filesystem fsys.FS, paths []string, out io.Writer) error {
	infos := make([]fs.FileInfo, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			infos[i], errs[i] = fs.Stat(filesystem, normalizePath(p))
			return nil
		})
	}
	g.Wait()

	sep := ""
	for i, info := range infos {
		if info == nil {
			continue
		}
		fmt.Fprint(out, sep)
		printStat(paths[i], info, out)
		sep = "\n"
	}
	return errors.Join(errs...)
}

func printStat(name string, info fs.FileInfo, out io.Writer) {
	fmt.Fprintf(out, "  File: %s\n", name)
	fmt.Fprintf(out, "  Size: %d\n", info.Size())
	fmt.Fprintf(out, "  Mode: %s\n", info.Mode())

	ip, ok := info.Sys().(*ufs.Inode)
	if !ok {
		fmt.Fprintf(out, "ModTime: %s\n", info.ModTime())
		if fi, ok := info.(fsys.FileInfo); ok {
			fmt.Fprintf(out, " Inode: %d\n", fi.Inode())
		}
		return
	}

	fmt.Fprintf(out, "  Type: %s\n", ip.Type())
	fmt.Fprintf(out, " Inode: %d  Links: %d  Generation: %d\n", ip.Ino(), ip.Nlink(), ip.Generation())
	fmt.Fprintf(out, "Access: (%04o/%s)  Uid: %d  Gid: %d\n", ip.RawMode()&0o7777, ip.Mode(), ip.UID(), ip.GID())
	fmt.Fprintf(out, "Blocks: %d  Flags: %#x\n", ip.Blocks(), ip.Flags())
	if ip.Type() == ufs.TypeSymlink {
		if target, err := ip.Readlink(); err == nil {
			fmt.Fprintf(out, "Target: %s\n", target)
		}
	}
	if ip.Shadow() != 0 {
		fmt.Fprintf(out, "Shadow: %d\n", ip.Shadow())
	}
	if ip.AttrDir() != 0 {
		fmt.Fprintf(out, "Xattrs: %d\n", ip.AttrDir())
	}
	fmt.Fprintf(out, "Access: %s\n", ip.Atime().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(out, "Modify: %s\n", ip.Mtime().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(out, "Change: %s\n", ip.Ctime().UTC().Format(time.RFC3339Nano))
}
