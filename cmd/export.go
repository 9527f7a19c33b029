package cmd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"unicode/utf8"

	"golang.org/x/tools/txtar"

	"github.com/lvdlvd/ufscat/fsys"
	"github.com/lvdlvd/ufscat/fsys/ufs"
)

// ExportOptions controls export behavior
type ExportOptions struct {
	Wrap int // Line width for base64 encoded content; 70 if zero
}

// Export writes the tree rooted at fsPath as a txtar archive. Each file
// header carries the path, mode word, ownership and times; content that is
// not plain text is base64 encoded and marked with base64=1. Device nodes,
// FIFOs and sockets are listed without content.
func Export(filesystem fsys.FS, fsPath string, out io.Writer, opts ExportOptions) error {
	fsPath = normalizePath(fsPath)
	wrapAt := opts.Wrap
	if wrapAt <= 0 {
		wrapAt = 70
	}

	var ar txtar.Archive
	err := fs.WalkDir(filesystem, fsPath, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		file := txtar.File{Name: exportHeader(name, info)}
		switch mode := info.Mode(); {
		case mode.IsDir():
		case mode.IsRegular(), mode&fs.ModeSymlink != 0:
			data, err := fs.ReadFile(filesystem, name)
			if err != nil {
				return err
			}
			if needsEncoding(data) {
				file.Name += " base64=1"
				data = []byte(wrap(base64.StdEncoding.EncodeToString(data), wrapAt))
			}
			file.Data = data
		}
		ar.Files = append(ar.Files, file)
		return nil
	})
	if err != nil {
		return err
	}

	_, err = out.Write(txtar.Format(&ar))
	return err
}

func exportHeader(name string, info fs.FileInfo) string {
	if info.IsDir() && name != "." {
		name += "/"
	}
	ip, ok := info.Sys().(*ufs.Inode)
	if !ok {
		return fmt.Sprintf("%s mode=%v mtime=%d", name, info.Mode(), info.ModTime().Unix())
	}
	return fmt.Sprintf("%s mode=%07o uid=%d gid=%d atime=%d mtime=%d",
		name, ip.RawMode(), ip.UID(), ip.GID(), ip.Atime().Unix(), ip.Mtime().Unix())
}

// needsEncoding reports whether data cannot be stored verbatim in a txtar
// file section.
func needsEncoding(data []byte) bool {
	return !utf8.Valid(data) ||
		bytes.HasPrefix(data, []byte("-- ")) ||
		bytes.Contains(data, []byte("\n-- ")) ||
		(len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")))
}

func wrap(text string, width int) string {
	var sb strings.Builder
	for len(text) > width {
		sb.WriteString(text[:width])
		sb.WriteByte('\n')
		text = text[width:]
	}
	sb.WriteString(text)
	sb.WriteByte('\n')
	return sb.String()
}
