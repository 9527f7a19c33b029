package ufs

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entry struct {
	Ino    uint32
	Reclen uint16
	Name   string
}

func collect(t *testing.T, ip *Inode) []entry {
	t.Helper()
	d, err := NewDirectory(ip)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	var got []entry
	for it := d.Iter(); it.Next(); {
		e := it.Entry()
		got = append(got, entry{e.Ino(), e.Reclen(), string(e.Name())})
	}
	return got
}

// rawDir stores b as the content of directory inode 9.
func rawDir(t *testing.T, b []byte, size uint64) *Inode {
	t.Helper()
	im := newTestImage(binary.LittleEndian)
	addr := im.alloc()
	copy(im.block(addr), b)
	im.putInode(9, testInode{
		mode: uint16(TypeDir)<<modeTypeSh | 0o755,
		size: size,
		db:   [NDADDR]uint32{addr},
	})
	ip, err := im.fs(t).Inode(9)
	if err != nil {
		t.Fatalf("Inode() error = %v", err)
	}
	return ip
}

func TestDirIter(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			ip, err := newTreeImage(order).fs(t).Root()
			if err != nil {
				t.Fatalf("Root() error = %v", err)
			}
			want := []entry{
				{inoRoot, 12, "."},
				{inoRoot, 12, ".."},
				{inoA, 12, "a"},
				{inoHello, 16, "hello"},
				{inoEmpty, 16, "empty"},
				{inoLink, 512 - 68, "lnk"},
			}
			if diff := cmp.Diff(want, collect(t, ip)); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirIterMalformed(t *testing.T) {
	le := binary.LittleEndian
	record := func(ino uint32, reclen, namelen uint16, name string) []byte {
		b := make([]byte, 8+len(name))
		le.PutUint32(b[0:], ino)
		le.PutUint16(b[4:], reclen)
		le.PutUint16(b[6:], namelen)
		copy(b[8:], name)
		return b
	}
	cat := func(bs ...[]byte) []byte {
		var out []byte
		for _, b := range bs {
			out = append(out, b...)
		}
		return out
	}

	tests := []struct {
		name string
		data []byte
		size uint64
		want []entry
	}{
		{
			name: "one record then zeros",
			data: record(5, 12, 3, "foo\x00"),
			size: 512,
			want: []entry{{5, 12, "foo"}},
		},
		{
			name: "zero reclen",
			data: cat(record(5, 0, 3, "foo\x00"), record(6, 12, 3, "bar\x00")),
			size: 512,
		},
		{
			name: "reclen shorter than prefix",
			data: record(5, 4, 0, ""),
			size: 512,
		},
		{
			name: "name longer than record",
			data: cat(record(5, 12, 3, "foo\x00"), record(6, 12, 5, "quux\x00")),
			size: 512,
			want: []entry{{5, 12, "foo"}},
		},
		{
			name: "name longer than MaxNameLen",
			data: record(5, 300, 256, ""),
			size: 512,
		},
		{
			name: "truncated prefix",
			data: cat(record(5, 12, 3, "foo\x00"), record(6, 12, 3, "bar\x00")),
			size: 16,
			want: []entry{{5, 12, "foo"}},
		},
		{
			name: "truncated name",
			data: cat(record(5, 12, 3, "foo\x00"), record(6, 20, 10, "0123456789")),
			size: 24,
			want: []entry{{5, 12, "foo"}},
		},
		{
			name: "name cut at NUL",
			data: record(5, 16, 6, "ab\x00cd\x00\x00\x00"),
			size: 16,
			want: []entry{{5, 16, "ab"}},
		},
		{
			name: "free slot",
			data: cat(record(0, 12, 3, "old\x00"), record(7, 500, 3, "new\x00")),
			size: 512,
			want: []entry{{0, 12, "old"}, {7, 500, "new"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, rawDir(t, tt.data, tt.size))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirIterExhausted(t *testing.T) {
	ip, err := newTreeImage(binary.LittleEndian).fs(t).Inode(inoA)
	if err != nil {
		t.Fatalf("Inode() error = %v", err)
	}
	d, err := NewDirectory(ip)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	it := d.Iter()
	for it.Next() {
	}
	if it.Next() {
		t.Errorf("Next() = true after the end")
	}
	if got := it.Entry(); got.Ino() != 0 || got.Name() != nil {
		t.Errorf("Entry() after the end = %v, want zero", got)
	}
}

func TestNewDirectoryNotDir(t *testing.T) {
	ip, err := newTreeImage(binary.LittleEndian).fs(t).Inode(inoHello)
	if err != nil {
		t.Fatalf("Inode() error = %v", err)
	}
	if _, err := NewDirectory(ip); !errors.Is(err, ErrNotDir) {
		t.Errorf("NewDirectory() error = %v, want %v", err, ErrNotDir)
	}
}

func TestDirectoryLookup(t *testing.T) {
	ip := rawDir(t, func() []byte {
		im := newTestImage(binary.LittleEndian)
		b := make([]byte, 512)
		n := im.putDirent(b, 0, "gone", 0)
		im.putDirent(b[n:], 9, "gone", 512-n)
		return b
	}(), 512)
	d, err := NewDirectory(ip)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	e, err := d.Lookup([]byte("gone"))
	if err != nil || e.Ino() != 9 {
		t.Errorf("Lookup(gone) = %v, %v; want inode 9", e, err)
	}
	if _, err := d.Lookup([]byte("missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Lookup(missing) error = %v, want %v", err, fs.ErrNotExist)
	}
}

func TestDirSize(t *testing.T) {
	tests := []struct {
		namelen uint16
		want    uint16
	}{
		{0, 12},
		{1, 12},
		{3, 12},
		{4, 16},
		{7, 16},
		{8, 20},
		{255, 264},
	}
	for _, tt := range tests {
		if got := DirSize(tt.namelen); got != tt.want {
			t.Errorf("DirSize(%d) = %d, want %d", tt.namelen, got, tt.want)
		}
		if tt.want%4 != 0 || tt.want < DirPrefixSize+tt.namelen+1 {
			t.Errorf("DirSize(%d) = %d does not hold a terminated name", tt.namelen, tt.want)
		}
	}
}

// A record written with the minimal length reads back with that length.
// The length counts the terminating NUL, so a 3-byte name fits in 12 bytes
// and a 4-byte name needs 16.
func TestDirSizeRoundTrip(t *testing.T) {
	tests := []struct {
		namelen uint16
		reclen  uint16
	}{
		{1, 12},
		{2, 12},
		{3, 12},
		{4, 16},
		{5, 16},
		{7, 16},
		{8, 20},
		{11, 20},
		{12, 24},
		{254, 264},
		{255, 264},
	}
	for _, tt := range tests {
		name := make([]byte, tt.namelen)
		for i := range name {
			name[i] = 'a' + byte(i%26)
		}
		im := newTestImage(binary.LittleEndian)
		b := make([]byte, 512)
		im.putDirent(b, 3, string(name), tt.reclen)
		ip := rawDir(t, b, uint64(tt.reclen))
		d, err := NewDirectory(ip)
		if err != nil {
			t.Fatalf("NewDirectory() error = %v", err)
		}
		it := d.Iter()
		if !it.Next() {
			t.Fatalf("namelen %d: no entry", tt.namelen)
		}
		e := it.Entry()
		if e.DirSize() != tt.reclen || e.Reclen() != tt.reclen || len(e.Name()) != int(tt.namelen) {
			t.Errorf("namelen %d: DirSize() = %d, Reclen() = %d, want %d", tt.namelen, e.DirSize(), e.Reclen(), tt.reclen)
		}
	}
}
