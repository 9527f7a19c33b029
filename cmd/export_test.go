package cmd

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

func TestNeedsEncoding(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{"", false},
		{"plain\n", false},
		{"two\nlines\n", false},
		{"no newline", true},
		{"-- looks like a header\n", true},
		{"x\n-- y\n", true},
		{"x --\n", false},
		{"\xff\xfe\n", true},
	}
	for _, tt := range tests {
		if got := needsEncoding([]byte(tt.data)); got != tt.want {
			t.Errorf("needsEncoding(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"", 4, "\n"},
		{"abcd", 4, "abcd\n"},
		{"abcdefghij", 4, "abcd\nefgh\nij\n"},
	}
	for _, tt := range tests {
		if got := wrap(tt.text, tt.width); got != tt.want {
			t.Errorf("wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	binary := []byte{0, 1, 2, 0xff, 0xfe, 'x', 'y', 'z', 0x80, 0x81}
	mfs := memFS{fstest.MapFS{
		"a/b":     {Data: []byte("b\n"), Mode: 0o644, ModTime: testTime},
		"bin":     {Data: binary, Mode: 0o755, ModTime: testTime},
		"dash":    {Data: []byte("-- x\n"), Mode: 0o644, ModTime: testTime},
		"notrail": {Data: []byte("abc"), Mode: 0o644, ModTime: testTime},
	}}

	var out bytes.Buffer
	if err := Export(mfs, "/", &out, ExportOptions{Wrap: 8}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	ar := txtar.Parse(out.Bytes())

	var names []string
	got := map[string][]byte{}
	for _, f := range ar.Files {
		fields := strings.Fields(f.Name)
		names = append(names, fields[0])
		data := f.Data
		if fields[len(fields)-1] == "base64=1" {
			for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
				if len(line) > 8 {
					t.Errorf("%s: line %q longer than wrap width", fields[0], line)
				}
			}
			dec, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(data), "\n", ""))
			if err != nil {
				t.Fatalf("%s: decoding: %v", fields[0], err)
			}
			data = dec
		}
		got[fields[0]] = data
	}

	if diff := cmp.Diff([]string{".", "a/", "a/b", "bin", "dash", "notrail"}, names); diff != "" {
		t.Errorf("archive names mismatch (-want +got):\n%s", diff)
	}
	for name, want := range map[string][]byte{
		"a/b":     []byte("b\n"),
		"bin":     binary,
		"dash":    []byte("-- x\n"),
		"notrail": []byte("abc"),
	} {
		if !bytes.Equal(got[name], want) {
			t.Errorf("%s = %q, want %q", name, got[name], want)
		}
	}
}
