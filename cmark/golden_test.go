package cmark

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGoldenFiles(t *testing.T) {
	t.Parallel()
	paths, err := filepath.Glob(filepath.Join("testdata", "*.md"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no golden inputs found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			t.Parallel()
			src, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			want, err := os.ReadFile(strings.TrimSuffix(path, ".md") + ".golden")
			if err != nil {
				t.Fatalf("read golden: %v", err)
			}
			got := format(t, src)
			if got != string(want) {
				t.Fatalf("golden mismatch for %s\nwant:\n%s\ngot:\n%s", path, want, got)
			}
			if again := format(t, want); again != string(want) {
				t.Fatalf("golden output is not stable for %s\nwant:\n%s\ngot:\n%s", path, want, again)
			}
		})
	}
}

func format(t *testing.T, src []byte) string {
	t.Helper()
	var out bytes.Buffer
	if err := Format(FormatRequest{Reader: bytes.NewReader(src), Writer: &out}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return out.String()
}
