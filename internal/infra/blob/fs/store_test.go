package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dashcore/internal/blob/core"
)

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "/etc/passwd", "../x", "a/../../b", "data.csv.meta"} {
		if _, err := cleanKey(key); err == nil {
			t.Errorf("cleanKey(%q) accepted", key)
		}
	}
	got, err := cleanKey("a//b/./c.csv")
	if err != nil || got != "a/b/c.csv" {
		t.Fatalf("cleanKey = %q %v", got, err)
	}
}

func TestPutWritesSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(context.Background(), "d/x.txt", strings.NewReader("hello"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.URL != "http://local.blob/d/x.txt" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "d", "x.txt.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "d"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCancelledPut(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected context error")
	}
}
