package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalPutOpenDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	first, err := store.Put(ctx, bytes.NewBufferString("hello"), "scan.PDF")
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	if first.Key == "" || first.SizeBytes != 5 {
		t.Fatalf("unexpected put result: %#v", first)
	}
	if !strings.HasSuffix(first.Key, ".pdf") {
		t.Fatalf("expected lowercased extension in key, got %q", first.Key)
	}

	second, err := store.Put(ctx, bytes.NewBufferString("hello"), "scan.PDF")
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first.Key == second.Key {
		t.Fatalf("expected distinct keys for repeated uploads, got %q twice", first.Key)
	}

	ok, err := store.Exists(ctx, first.Key)
	if err != nil || !ok {
		t.Fatalf("expected blob to exist, ok=%v err=%v", ok, err)
	}

	rc, err := store.Open(ctx, first.Key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}

	if err := store.Delete(ctx, first.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, first.Key); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	ok, err = store.Exists(ctx, first.Key)
	if err != nil || ok {
		t.Fatalf("expected blob to be gone, ok=%v err=%v", ok, err)
	}
}

func TestLocalList(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %#v", keys)
	}

	a, _ := store.Put(ctx, bytes.NewBufferString("a"), "a.txt")
	b, _ := store.Put(ctx, bytes.NewBufferString("b"), "b.txt")

	keys, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %#v", keys)
	}
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found[a.Key] || !found[b.Key] {
		t.Fatalf("expected keys %q and %q in %#v", a.Key, b.Key, keys)
	}
}

func TestLocalRejectsPathTraversalKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "a/b", "tmp", ".."} {
		if err := store.Delete(ctx, key); err == nil {
			t.Fatalf("expected delete of key %q to be rejected", key)
		}
		if _, err := store.Open(ctx, key); err == nil {
			t.Fatalf("expected open of key %q to be rejected", key)
		}
	}
}

func TestNewStorageKeyExtensions(t *testing.T) {
	cases := []struct {
		name   string
		suffix string
	}{
		{"report.pdf", ".pdf"},
		{"IMAGE.JPG", ".jpg"},
		{"noext", ""},
		{"weird.<script>", ""},
		{"archive.tar.gz", ".gz"},
	}
	for _, tc := range cases {
		key := NewStorageKey(tc.name)
		if tc.suffix == "" {
			if strings.Contains(key, ".") {
				t.Fatalf("expected no extension for %q, got %q", tc.name, key)
			}
			continue
		}
		if !strings.HasSuffix(key, tc.suffix) {
			t.Fatalf("expected suffix %q for %q, got %q", tc.suffix, tc.name, key)
		}
	}
}
