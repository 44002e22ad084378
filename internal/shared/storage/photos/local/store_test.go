package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir(), "https://photos.example.com")

	key, url, err := store.Save(context.Background(), "user-1", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("key %q should end in .jpg", key)
	}
	if !strings.HasPrefix(url, "https://photos.example.com/") || !strings.HasSuffix(url, key) {
		t.Fatalf("unexpected url %q for key %q", url, key)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("read %q", data)
	}
}

func TestSaveKeysAreUnique(t *testing.T) {
	store := New(t.TempDir(), "http://localhost:8080/photos")

	k1, _, err := store.Save(context.Background(), "user-1", []byte("a"))
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	k2, _, err := store.Save(context.Background(), "user-1", []byte("b"))
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected unique keys, both %q", k1)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir(), "http://localhost")
	if _, err := store.Open(context.Background(), "../outside"); err == nil {
		t.Fatal("expected error for traversal key")
	}
}
