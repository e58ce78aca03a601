package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBase64Store(t *testing.T) {
	url, err := NewBase64Store().Save(context.Background(), []byte("ABC"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "data:image/png;base64,QUJD" {
		t.Fatalf("url = %q", url)
	}
}

func TestBase64StoreDefaultsMime(t *testing.T) {
	url, err := NewBase64Store().Save(context.Background(), []byte{1}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("url = %q", url)
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8045/")
	if err != nil {
		t.Fatal(err)
	}
	url, err := store.Save(context.Background(), []byte{0x89, 0x50}, "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "http://localhost:8045/images/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("url = %q", url)
	}

	name := strings.TrimPrefix(url, "http://localhost:8045/images/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0] != 0x89 {
		t.Fatalf("stored bytes = %v", data)
	}
}
