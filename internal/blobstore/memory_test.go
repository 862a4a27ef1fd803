package blobstore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/blobstore"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := blobstore.NewMemory()
	ctx := context.Background()

	if err := store.UploadBytes(ctx, "projects/p1/thumbnail.png", []byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	data, contentType, ok := store.Get("projects/p1/thumbnail.png")
	if !ok || contentType != "image/png" || len(data) != 3 {
		t.Fatalf("unexpected object: %v %q %v", data, contentType, ok)
	}

	if err := store.Delete(ctx, "projects/p1/thumbnail.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok := store.Get("projects/p1/thumbnail.png"); ok {
		t.Fatal("object should be gone")
	}
	// Deleting again must not fail.
	if err := store.Delete(ctx, "projects/p1/thumbnail.png"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestMemoryTemporaryURL(t *testing.T) {
	store := blobstore.NewMemory()
	ctx := context.Background()

	if _, err := store.TemporaryURL(ctx, "missing", time.Hour); err == nil {
		t.Fatal("expected error for missing object")
	}

	if err := store.UploadBytes(ctx, "projects/p1/cloud/metadata.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	url, err := store.TemporaryURL(ctx, "projects/p1/cloud/metadata.json", 72*time.Hour)
	if err != nil {
		t.Fatalf("temporary url: %v", err)
	}
	if !strings.Contains(url, "projects/p1/cloud/metadata.json") || !strings.Contains(url, "expires=") {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"index.html":      "text/html",
		"potree.js":       "application/javascript",
		"metadata.json":   "application/json",
		"octree.bin":      "application/octet-stream",
		"style.css":       "text/css",
		"thumbnail.png":   "image/png",
		"photo.JPG":       "image/jpeg",
		"scan.las":        "application/octet-stream",
		"hierarchy.weird": "application/octet-stream",
	}
	for name, want := range cases {
		if got := blobstore.ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := blobstore.Join("projects/", "/p1", "cloud", ""); got != "projects/p1/cloud" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := blobstore.Join("", "jobs", "j1.las"); got != "jobs/j1.las" {
		t.Fatalf("unexpected key %q", got)
	}
}
