package blobstore

import (
	"context"
	"path"
	"strings"
	"time"
)

// Store abstracts the object storage backend holding staged inputs and
// published viewer trees.
type Store interface {
	// UploadBytes writes data to the object at key with the given content type.
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes the object at key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// TemporaryURL returns a time-limited read URL for the object at key.
	TemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Close releases the underlying client.
	Close() error
}

var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".bin":  "application/octet-stream",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".las":  "application/octet-stream",
	".laz":  "application/octet-stream",
}

// ContentTypeFor maps a file name to the content type stored with the blob.
// Unknown extensions fall back to application/octet-stream.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Join builds an object key from path segments, skipping empties and using
// forward slashes regardless of platform.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		trimmed := strings.Trim(strings.ReplaceAll(segment, "\\", "/"), "/")
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, "/")
}
