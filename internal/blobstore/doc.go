// Package blobstore abstracts the object storage holding staged point cloud
// uploads and published Potree viewer trees. The production backend is
// Google Cloud Storage; an in-memory backend serves tests.
package blobstore
