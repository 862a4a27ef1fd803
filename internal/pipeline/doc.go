// Package pipeline executes the conversion steps for a claimed job:
// metadata extraction, thumbnail rendering, octree conversion, and
// publishing to the blob store.
package pipeline
