// Package services holds cross-cutting error classification markers and
// context helpers shared by the worker, pipeline, and stores.
package services
