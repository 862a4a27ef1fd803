// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store constructors, stub tool binaries, and synthetic LAS files.
package testsupport
