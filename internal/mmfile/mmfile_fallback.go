//go:build !unix

// Package mmfile provides platform-specific helpers for memory-mapping
// shelf files shared between processes.
package mmfile

import (
	"errors"
	"os"
)

// Supported reports whether shared mappings are available on this platform.
const Supported = false

// ErrUnsupported is returned on platforms without MAP_SHARED file mappings.
var ErrUnsupported = errors.New("mmfile: shared mappings unsupported on this platform")

// Map is unavailable: a private copy of the file would not be shared.
func Map(f *os.File, size int) ([]byte, error) { return nil, ErrUnsupported }

// Unmap is a no-op.
func Unmap(data []byte) error { return nil }

// Sync is a no-op.
func Sync(data []byte) error { return nil }

// Datasync syncs the file.
func Datasync(f *os.File) error { return f.Sync() }
