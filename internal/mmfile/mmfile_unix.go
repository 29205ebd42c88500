//go:build unix

// Package mmfile provides platform-specific helpers for memory-mapping
// shelf files shared between processes.
package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Supported reports whether shared mappings are available on this platform.
const Supported = true

// Map maps the first size bytes of f read-write with MAP_SHARED, so stores
// are visible to every other process mapping the same file.
func Map(f *os.File, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: cannot map %d bytes", size)
	}
	if int64(size) > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmfile: mmap %s: %w", f.Name(), err)
	}
	return data, nil
}

// Unmap releases a mapping returned by Map.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// Sync flushes a mapped range to its backing file.
func Sync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// Datasync flushes file data (not metadata) for f.
func Datasync(f *os.File) error {
	return fdatasync(int(f.Fd()))
}
