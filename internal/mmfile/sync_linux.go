//go:build linux

package mmfile

import "golang.org/x/sys/unix"

// fdatasync flushes file data without forcing a metadata update.
func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
