//go:build linux

package mmfile

import (
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// MADV_POPULATE_WRITE is available since Linux 5.14.
// It pre-faults pages writable and returns EFAULT instead of generating SIGBUS.
const madvPopulateWrite = 23

// Populate pre-faults every page of a writable mapping so that a shelf whose
// backing store cannot be paged in fails at open time, not on first use.
//
// Kernels without MADV_POPULATE_WRITE fall back to touching one byte per page
// with SetPanicOnFault protection.
func Populate(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Madvise(data, madvPopulateWrite)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) {
		return fmt.Errorf("mmfile: madvise populate failed: %w", err)
	}
	return touchPages(data)
}

// touchPages reads through all pages to force them to be loaded.
func touchPages(data []byte) (retErr error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("mmfile: memory access fault during pre-fault: %v", r)
		}
	}()

	pageSize := unix.Getpagesize()
	var sink byte
	for i := 0; i < len(data); i += pageSize {
		sink ^= data[i]
	}
	sink ^= data[len(data)-1]
	_ = sink

	return nil
}
