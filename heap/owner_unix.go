//go:build unix

package heap

import (
	"errors"

	"golang.org/x/sys/unix"
)

// alive reports whether a process with the given PID exists. EPERM means it
// exists but belongs to someone else.
func alive(pid uint32) bool {
	err := unix.Kill(int(pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
