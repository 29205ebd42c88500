package main

import "github.com/joshuapare/famkit/pkg/types"

// exitCode maps an error to the process exit status, so scripts can tell a
// busy heap from a missing one.
func exitCode(err error) int {
	switch types.CodeOf(err) {
	case types.NoError:
		return 0
	case types.IDFound:
		return 2
	case types.IDNotFound:
		return 3
	case types.HeapBusy:
		return 4
	default:
		return 1
	}
}
