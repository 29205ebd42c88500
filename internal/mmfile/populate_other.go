//go:build !linux

package mmfile

// Populate is a no-op where MADV_POPULATE_WRITE does not exist; pages fault
// in lazily.
func Populate(data []byte) error { return nil }
