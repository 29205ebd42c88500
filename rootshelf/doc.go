// Package rootshelf implements the bootstrap shelf every process maps first.
//
// # Overview
//
// The root shelf is a single, fixed-size (128 MiB) shelf at a well-known
// path. It is the only rendezvous point processes share before any heap
// exists: the heap package keeps its pool table inside it, starting at
// MetadataOffset.
//
// # Layout
//
//	0x00  magic   uint64  766874353 once initialised
//	0x08  version uint32
//	0x0C  flags   uint32
//	0x10  size    uint64  total shelf size
//	0x18  created int64   unix nanoseconds
//	0x20  reserved
//	...
//	0x10000  metadata area (owned by the heap package)
//
// # Creation protocol
//
// Create writes and syncs everything else first and stores the magic number
// last. A crash in the middle therefore leaves an untagged file, which Open
// reports as types.ErrCorrupt instead of trusting half-written metadata.
// An untagged file is never silently re-initialised, because it may belong
// to a concurrent creator that has not finished yet; an operator removes it
// with Destroy.
//
// # Lifecycle
//
//   - Create: once per deployment
//   - Open/Close: per process, per use
//   - Destroy: administrative only, never while other processes have it open
package rootshelf
