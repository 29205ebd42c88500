// Package heap implements growable heaps of persistent memory shared by
// cooperating processes, and the Manager that names them by pool id.
//
// # Storage
//
// A heap is a sequence of zones. Every zone is its own shelf file of the
// same size, fixed when the heap is created. Zones are only ever appended,
// so a heap never shrinks and a GlobalPtr (zone index + offset) stays valid
// for the heap's lifetime.
//
// The shared description of every heap lives in the root shelf's metadata
// area, one 1 KiB entry per pool id:
//
//	0x00  state      uint32   free, creating, live, destroying
//	0x04  busy       uint32   PID holding the resize indicator, 0 when idle
//	0x08  generation uint64   bumped on every CreateHeap
//	0x10  epoch      uint64   bumped on every committed change
//	0x18  size       uint64   capacity in bytes (zones * zone size)
//	0x20  zoneSize   uint64
//	0x28  zoneCount  uint64
//	0x30  cursor     GlobalPtr of the next never-allocated byte
//	0x40  free       [32]stack.Stack, one freelist per size class
//
// # Resizing
//
// Resize never blocks. It claims the busy word with a CAS from 0 to its
// PID and gives up with types.ErrBusy when someone else holds it. The
// holder creates the new zone files, then publishes zone count, size and
// epoch in that order, and finally clears the busy word. Readers compare the
// epoch with the one they cached and re-map when it moved, so Size always
// reflects the last committed resize.
//
// A busy word held by a PID that no longer exists is taken over by the next
// caller. Zone creation is idempotent, so the new holder simply redoes
// whatever the dead one left unfinished.
//
// # Allocation
//
// Alloc hands out cache-line aligned blocks in size classes. Freed blocks go
// on a lock-free stack per class; fresh blocks are carved from the shared
// cursor with a CAS.
package heap
