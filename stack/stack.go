// Package stack implements a lock-free LIFO of fixed-size blocks that lives
// in shared memory and is safe to use from several processes at once.
//
// A Stack is 16 bytes: the head Offset and a modification counter, always
// read and replaced as one 128-bit word. The counter is bumped on every
// successful Push or Pop, so a CAS that observed an old head can never
// succeed after the head was popped and pushed back (the ABA problem).
//
// Blocks are named by types.Offset values and resolved through a Region,
// because the same block sits at different addresses in different processes.
// While a block is on a stack its first 8 bytes hold the Offset of the next
// block.
package stack

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/pkg/types"
)

// Size is the number of bytes a Stack occupies in shared memory.
const Size = 16

// Region resolves an Offset to an address in this process.
type Region interface {
	Addr(off types.Offset) unsafe.Pointer
}

// RawRegion resolves offsets against a fixed base address.
type RawRegion struct {
	base unsafe.Pointer
}

// Raw returns a Region rooted at base. Offsets are plain byte distances.
func Raw(base unsafe.Pointer) RawRegion {
	return RawRegion{base: base}
}

// Addr implements Region.
func (r RawRegion) Addr(off types.Offset) unsafe.Pointer {
	return unsafe.Add(r.base, uintptr(off))
}

// Stack is the shared head word. The zero value is an empty stack.
type Stack struct {
	w famatomic.Uint128 // Lo: head offset, Hi: counter
}

// At views the 16 bytes at p as a Stack. p must be 16-byte aligned.
func At(p unsafe.Pointer) *Stack {
	return (*Stack)(unsafe.Pointer(famatomic.Ptr128(p, 0)))
}

// Push links block onto the stack. The block must be cache-line aligned,
// belong to r, and not be on any stack.
func (s *Stack) Push(r Region, block types.Offset) {
	if block == types.NullOffset || uint64(block)%types.CacheLineSize != 0 {
		panic(fmt.Sprintf("stack: push of misaligned block 0x%x", uint64(block)))
	}
	link := next(r, block)
	for {
		cur := s.w.Load()
		famatomic.Store64(link, cur.Lo)
		if s.w.CompareAndSwap(cur, famatomic.Pair{Lo: uint64(block), Hi: cur.Hi + 1}) {
			return
		}
	}
}

// Pop unlinks and returns the top block, or types.NullOffset when empty.
func (s *Stack) Pop(r Region) types.Offset {
	for {
		cur := s.w.Load()
		if cur.Lo == 0 {
			return types.NullOffset
		}
		// The link may already be stale if another process popped the
		// block; the counter makes the CAS below fail in that case.
		nxt := famatomic.Load64(next(r, types.Offset(cur.Lo)))
		if s.w.CompareAndSwap(cur, famatomic.Pair{Lo: nxt, Hi: cur.Hi + 1}) {
			return types.Offset(cur.Lo)
		}
	}
}

// Empty reports whether the stack had no blocks at the time of the call.
func (s *Stack) Empty() bool {
	return s.w.Load().Lo == 0
}

// Counter returns the number of successful mutations so far.
func (s *Stack) Counter() uint64 {
	return s.w.Load().Hi
}

// Reset empties the stack and zeroes the counter. Blocks still linked are
// dropped. Only for administrative use when no one else touches s.
func (s *Stack) Reset() {
	s.w.Store(famatomic.Pair{})
}

func next(r Region, block types.Offset) *uint64 {
	return (*uint64)(r.Addr(block))
}
