package famatomic

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Ptr32 returns the 32-bit word at base+off.
func Ptr32(base unsafe.Pointer, off uintptr) *uint32 {
	p := unsafe.Add(base, off)
	mustAlign(p, 4)
	return (*uint32)(p)
}

// Ptr64 returns the 64-bit word at base+off.
func Ptr64(base unsafe.Pointer, off uintptr) *uint64 {
	p := unsafe.Add(base, off)
	mustAlign(p, 8)
	return (*uint64)(p)
}

// Ptr128 returns the 128-bit word at base+off.
func Ptr128(base unsafe.Pointer, off uintptr) *Uint128 {
	p := unsafe.Add(base, off)
	mustAlign(p, 16)
	return (*Uint128)(p)
}

// Aligned reports whether p is a multiple of n.
func Aligned(p unsafe.Pointer, n uintptr) bool {
	return uintptr(p)%n == 0
}

func mustAlign(p unsafe.Pointer, n uintptr) {
	if !Aligned(p, n) {
		panic(fmt.Sprintf("famatomic: address %p not %d-byte aligned", p, n))
	}
}

// ============================================================================
// 32-bit
// ============================================================================

// Load32 atomically reads *p.
func Load32(p *uint32) uint32 { return atomic.LoadUint32(p) }

// Store32 atomically writes v to *p.
func Store32(p *uint32, v uint32) { atomic.StoreUint32(p, v) }

// FetchAdd32 adds delta to *p and returns the previous value.
func FetchAdd32(p *uint32, delta uint32) uint32 { return atomic.AddUint32(p, delta) - delta }

// FetchAnd32 ands mask into *p and returns the previous value.
func FetchAnd32(p *uint32, mask uint32) uint32 { return atomic.AndUint32(p, mask) }

// FetchOr32 ors mask into *p and returns the previous value.
func FetchOr32(p *uint32, mask uint32) uint32 { return atomic.OrUint32(p, mask) }

// FetchXor32 xors mask into *p and returns the previous value.
func FetchXor32(p *uint32, mask uint32) uint32 {
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old^mask) {
			return old
		}
	}
}

// Swap32 stores v into *p and returns the previous value.
func Swap32(p *uint32, v uint32) uint32 { return atomic.SwapUint32(p, v) }

// CompareAndStore32 stores newVal into *p if it holds old and returns the
// value observed. The store happened iff the result equals old.
func CompareAndStore32(p *uint32, old, newVal uint32) uint32 {
	for {
		if atomic.CompareAndSwapUint32(p, old, newVal) {
			return old
		}
		// Word moved back to old after the failed CAS: try again.
		if cur := atomic.LoadUint32(p); cur != old {
			return cur
		}
	}
}

// ============================================================================
// 64-bit
// ============================================================================

// Load64 atomically reads *p.
func Load64(p *uint64) uint64 { return atomic.LoadUint64(p) }

// Store64 atomically writes v to *p.
func Store64(p *uint64, v uint64) { atomic.StoreUint64(p, v) }

// FetchAdd64 adds delta to *p and returns the previous value.
func FetchAdd64(p *uint64, delta uint64) uint64 { return atomic.AddUint64(p, delta) - delta }

// FetchAnd64 ands mask into *p and returns the previous value.
func FetchAnd64(p *uint64, mask uint64) uint64 { return atomic.AndUint64(p, mask) }

// FetchOr64 ors mask into *p and returns the previous value.
func FetchOr64(p *uint64, mask uint64) uint64 { return atomic.OrUint64(p, mask) }

// FetchXor64 xors mask into *p and returns the previous value.
func FetchXor64(p *uint64, mask uint64) uint64 {
	for {
		old := atomic.LoadUint64(p)
		if atomic.CompareAndSwapUint64(p, old, old^mask) {
			return old
		}
	}
}

// Swap64 stores v into *p and returns the previous value.
func Swap64(p *uint64, v uint64) uint64 { return atomic.SwapUint64(p, v) }

// CompareAndStore64 stores newVal into *p if it holds old and returns the
// value observed. The store happened iff the result equals old.
func CompareAndStore64(p *uint64, old, newVal uint64) uint64 {
	for {
		if atomic.CompareAndSwapUint64(p, old, newVal) {
			return old
		}
		if cur := atomic.LoadUint64(p); cur != old {
			return cur
		}
	}
}
