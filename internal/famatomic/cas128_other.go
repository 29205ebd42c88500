//go:build !amd64 && !arm64

package famatomic

import (
	"sync"
	"unsafe"
)

// CrossProcess128 reports whether Uint128 operations are hardware atomic
// and therefore safe between processes.
const CrossProcess128 = false

// stripes serialise 128-bit operations inside this process only.
var stripes [64]sync.Mutex

func cas128(addr *Uint128, oldLo, oldHi, newLo, newHi uint64) (uint64, uint64) {
	mu := &stripes[(uintptr(unsafe.Pointer(addr))>>4)%uintptr(len(stripes))]
	mu.Lock()
	defer mu.Unlock()
	lo, hi := addr.lo, addr.hi
	if lo == oldLo && hi == oldHi {
		addr.lo, addr.hi = newLo, newHi
	}
	return lo, hi
}
