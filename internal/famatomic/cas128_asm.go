//go:build amd64 || arm64

package famatomic

// CrossProcess128 reports whether Uint128 operations are hardware atomic
// and therefore safe between processes.
const CrossProcess128 = true

// cas128 compares the 16 bytes at addr with (oldLo, oldHi) and, if equal,
// replaces them with (newLo, newHi). It returns the 16 bytes observed.
//
//go:noescape
func cas128(addr *Uint128, oldLo, oldHi, newLo, newHi uint64) (prevLo, prevHi uint64)
