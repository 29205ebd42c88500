package famatomic

import "math/bits"

// Pair is a 128-bit value held as two 64-bit words.
type Pair struct {
	Lo uint64
	Hi uint64
}

// Uint128 is a 16-byte aligned double word in shared memory. It must only be
// accessed through its methods; the two halves are never read or written
// separately.
type Uint128 struct {
	lo uint64 // 0x00
	hi uint64 // 0x08
}

// Load atomically reads both words.
func (u *Uint128) Load() Pair {
	lo, hi := cas128(u, 0, 0, 0, 0)
	return Pair{Lo: lo, Hi: hi}
}

// Store atomically writes both words.
func (u *Uint128) Store(v Pair) {
	_ = u.Swap(v)
}

// Swap stores v and returns the previous value.
func (u *Uint128) Swap(v Pair) Pair {
	cur := u.Load()
	for {
		seen := u.CompareAndStore(cur, v)
		if seen == cur {
			return cur
		}
		cur = seen
	}
}

// CompareAndStore replaces old with newVal and returns the value observed.
// The store happened iff the result equals old.
func (u *Uint128) CompareAndStore(old, newVal Pair) Pair {
	lo, hi := cas128(u, old.Lo, old.Hi, newVal.Lo, newVal.Hi)
	return Pair{Lo: lo, Hi: hi}
}

// CompareAndSwap is CompareAndStore reporting only success.
func (u *Uint128) CompareAndSwap(old, newVal Pair) bool {
	return u.CompareAndStore(old, newVal) == old
}

// FetchAdd adds delta as a 128-bit integer (Hi is the upper half) and
// returns the previous value.
func (u *Uint128) FetchAdd(delta Pair) Pair {
	return u.update(func(v Pair) Pair {
		lo, carry := bits.Add64(v.Lo, delta.Lo, 0)
		hi, _ := bits.Add64(v.Hi, delta.Hi, carry)
		return Pair{Lo: lo, Hi: hi}
	})
}

// FetchAnd ands mask into both words and returns the previous value.
func (u *Uint128) FetchAnd(mask Pair) Pair {
	return u.update(func(v Pair) Pair { return Pair{Lo: v.Lo & mask.Lo, Hi: v.Hi & mask.Hi} })
}

// FetchOr ors mask into both words and returns the previous value.
func (u *Uint128) FetchOr(mask Pair) Pair {
	return u.update(func(v Pair) Pair { return Pair{Lo: v.Lo | mask.Lo, Hi: v.Hi | mask.Hi} })
}

// FetchXor xors mask into both words and returns the previous value.
func (u *Uint128) FetchXor(mask Pair) Pair {
	return u.update(func(v Pair) Pair { return Pair{Lo: v.Lo ^ mask.Lo, Hi: v.Hi ^ mask.Hi} })
}

func (u *Uint128) update(fn func(Pair) Pair) Pair {
	cur := u.Load()
	for {
		seen := u.CompareAndStore(cur, fn(cur))
		if seen == cur {
			return cur
		}
		cur = seen
	}
}
