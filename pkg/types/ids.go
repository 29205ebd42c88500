package types

import "fmt"

// PoolID identifies a heap within the shared metadata namespace.
type PoolID uint32

// Valid reports whether id is inside 1..MaxPools-1.
func (id PoolID) Valid() bool {
	return id > 0 && id < MaxPools
}

// Check returns ErrInvalidPoolID when id is out of range.
func (id PoolID) Check() error {
	if !id.Valid() {
		return Errorf(ErrInvalidPoolID, fmt.Sprintf("%d", id), nil)
	}
	return nil
}

// Offset is a region-relative location. A Shelf resolves it as a byte
// offset from its base; a Heap resolves it as a GlobalPtr. Zero is the
// null offset and doubles as the empty-stack sentinel.
type Offset uint64

// NullOffset is the empty sentinel.
const NullOffset Offset = 0

// GlobalPtr layout:
//
//	bits 63..48  shelf (zone) index
//	bits 47..0   byte offset inside that shelf
const (
	OffsetBits = 48
	offsetMask = 1<<OffsetBits - 1
)

// GlobalPtr names a byte in one of several shelves with a single word, so it
// can be stored in shared memory and linked through a Stack.
type GlobalPtr uint64

// NullPtr is the zero GlobalPtr.
const NullPtr GlobalPtr = 0

// MakeGlobalPtr packs a shelf index and an offset.
func MakeGlobalPtr(shelf uint16, off Offset) GlobalPtr {
	return GlobalPtr(uint64(shelf)<<OffsetBits | uint64(off)&offsetMask)
}

// Shelf returns the shelf index.
func (p GlobalPtr) Shelf() uint16 { return uint16(p >> OffsetBits) }

// Offset returns the byte offset inside the shelf.
func (p GlobalPtr) Offset() Offset { return Offset(uint64(p) & offsetMask) }

// IsNull reports whether p is the zero pointer.
func (p GlobalPtr) IsNull() bool { return p == NullPtr }

// Add returns p advanced by n bytes within the same shelf.
func (p GlobalPtr) Add(n uint64) GlobalPtr {
	return MakeGlobalPtr(p.Shelf(), p.Offset()+Offset(n))
}

func (p GlobalPtr) String() string {
	return fmt.Sprintf("%d:0x%x", p.Shelf(), uint64(p.Offset()))
}
