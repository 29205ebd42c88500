package heap

import (
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/stack"
)

// Heap states stored in meta.state.
const (
	stateFree uint32 = iota
	stateCreating
	stateLive
	stateDestroying
)

const (
	// EntrySize is the size of one pool's metadata entry.
	EntrySize = 1024

	// TableSize is the size of the whole metadata table.
	TableSize = EntrySize * types.MaxPools

	// NumClasses is the number of freelists an entry reserves.
	NumClasses = 32

	// ZoneHeaderSize bytes at the start of each zone are not allocatable.
	ZoneHeaderSize = 64

	// ZoneMagic tags an initialised zone ("NVMMZONE").
	ZoneMagic uint64 = 0x454e4f5a4d4d564e
)

// meta is one entry of the metadata table.
type meta struct {
	state     uint32                  // 0x00
	busy      uint32                  // 0x04
	gen       uint64                  // 0x08
	epoch     uint64                  // 0x10
	size      uint64                  // 0x18
	zoneSize  uint64                  // 0x20
	zoneCount uint64                  // 0x28
	cursor    uint64                  // 0x30
	_         uint64                  // 0x38
	free      [NumClasses]stack.Stack // 0x40
	_         [EntrySize - 0x40 - NumClasses*stack.Size]byte
}

// zoneHeader occupies the first ZoneHeaderSize bytes of every zone.
type zoneHeader struct {
	magic uint64   // 0x00
	pool  uint32   // 0x08
	zone  uint32   // 0x0C
	gen   uint64   // 0x10
	size  uint64   // 0x18
	_     [32]byte // 0x20
}

// metaAt returns the entry for id inside the table at base.
func metaAt(base unsafe.Pointer, id types.PoolID) *meta {
	// Ptr128 enforces the alignment the freelists need.
	return (*meta)(unsafe.Pointer(famatomic.Ptr128(base, uintptr(id)*EntrySize)))
}

// reset clears everything but the generation counter.
func (m *meta) reset() {
	famatomic.Store64(&m.size, 0)
	famatomic.Store64(&m.zoneSize, 0)
	famatomic.Store64(&m.zoneCount, 0)
	famatomic.Store64(&m.cursor, 0)
	for i := range m.free {
		m.free[i].Reset()
	}
}
