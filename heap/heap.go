package heap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/internal/logger"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/shelf"
)

// Heap is a process-local handle on a shared heap. Its methods are safe for
// concurrent use; the zone table is guarded by a local RWMutex because it
// never lives in shared memory.
type Heap struct {
	mgr *Manager
	id  types.PoolID
	m   *meta
	gen uint64

	mu    sync.RWMutex
	open  bool
	epoch uint64
	zones []*shelf.Shelf
}

// ID returns the pool id.
func (h *Heap) ID() types.PoolID { return h.id }

// Open maps every zone published so far.
func (h *Heap) Open() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open {
		return nil
	}
	h.open = true
	if err := h.refreshLocked(); err != nil {
		h.closeLocked()
		return err
	}
	logger.Debug("heap opened", "pool", h.id, "zones", len(h.zones))
	return nil
}

// Close unmaps all zones. Blocks and pointers obtained through this handle
// must not be used afterwards.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeLocked()
}

func (h *Heap) closeLocked() error {
	var first error
	for _, z := range h.zones {
		if err := z.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.zones = nil
	h.open = false
	h.epoch = 0
	return first
}

// IsOpen reports whether the handle has its zones mapped.
func (h *Heap) IsOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

// Size returns the heap's capacity as last committed by any process. An
// open handle maps new zones as a side effect when the epoch moved.
func (h *Heap) Size() uint64 {
	if err := h.revalidate(); err != nil {
		logger.Debug("heap revalidate failed", "pool", h.id, "err", err)
	}
	return famatomic.Load64(&h.m.size)
}

// Resize grows the heap to at least newSize bytes. It returns
// types.ErrBusy without waiting when another caller is resizing.
func (h *Heap) Resize(newSize uint64) error {
	if !h.IsOpen() {
		return types.Errorf(types.ErrNotOpen, fmt.Sprintf("heap %d", h.id), nil)
	}
	if h.Size() >= newSize {
		return nil
	}

	mg := h.mgr
	if err := mg.acquire(h.id, h.m); err != nil {
		return err
	}
	defer mg.release(h.m)

	if err := h.checkGen(); err != nil {
		return err
	}
	zoneSize := famatomic.Load64(&h.m.zoneSize)
	count := famatomic.Load64(&h.m.zoneCount)
	want := types.CeilDiv(newSize, zoneSize)
	if want > types.MaxZones {
		return types.Errorf(types.ErrTooLarge, fmt.Sprintf("heap %d: %d bytes", h.id, newSize), nil)
	}
	// A holder that died after publishing zoneCount but before size leaves
	// zones that may already hold blocks. Never drop them.
	want = max(want, count)
	// Someone else may have grown it between our check and the claim.
	if want == count && famatomic.Load64(&h.m.size) == count*zoneSize {
		return nil
	}

	for z := count; z < want; z++ {
		path := mg.name(h.id, h.gen, int(z))
		if err := createZone(path, h.id, h.gen, int(z), zoneSize); err != nil {
			return fmt.Errorf("resize heap %d: %w", h.id, err)
		}
	}

	famatomic.Store64(&h.m.zoneCount, want)
	famatomic.Store64(&h.m.size, want*zoneSize)
	epoch := famatomic.FetchAdd64(&h.m.epoch, 1) + 1
	if err := mg.syncMeta(h.id); err != nil {
		return err
	}

	logger.Info("heap resized", "pool", h.id, "zones", want, "size", want*zoneSize, "epoch", epoch)
	return h.revalidate()
}

// Addr resolves a GlobalPtr (passed as an Offset) to an address in this
// process, mapping zones added by other processes on demand. It panics on a
// pointer outside the heap, like any out-of-range shelf access.
func (h *Heap) Addr(off types.Offset) unsafe.Pointer {
	p := types.GlobalPtr(off)
	z := int(p.Shelf())

	h.mu.RLock()
	if z < len(h.zones) {
		a := h.zones[z].Addr(p.Offset())
		h.mu.RUnlock()
		return a
	}
	h.mu.RUnlock()

	// The zone may be published by a resize that has not bumped the epoch
	// yet, so map up to zoneCount regardless.
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		panic(fmt.Sprintf("heap %d: resolve %s on a closed handle", h.id, p))
	}
	if err := h.refreshLocked(); err != nil {
		panic(fmt.Sprintf("heap %d: resolve %s: %v", h.id, p, err))
	}
	if z >= len(h.zones) {
		panic(fmt.Sprintf("heap %d: pointer %s past %d zones", h.id, p, len(h.zones)))
	}
	return h.zones[z].Addr(p.Offset())
}

// Stats is a snapshot of a heap's shared state.
type Stats struct {
	Pool       types.PoolID
	Size       uint64
	ZoneSize   uint64
	Zones      uint64
	Epoch      uint64
	Generation uint64
	BusyPID    uint32
	Cursor     types.GlobalPtr
}

// Stats reads the shared metadata. Fields are loaded one by one, so a
// concurrent resize may show through partially.
func (h *Heap) Stats() Stats {
	m := h.m
	return Stats{
		Pool:       h.id,
		Epoch:      famatomic.Load64(&m.epoch),
		Size:       famatomic.Load64(&m.size),
		ZoneSize:   famatomic.Load64(&m.zoneSize),
		Zones:      famatomic.Load64(&m.zoneCount),
		Generation: famatomic.Load64(&m.gen),
		BusyPID:    famatomic.Load32(&m.busy),
		Cursor:     types.GlobalPtr(famatomic.Load64(&m.cursor)),
	}
}

// revalidate maps new zones when the shared epoch differs from the cached one.
func (h *Heap) revalidate() error {
	epoch := famatomic.Load64(&h.m.epoch)
	h.mu.RLock()
	fresh := !h.open || h.epoch == epoch
	h.mu.RUnlock()
	if fresh {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return nil
	}
	return h.refreshLocked()
}

// refreshLocked brings the zone table up to the published zone count.
func (h *Heap) refreshLocked() error {
	// Epoch first: anything published before it is visible below.
	epoch := famatomic.Load64(&h.m.epoch)
	if err := h.checkGen(); err != nil {
		return err
	}
	count := int(famatomic.Load64(&h.m.zoneCount))
	zoneSize := famatomic.Load64(&h.m.zoneSize)

	for z := len(h.zones); z < count; z++ {
		s, err := openZone(h.mgr.name(h.id, h.gen, z), h.id, h.gen, z, zoneSize)
		if err != nil {
			return fmt.Errorf("heap %d: %w", h.id, err)
		}
		h.zones = append(h.zones, s)
	}
	h.epoch = epoch
	return nil
}

// checkGen fails once the heap this handle was found on has been destroyed.
func (h *Heap) checkGen() error {
	if famatomic.Load32(&h.m.state) != stateLive || famatomic.Load64(&h.m.gen) != h.gen {
		return types.Errorf(types.ErrNotFound, fmt.Sprintf("heap %d generation %d", h.id, h.gen), nil)
	}
	return nil
}
