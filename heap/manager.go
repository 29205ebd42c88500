package heap

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/internal/logger"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/rootshelf"
	"github.com/joshuapare/famkit/shelf"
)

// The metadata table must fit the root shelf's metadata area.
var _ [rootshelf.MetadataSize - TableSize]struct{}

// Manager creates, finds and destroys heaps by pool id. It is a
// process-local view of the table in the root shelf; any number of
// processes may hold one at the same time.
type Manager struct {
	root  *rootshelf.RootShelf
	table unsafe.Pointer
	name  ZoneNamer
	pid   uint32
}

// crossProcess is whether the freelists may be shared with other processes.
var crossProcess = famatomic.CrossProcess128

// Supported fails with types.ErrUnsupported on platforms without a hardware
// 128-bit compare-and-swap.
func Supported() error {
	if !crossProcess {
		return types.Errorf(types.ErrUnsupported, "128-bit compare-and-swap is process-local on "+runtime.GOARCH, nil)
	}
	return nil
}

// NewManager returns a Manager over an open root shelf.
func NewManager(root *rootshelf.RootShelf, name ZoneNamer) (*Manager, error) {
	if err := Supported(); err != nil {
		return nil, err
	}
	if !root.IsOpen() {
		return nil, types.Errorf(types.ErrNotOpen, "root shelf "+root.Path(), nil)
	}
	return &Manager{
		root:  root,
		table: root.Metadata(),
		name:  name,
		pid:   uint32(os.Getpid()),
	}, nil
}

func (mg *Manager) meta(id types.PoolID) *meta {
	return metaAt(mg.table, id)
}

// CreateHeap publishes a new heap whose first zone holds initialSize bytes,
// rounded up to types.VirtualPageSize. Later zones have the same size.
func (mg *Manager) CreateHeap(id types.PoolID, initialSize uint64) error {
	if err := id.Check(); err != nil {
		return err
	}
	if initialSize > types.MaxZoneSize {
		return types.Errorf(types.ErrTooLarge, fmt.Sprintf("zone size %d", initialSize), nil)
	}
	zoneSize := types.RoundUp(max(initialSize, 1), types.VirtualPageSize)

	m := mg.meta(id)
	if famatomic.Load32(&m.state) == stateLive {
		return types.Errorf(types.ErrAlreadyExists, fmt.Sprintf("pool %d", id), nil)
	}
	if err := mg.acquire(id, m); err != nil {
		return err
	}
	defer mg.release(m)

	switch famatomic.Load32(&m.state) {
	case stateLive:
		return types.Errorf(types.ErrAlreadyExists, fmt.Sprintf("pool %d", id), nil)
	case stateCreating, stateDestroying:
		// Leftovers of a holder that died half way.
		if err := mg.teardown(id, m); err != nil {
			return err
		}
	}

	gen := famatomic.FetchAdd64(&m.gen, 1) + 1
	famatomic.Store32(&m.state, stateCreating)
	m.reset()
	famatomic.Store64(&m.zoneSize, zoneSize)

	path := mg.name(id, gen, 0)
	if err := createZone(path, id, gen, 0, zoneSize); err != nil {
		_ = removeZone(path)
		famatomic.Store32(&m.state, stateFree)
		return fmt.Errorf("create heap %d: %w", id, err)
	}

	famatomic.Store64(&m.cursor, uint64(types.MakeGlobalPtr(0, ZoneHeaderSize)))
	famatomic.Store64(&m.zoneCount, 1)
	famatomic.Store64(&m.size, zoneSize)
	famatomic.FetchAdd64(&m.epoch, 1)
	if err := mg.syncMeta(id); err != nil {
		return err
	}
	famatomic.Store32(&m.state, stateLive)
	if err := mg.syncMeta(id); err != nil {
		return err
	}

	logger.Info("heap created", "pool", id, "gen", gen, "zone_size", zoneSize)
	return nil
}

// FindHeap returns a closed handle on a live heap.
func (mg *Manager) FindHeap(id types.PoolID) (*Heap, error) {
	if err := id.Check(); err != nil {
		return nil, err
	}
	m := mg.meta(id)
	if famatomic.Load32(&m.state) != stateLive {
		return nil, types.Errorf(types.ErrNotFound, fmt.Sprintf("pool %d", id), nil)
	}
	return &Heap{mgr: mg, id: id, m: m, gen: famatomic.Load64(&m.gen)}, nil
}

// DestroyHeap removes a heap and its zone files and frees the id. No
// process may have the heap open.
func (mg *Manager) DestroyHeap(id types.PoolID) error {
	if err := id.Check(); err != nil {
		return err
	}
	m := mg.meta(id)
	if famatomic.Load32(&m.state) == stateFree {
		return types.Errorf(types.ErrNotFound, fmt.Sprintf("pool %d", id), nil)
	}
	if err := mg.acquire(id, m); err != nil {
		return err
	}
	defer mg.release(m)

	if famatomic.Load32(&m.state) == stateFree {
		return types.Errorf(types.ErrNotFound, fmt.Sprintf("pool %d", id), nil)
	}
	if err := mg.teardown(id, m); err != nil {
		return err
	}
	logger.Info("heap destroyed", "pool", id)
	return nil
}

// Heaps lists the ids of all live heaps.
func (mg *Manager) Heaps() []types.PoolID {
	var ids []types.PoolID
	for id := types.PoolID(1); id < types.MaxPools; id++ {
		if famatomic.Load32(&mg.meta(id).state) == stateLive {
			ids = append(ids, id)
		}
	}
	return ids
}

// teardown removes every zone file of the current generation and returns
// the entry to the free state. The caller holds the busy word.
func (mg *Manager) teardown(id types.PoolID, m *meta) error {
	famatomic.Store32(&m.state, stateDestroying)
	gen := famatomic.Load64(&m.gen)
	count := int(famatomic.Load64(&m.zoneCount))

	// Zones past count may exist if a resize died before publishing them.
	for z := 0; z < types.MaxZones; z++ {
		path := mg.name(id, gen, z)
		if z >= count && !shelf.New(path).Exist() {
			break
		}
		if err := removeZone(path); err != nil {
			return fmt.Errorf("destroy heap %d: %w", id, err)
		}
	}

	m.reset()
	famatomic.FetchAdd64(&m.epoch, 1)
	famatomic.Store32(&m.state, stateFree)
	return mg.syncMeta(id)
}

// acquire claims the busy word for this process. A word held by a process
// that no longer exists is taken over; one held by a live process, this one
// included, yields types.ErrBusy.
func (mg *Manager) acquire(id types.PoolID, m *meta) error {
	for {
		holder := famatomic.CompareAndStore32(&m.busy, 0, mg.pid)
		if holder == 0 {
			return nil
		}
		if holder == mg.pid || alive(holder) {
			return types.Errorf(types.ErrBusy, fmt.Sprintf("pool %d held by pid %d", id, holder), nil)
		}
		if famatomic.CompareAndStore32(&m.busy, holder, mg.pid) == holder {
			logger.Warn("stale resize indicator taken over", "pool", id, "dead_pid", holder)
			return nil
		}
	}
}

func (mg *Manager) release(m *meta) {
	famatomic.CompareAndStore32(&m.busy, mg.pid, 0)
}

func (mg *Manager) syncMeta(id types.PoolID) error {
	off := types.Offset(rootshelf.MetadataOffset + uint64(id)*EntrySize)
	if err := mg.root.Shelf().SyncRange(off, EntrySize); err != nil {
		return fmt.Errorf("sync metadata of pool %d: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
