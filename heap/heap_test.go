//go:build linux || darwin

package heap

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/pkg/types"
)

func TestHeap_OpenClose(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.MiB))

	h, err := mg.FindHeap(1)
	require.NoError(t, err)
	require.False(t, h.IsOpen())
	require.ErrorIs(t, h.Resize(2*types.MiB), types.ErrNotOpen)

	require.NoError(t, h.Open())
	require.NoError(t, h.Open())
	require.True(t, h.IsOpen())

	require.NoError(t, h.Close())
	require.False(t, h.IsOpen())
	require.NoError(t, h.Close())
}

func TestHeap_ResizeVisibleEverywhere(t *testing.T) {
	f := newFixture(t)
	a, b := f.manager(t), f.manager(t)
	require.NoError(t, a.CreateHeap(1, types.MiB))

	ha := f.openHeap(t, a, 1)
	hb := f.openHeap(t, b, 1)
	epoch := ha.Stats().Epoch

	require.NoError(t, ha.Resize(3*types.MiB))
	assert.Equal(t, uint64(3*types.MiB), hb.Size())
	assert.Equal(t, uint64(3), hb.Stats().Zones)
	assert.Equal(t, epoch+1, hb.Stats().Epoch)

	// partial zones round up
	require.NoError(t, hb.Resize(3*types.MiB+1))
	assert.Equal(t, uint64(4*types.MiB), ha.Size())

	// shrinking requests are no-op successes
	require.NoError(t, ha.Resize(types.MiB))
	require.NoError(t, ha.Resize(4*types.MiB))
	assert.Equal(t, uint64(4*types.MiB), hb.Size())
	assert.Equal(t, epoch+2, ha.Stats().Epoch)
	assert.Zero(t, ha.Stats().BusyPID)

	// b can reach the new zone through a pointer into it
	p := types.MakeGlobalPtr(3, ZoneHeaderSize)
	famatomic.Store64((*uint64)(ha.Addr(types.Offset(p))), 99)
	assert.Equal(t, uint64(99), famatomic.Load64((*uint64)(hb.Addr(types.Offset(p)))))
}

func TestHeap_ResizeBusy(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.MiB))
	h := f.openHeap(t, mg, 1)

	// held by a live process
	famatomic.Store32(&h.m.busy, 1)
	err := h.Resize(2 * types.MiB)
	require.ErrorIs(t, err, types.ErrBusy)
	assert.True(t, types.Retryable(err))
	assert.Equal(t, uint64(types.MiB), h.Size())

	// held by this very process, e.g. another goroutine
	famatomic.Store32(&h.m.busy, mg.pid)
	require.ErrorIs(t, h.Resize(2*types.MiB), types.ErrBusy)

	// busy does not matter when nothing needs to change
	require.NoError(t, h.Resize(types.MiB))

	famatomic.Store32(&h.m.busy, 0)
	require.NoError(t, h.Resize(2*types.MiB))
	assert.Equal(t, uint64(2*types.MiB), h.Size())
}

func TestHeap_ResizeStealsFromDeadHolder(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.MiB))
	h := f.openHeap(t, mg, 1)

	// The dead holder had already created zone 1 but never published it.
	require.NoError(t, createZone(mg.name(1, h.gen, 1), 1, h.gen, 1, types.MiB))
	famatomic.Store32(&h.m.busy, deadPID)

	require.NoError(t, h.Resize(3*types.MiB))
	assert.Equal(t, uint64(3*types.MiB), h.Size())
	assert.Zero(t, famatomic.Load32(&h.m.busy))
}

func TestHeap_ResizeTooLarge(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.VirtualPageSize))
	h := f.openHeap(t, mg, 1)

	err := h.Resize((types.MaxZones + 1) * types.VirtualPageSize)
	require.ErrorIs(t, err, types.ErrTooLarge)
	assert.Zero(t, famatomic.Load32(&h.m.busy))
	assert.Equal(t, uint64(types.VirtualPageSize), h.Size())
}

func TestHeap_ClosedHandleStillReportsSize(t *testing.T) {
	f := newFixture(t)
	a, b := f.manager(t), f.manager(t)
	require.NoError(t, a.CreateHeap(1, types.MiB))

	closed, err := b.FindHeap(1)
	require.NoError(t, err)

	require.NoError(t, f.openHeap(t, a, 1).Resize(2*types.MiB))
	assert.Equal(t, uint64(2*types.MiB), closed.Size())
}

// TestHeap_BusyConvergence runs the reference scenario with one root shelf
// mapping per worker inside this process.
func TestHeap_BusyConvergence(t *testing.T) {
	const workers = 32
	const unit = types.MiB
	target := uint64(2 * workers * unit)

	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, unit))

	managers := make([]*Manager, workers)
	for i := range managers {
		managers[i] = f.manager(t)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = growUntil(managers[i], 1, uint64(i%4+1)*unit, target)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	h, err := mg.FindHeap(1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h.Size(), target)
	assert.Zero(t, h.Stats().BusyPID)

	require.NoError(t, mg.DestroyHeap(1))
	require.ErrorIs(t, mg.DestroyHeap(1), types.ErrNotFound)
}

func TestHeap_ResizeHugeRequest(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, 4*types.MiB))
	h := f.openHeap(t, mg, 1)

	for _, n := range []uint64{math.MaxUint64, math.MaxUint64 - types.MiB + 2} {
		err := h.Resize(n)
		require.ErrorIs(t, err, types.ErrTooLarge, "size %d", n)
		assert.Equal(t, uint64(4*types.MiB), h.Size())
		assert.Equal(t, uint64(1), h.Stats().Zones)
		assert.Zero(t, famatomic.Load32(&h.m.busy))
	}
}

func TestHeap_ResizeKeepsHalfPublishedZones(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.MiB))
	h := f.openHeap(t, mg, 1)

	// The dead holder created and published zones 1-3, then died before
	// storing size or bumping the epoch.
	for z := 1; z < 4; z++ {
		require.NoError(t, createZone(mg.name(1, h.gen, z), 1, h.gen, z, types.MiB))
	}
	famatomic.Store64(&h.m.zoneCount, 4)
	famatomic.Store32(&h.m.busy, deadPID)

	p := types.MakeGlobalPtr(3, ZoneHeaderSize+BlockHeaderSize)
	_, err := h.Bytes(p, 8)
	require.NoError(t, err)

	require.NoError(t, h.Resize(2*types.MiB))
	assert.Equal(t, uint64(4), h.Stats().Zones)
	assert.Equal(t, uint64(4*types.MiB), h.Size())
	assert.Zero(t, famatomic.Load32(&h.m.busy))

	_, err = h.Bytes(p, 8)
	require.NoError(t, err)
}

func TestHeap_ResizeRepairsSizeWithoutNewZones(t *testing.T) {
	f := newFixture(t)
	mg := f.manager(t)
	require.NoError(t, mg.CreateHeap(1, types.MiB))
	h := f.openHeap(t, mg, 1)

	require.NoError(t, createZone(mg.name(1, h.gen, 1), 1, h.gen, 1, types.MiB))
	famatomic.Store64(&h.m.zoneCount, 2)
	epoch := h.Stats().Epoch

	require.NoError(t, h.Resize(2*types.MiB))
	assert.Equal(t, uint64(2*types.MiB), h.Size())
	assert.Equal(t, epoch+1, h.Stats().Epoch)
}
