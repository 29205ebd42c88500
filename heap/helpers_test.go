//go:build linux || darwin

package heap

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/famkit/internal/retry"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/rootshelf"
)

const (
	testUser = "tester"
	rootName = testUser + "_NVMM_ROOT"

	// deadPID is above any kernel pid_max, so kill(2) reports ESRCH.
	deadPID uint32 = 1 << 30
)

type fixture struct {
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}
	require.NoError(t, rootshelf.New(f.rootPath()).Create())
	return f
}

func (f *fixture) rootPath() string { return filepath.Join(f.dir, rootName) }

// manager opens a fresh mapping of the root shelf, standing in for another
// process.
func (f *fixture) manager(t *testing.T) *Manager {
	t.Helper()
	mg, err := openManager(f.dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mg.root.Close() })
	return mg
}

func (f *fixture) openHeap(t *testing.T, mg *Manager, id types.PoolID) *Heap {
	t.Helper()
	h, err := mg.FindHeap(id)
	require.NoError(t, err)
	require.NoError(t, h.Open())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func openManager(dir string) (*Manager, error) {
	r := rootshelf.New(filepath.Join(dir, rootName))
	if err := r.Open(); err != nil {
		return nil, err
	}
	mg, err := NewManager(r, ZonePathIn(dir, testUser))
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return mg, nil
}

// growUntil is the reference resize worker: grow by step until the heap
// holds target bytes, retrying while busy. Sizes observed must never drop.
func growUntil(mg *Manager, id types.PoolID, step, target uint64) error {
	h, err := mg.FindHeap(id)
	if err != nil {
		return err
	}
	if err := h.Open(); err != nil {
		return err
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	last := uint64(0)
	for {
		size := h.Size()
		if size < last {
			return fmt.Errorf("size went backwards: %d after %d", size, last)
		}
		last = size
		if size >= target {
			return nil
		}
		if err := retry.OnBusy(ctx, func() error { return h.Resize(h.Size() + step) }); err != nil {
			return err
		}
	}
}
