//go:build linux || darwin

package stack

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/shelf"
)

const blockSize = types.CacheLineSize

// newShelf creates a shelf with the Stack at offset 0 and n blocks after it.
func newShelf(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack")
	require.NoError(t, shelf.New(path).Create(int64((n+1)*blockSize)))
	return path
}

func openShelf(t *testing.T, path string) *shelf.Shelf {
	t.Helper()
	s := shelf.New(path)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func blockOffset(i int) types.Offset {
	return types.Offset((i + 1) * blockSize)
}

func TestStackLayout(t *testing.T) {
	var s Stack
	require.Equal(t, uintptr(Size), unsafe.Sizeof(s))
}

func TestStack_PushPopLIFO(t *testing.T) {
	sh := openShelf(t, newShelf(t, 4))
	s := At(sh.Base())

	require.True(t, s.Empty())
	require.Equal(t, types.NullOffset, s.Pop(sh))
	require.Zero(t, s.Counter())

	for i := range 3 {
		s.Push(sh, blockOffset(i))
	}
	require.False(t, s.Empty())
	require.Equal(t, uint64(3), s.Counter())

	require.Equal(t, blockOffset(2), s.Pop(sh))
	require.Equal(t, blockOffset(1), s.Pop(sh))
	require.Equal(t, blockOffset(0), s.Pop(sh))
	require.Equal(t, types.NullOffset, s.Pop(sh))
	require.True(t, s.Empty())

	// empty pops do not count
	require.Equal(t, uint64(6), s.Counter())

	s.Push(sh, blockOffset(3))
	s.Reset()
	require.True(t, s.Empty())
	require.Zero(t, s.Counter())
}

func TestStack_RejectsMisalignedBlocks(t *testing.T) {
	sh := openShelf(t, newShelf(t, 2))
	s := At(sh.Base())

	require.Panics(t, func() { s.Push(sh, types.NullOffset) })
	require.Panics(t, func() { s.Push(sh, blockOffset(0)+8) })
	require.Panics(t, func() { At(unsafe.Add(sh.Base(), 8)) })
}

func TestStack_RawRegionMatchesShelf(t *testing.T) {
	path := newShelf(t, 2)
	a := openShelf(t, path)
	b := openShelf(t, path)

	At(a.Base()).Push(Raw(a.Base()), blockOffset(1))
	At(a.Base()).Push(a, blockOffset(0))

	// b sees the blocks a linked, through its own base address
	sb := At(b.Base())
	require.Equal(t, blockOffset(0), sb.Pop(Raw(b.Base())))
	require.Equal(t, blockOffset(1), sb.Pop(b))
	require.True(t, sb.Empty())
}

// TestStack_ConcurrentMappings runs Push/Pop from several independent
// mappings of one shelf, standing in for separate processes. Every worker
// only pushes blocks it popped, so the final content must be exactly the
// initial set, and the counter must equal the number of successful calls.
func TestStack_ConcurrentMappings(t *testing.T) {
	const (
		mappings = 4
		workers  = 8
		blocks   = 64
		rounds   = 2000
	)
	path := newShelf(t, blocks)

	regions := make([]*shelf.Shelf, mappings)
	for i := range regions {
		regions[i] = openShelf(t, path)
	}

	seed := At(regions[0].Base())
	for i := range blocks {
		seed.Push(regions[0], blockOffset(i))
	}

	var mutations atomic.Uint64
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(r *shelf.Shelf) {
			defer wg.Done()
			s := At(r.Base())
			held := make([]types.Offset, 0, 4)
			for i := range rounds {
				if i%3 != 2 {
					if b := s.Pop(r); b != types.NullOffset {
						mutations.Add(1)
						held = append(held, b)
						continue
					}
				}
				if n := len(held); n > 0 {
					s.Push(r, held[n-1])
					held = held[:n-1]
					mutations.Add(1)
				}
			}
			for _, b := range held {
				s.Push(r, b)
				mutations.Add(1)
			}
		}(regions[w%mappings])
	}
	wg.Wait()

	s := At(regions[1].Base())
	assert.Equal(t, uint64(blocks)+mutations.Load(), s.Counter())

	seen := make(map[types.Offset]bool, blocks)
	for {
		b := s.Pop(regions[1])
		if b == types.NullOffset {
			break
		}
		require.False(t, seen[b], "block 0x%x popped twice", uint64(b))
		seen[b] = true
	}
	require.Len(t, seen, blocks)
	for i := range blocks {
		assert.True(t, seen[blockOffset(i)])
	}
}
