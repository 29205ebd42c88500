package heap

// BlockHeaderSize bytes precede every payload handed out by Alloc.
const BlockHeaderSize = 16

// SizeClassConfig defines the block size strategy.
type SizeClassConfig struct {
	Name string

	// Small blocks grow linearly.
	SmallMin       uint64
	SmallMax       uint64
	SmallIncrement uint64

	// Larger blocks double until LargeMax.
	LargeMax uint64
}

// DefaultConfig: 64-1024 step 64 (16 classes) + 2K-64K doubling (6 classes).
var DefaultConfig = SizeClassConfig{
	Name:           "CacheLine",
	SmallMin:       64,
	SmallMax:       1024,
	SmallIncrement: 64,
	LargeMax:       64 << 10,
}

// sizeClassTable holds the computed block sizes, smallest first.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []uint64
}

func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{config: config, sizes: make([]uint64, 0, NumClasses)}

	// Phase 1: linear
	size := config.SmallMin
	for ; size <= config.SmallMax; size += config.SmallIncrement {
		t.sizes = append(t.sizes, size)
	}

	// Phase 2: doubling
	for size = config.SmallMax * 2; size <= config.LargeMax; size *= 2 {
		t.sizes = append(t.sizes, size)
	}

	if len(t.sizes) > NumClasses {
		panic("heap: size class table does not fit the metadata entry")
	}
	return t
}

// classFor returns the smallest class whose blocks hold n bytes.
func (t *sizeClassTable) classFor(n uint64) (int, bool) {
	lo, hi := 0, len(t.sizes)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if n <= t.sizes[mid] {
			if mid == 0 || n > t.sizes[mid-1] {
				return mid, true
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return 0, false
}

// blockSize returns the block size of class c.
func (t *sizeClassTable) blockSize(c int) uint64 { return t.sizes[c] }

// NumClasses returns the number of classes in use.
func (t *sizeClassTable) NumClasses() int { return len(t.sizes) }

// MaxBlock returns the largest block size.
func (t *sizeClassTable) MaxBlock() uint64 { return t.sizes[len(t.sizes)-1] }

func (t *sizeClassTable) String() string { return t.config.Name }

var classes = newSizeClassTable(DefaultConfig)

// MaxAlloc is the largest payload Alloc accepts.
var MaxAlloc = classes.MaxBlock() - BlockHeaderSize
