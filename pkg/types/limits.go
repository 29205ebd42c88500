package types

// ============================================================================
// Allocator Limits
// ============================================================================
// These constants are part of the persisted layout. Every process mapping the
// same shelves must be built with the same values.

const (
	// CacheLineSize is the alignment of every block pushed on a Stack.
	CacheLineSize = 64

	// VirtualPageSize is the granularity zones are rounded up to.
	VirtualPageSize = 64 << 10 // 65,536 bytes

	// MaxPools bounds the pool id space; valid ids are 1..MaxPools-1.
	MaxPools = 1024

	// MaxZones is the largest number of zones a single heap may grow to.
	MaxZones = 4096

	// MaxZoneSize caps a single zone so that offsets fit in a GlobalPtr.
	MaxZoneSize = 1 << OffsetBits

	// KiB, MiB and GiB are byte multipliers.
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// RoundUp rounds non-negative x up to the nearest multiple of multiple.
func RoundUp(x, multiple uint64) uint64 {
	return (x + multiple - 1) / multiple * multiple
}

// RoundDown rounds non-negative x down to the nearest multiple of multiple.
func RoundDown(x, multiple uint64) uint64 {
	return x / multiple * multiple
}

// CeilDiv returns x/d rounded up without overflowing for x near the top of
// the uint64 range.
func CeilDiv(x, d uint64) uint64 {
	return x/d + min(x%d, 1)
}
