package heap

import (
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaLayout(t *testing.T) {
	var m meta
	assert.Equal(t, uintptr(EntrySize), unsafe.Sizeof(m))
	assert.Equal(t, uintptr(0x00), unsafe.Offsetof(m.state))
	assert.Equal(t, uintptr(0x04), unsafe.Offsetof(m.busy))
	assert.Equal(t, uintptr(0x08), unsafe.Offsetof(m.gen))
	assert.Equal(t, uintptr(0x10), unsafe.Offsetof(m.epoch))
	assert.Equal(t, uintptr(0x18), unsafe.Offsetof(m.size))
	assert.Equal(t, uintptr(0x20), unsafe.Offsetof(m.zoneSize))
	assert.Equal(t, uintptr(0x28), unsafe.Offsetof(m.zoneCount))
	assert.Equal(t, uintptr(0x30), unsafe.Offsetof(m.cursor))
	assert.Equal(t, uintptr(0x40), unsafe.Offsetof(m.free))
}

func TestZoneHeaderLayout(t *testing.T) {
	var z zoneHeader
	assert.Equal(t, uintptr(ZoneHeaderSize), unsafe.Sizeof(z))
	assert.Equal(t, uintptr(0x08), unsafe.Offsetof(z.pool))
	assert.Equal(t, uintptr(0x10), unsafe.Offsetof(z.gen))

	var b blockHeader
	assert.Equal(t, uintptr(BlockHeaderSize), unsafe.Sizeof(b))
}

func TestZonePathIn(t *testing.T) {
	name := ZonePathIn("/dev/shm", "alice")
	assert.Equal(t, "/dev/shm/alice_NVMM_HEAP_7_3_12", name(7, 3, 12))

	ok, err := filepath.Match(ZoneGlobIn("/dev/shm", "alice"), name(7, 3, 12))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = filepath.Match(ZoneGlobIn("/dev/shm", "bob"), name(7, 3, 12))
	require.NoError(t, err)
	assert.False(t, ok)
}
