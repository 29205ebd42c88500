package heap

import (
	"fmt"
	"path/filepath"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/shelf"
)

const zoneInfix = "_NVMM_HEAP_"

// ZoneNamer maps a zone to its shelf file path. The generation keeps the
// files of a destroyed heap apart from those of a later heap with the same id.
type ZoneNamer func(pool types.PoolID, gen uint64, zone int) string

// ZonePathIn returns the standard namer:
// <dir>/<user>_NVMM_HEAP_<pool>_<gen>_<zone>.
func ZonePathIn(dir, user string) ZoneNamer {
	return func(pool types.PoolID, gen uint64, zone int) string {
		return filepath.Join(dir, fmt.Sprintf("%s%s%d_%d_%d", user, zoneInfix, pool, gen, zone))
	}
}

// ZoneGlobIn matches every zone file of user in dir, whatever its pool.
func ZoneGlobIn(dir, user string) string {
	return filepath.Join(dir, user+zoneInfix+"*")
}

// createZone makes sure the zone file exists with its header. Safe to call
// again for a zone a crashed resize left behind.
func createZone(path string, pool types.PoolID, gen uint64, zone int, size uint64) error {
	s := shelf.New(path)
	if err := s.Ensure(int64(size)); err != nil {
		return err
	}
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()

	// Back every page before the zone is published.
	if err := s.Prefault(); err != nil {
		return err
	}

	h := (*zoneHeader)(s.Base())
	famatomic.Store32(&h.pool, uint32(pool))
	famatomic.Store32(&h.zone, uint32(zone))
	famatomic.Store64(&h.gen, gen)
	famatomic.Store64(&h.size, size)
	famatomic.Store64(&h.magic, ZoneMagic)
	return s.SyncRange(0, ZoneHeaderSize)
}

// openZone maps a zone and checks that it is the one expected.
func openZone(path string, pool types.PoolID, gen uint64, zone int, size uint64) (*shelf.Shelf, error) {
	s := shelf.New(path)
	if err := s.Open(); err != nil {
		return nil, err
	}
	h := (*zoneHeader)(s.Base())
	switch {
	case uint64(s.Size()) < size:
		err := fmt.Errorf("zone %d is %d bytes, want %d", zone, s.Size(), size)
		_ = s.Close()
		return nil, types.Errorf(types.ErrCorrupt, path, err)
	case famatomic.Load64(&h.magic) != ZoneMagic,
		famatomic.Load32(&h.pool) != uint32(pool),
		famatomic.Load32(&h.zone) != uint32(zone),
		famatomic.Load64(&h.gen) != gen:
		_ = s.Close()
		return nil, types.Errorf(types.ErrCorrupt, "zone header mismatch "+path, nil)
	}
	return s, nil
}

// removeZone deletes a zone file, ignoring a missing one.
func removeZone(path string) error {
	err := shelf.New(path).Destroy()
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
