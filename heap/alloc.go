package heap

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/pkg/types"
)

// blockMagic marks an allocated block. A block on a freelist has its link
// in the same word, so a double Free is normally caught.
const blockMagic uint32 = 0xb10cb10c

// blockHeader precedes every payload.
type blockHeader struct {
	magic uint32
	class uint32
	_     uint64
}

// Alloc returns a block of at least n bytes. The payload is 16-byte
// aligned and its contents are undefined. types.ErrNoSpace means every zone
// is used up; the caller may Resize and retry.
func (h *Heap) Alloc(n uint64) (types.GlobalPtr, error) {
	if !h.IsOpen() {
		return types.NullPtr, types.Errorf(types.ErrNotOpen, fmt.Sprintf("heap %d", h.id), nil)
	}
	if n > MaxAlloc {
		return types.NullPtr, types.Errorf(types.ErrTooLarge, fmt.Sprintf("alloc of %d bytes", n), nil)
	}
	class, _ := classes.classFor(max(n, 1) + BlockHeaderSize)
	size := classes.blockSize(class)

	block := h.m.free[class].Pop(h)
	if block == types.NullOffset {
		var err error
		if block, err = h.bump(size); err != nil {
			return types.NullPtr, err
		}
	}

	hdr := (*blockHeader)(h.Addr(block))
	famatomic.Store32(&hdr.class, uint32(class))
	famatomic.Store32(&hdr.magic, blockMagic)
	return types.GlobalPtr(block).Add(BlockHeaderSize), nil
}

// Free returns a block obtained from Alloc on this heap.
func (h *Heap) Free(p types.GlobalPtr) error {
	block, class, err := h.block(p)
	if err != nil {
		return err
	}
	famatomic.Store32(&(*blockHeader)(h.Addr(block)).magic, 0)
	h.m.free[class].Push(h, block)
	return nil
}

// Bytes returns the n bytes at p as a slice aliasing shared memory. The
// range must not cross a zone boundary.
func (h *Heap) Bytes(p types.GlobalPtr, n uint64) ([]byte, error) {
	if !h.IsOpen() {
		return nil, types.Errorf(types.ErrNotOpen, fmt.Sprintf("heap %d", h.id), nil)
	}
	if p.IsNull() || !h.inZone(p, n) {
		return nil, types.Errorf(types.ErrBadPointer, p.String(), nil)
	}
	return unsafe.Slice((*byte)(h.Addr(types.Offset(p))), n), nil
}

// BlockSize returns the usable payload size of the block at p.
func (h *Heap) BlockSize(p types.GlobalPtr) (uint64, error) {
	_, class, err := h.block(p)
	if err != nil {
		return 0, err
	}
	return classes.blockSize(class) - BlockHeaderSize, nil
}

// block validates p and returns its block offset and class.
func (h *Heap) block(p types.GlobalPtr) (types.Offset, int, error) {
	if !h.IsOpen() {
		return 0, 0, types.Errorf(types.ErrNotOpen, fmt.Sprintf("heap %d", h.id), nil)
	}
	bad := types.Errorf(types.ErrBadPointer, p.String(), nil)
	off := uint64(p.Offset())
	if off < ZoneHeaderSize+BlockHeaderSize || (off-BlockHeaderSize)%types.CacheLineSize != 0 {
		return 0, 0, bad
	}
	block := types.Offset(p) - BlockHeaderSize
	if !h.inZone(types.GlobalPtr(block), BlockHeaderSize) {
		return 0, 0, bad
	}

	hdr := (*blockHeader)(h.Addr(block))
	class := int(famatomic.Load32(&hdr.class))
	if famatomic.Load32(&hdr.magic) != blockMagic || class >= classes.NumClasses() {
		return 0, 0, bad
	}
	if !h.inZone(types.GlobalPtr(block), classes.blockSize(class)) {
		return 0, 0, bad
	}
	return block, class, nil
}

// inZone reports whether [p, p+n) lies inside one published zone.
func (h *Heap) inZone(p types.GlobalPtr, n uint64) bool {
	zones := famatomic.Load64(&h.m.zoneCount)
	zoneSize := famatomic.Load64(&h.m.zoneSize)
	off := uint64(p.Offset())
	return uint64(p.Shelf()) < zones && off >= ZoneHeaderSize && off <= zoneSize && n <= zoneSize-off
}

// bump carves a fresh block of size bytes from the shared cursor, moving it
// to the start of the next zone when the current one is too full.
func (h *Heap) bump(size uint64) (types.Offset, error) {
	zoneSize := famatomic.Load64(&h.m.zoneSize)
	if size > zoneSize-ZoneHeaderSize {
		return 0, types.Errorf(types.ErrTooLarge, fmt.Sprintf("block of %d bytes in %d byte zones", size, zoneSize), nil)
	}
	for {
		cur := types.GlobalPtr(famatomic.Load64(&h.m.cursor))
		zone := uint64(cur.Shelf())
		if uint64(cur.Offset())+size <= zoneSize {
			if famatomic.CompareAndStore64(&h.m.cursor, uint64(cur), uint64(cur.Add(size))) == uint64(cur) {
				return types.Offset(cur), nil
			}
			continue
		}
		if zone+1 >= famatomic.Load64(&h.m.zoneCount) {
			return 0, types.Errorf(types.ErrNoSpace, fmt.Sprintf("heap %d", h.id), nil)
		}
		next := types.MakeGlobalPtr(uint16(zone+1), ZoneHeaderSize)
		famatomic.CompareAndStore64(&h.m.cursor, uint64(cur), uint64(next))
	}
}
