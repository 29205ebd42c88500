package rootshelf

import (
	"errors"
	"time"
	"unsafe"

	"github.com/joshuapare/famkit/internal/famatomic"
	"github.com/joshuapare/famkit/internal/logger"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/shelf"
)

const (
	// MagicNum tags an initialised root shelf.
	MagicNum uint64 = 766874353

	// ShelfSize is the fixed size of the root shelf.
	ShelfSize = 128 * types.MiB

	// Version of the header layout.
	Version uint32 = 1

	// HeaderSize is the size of the header at offset 0.
	HeaderSize = 64

	// MetadataOffset is where the metadata area handed to the heap package begins.
	MetadataOffset = 64 * types.KiB

	// MetadataSize is the number of bytes available from MetadataOffset.
	MetadataSize = ShelfSize - MetadataOffset
)

// header mirrors the first 64 bytes of the shelf.
type header struct {
	magic   uint64   // 0x00
	version uint32   // 0x08
	flags   uint32   // 0x0C
	size    uint64   // 0x10
	created int64    // 0x18
	_       [32]byte // 0x20-0x3F
}

// RootShelf is a process-local handle on the bootstrap shelf.
type RootShelf struct {
	s *shelf.Shelf
}

// New returns a closed handle for the root shelf at path.
func New(path string) *RootShelf {
	return &RootShelf{s: shelf.New(path)}
}

// Path returns the root shelf file path.
func (r *RootShelf) Path() string { return r.s.Path() }

// Exist reports whether the root shelf file is present. It does not check
// the tag.
func (r *RootShelf) Exist() bool { return r.s.Exist() }

// IsOpen reports whether the root shelf is mapped in this process.
func (r *RootShelf) IsOpen() bool { return r.s.IsOpen() }

// Addr returns the process-local base address, or nil when closed.
func (r *RootShelf) Addr() unsafe.Pointer { return r.s.Base() }

// Size returns the mapped length, or 0 when closed.
func (r *RootShelf) Size() int64 { return r.s.Size() }

// Bytes returns the mapped shelf, or nil when closed.
func (r *RootShelf) Bytes() []byte { return r.s.Bytes() }

// Shelf exposes the underlying shelf, e.g. to resolve offsets for a Stack.
func (r *RootShelf) Shelf() *shelf.Shelf { return r.s }

// Create initialises a new root shelf. It returns types.ErrAlreadyExists if
// a tagged root shelf is present and types.ErrCorrupt if an untagged file
// occupies the path.
func (r *RootShelf) Create() error {
	if err := r.s.Create(ShelfSize); err != nil {
		if !errors.Is(err, types.ErrAlreadyExists) {
			return err
		}
		if tagErr := r.checkTagged(); tagErr != nil {
			return tagErr
		}
		return types.Errorf(types.ErrAlreadyExists, "root shelf "+r.Path(), nil)
	}

	tmp := shelf.New(r.Path())
	if err := tmp.Open(); err != nil {
		return err
	}
	defer tmp.Close()

	h := (*header)(tmp.Base())
	famatomic.Store32(&h.version, Version)
	famatomic.Store32(&h.flags, 0)
	famatomic.Store64(&h.size, uint64(ShelfSize))
	famatomic.Store64((*uint64)(unsafe.Pointer(&h.created)), uint64(time.Now().UnixNano()))
	if err := tmp.Sync(); err != nil {
		return types.Errorf(types.ErrCorrupt, "sync root shelf "+r.Path(), err)
	}

	// The tag goes last.
	famatomic.Store64(&h.magic, MagicNum)
	if err := tmp.SyncRange(0, HeaderSize); err != nil {
		return types.Errorf(types.ErrCorrupt, "sync root shelf tag "+r.Path(), err)
	}

	logger.Info("root shelf created", "path", r.Path(), "size", ShelfSize)
	return nil
}

// checkTagged maps the shelf briefly and validates it. It returns nil for a
// valid root shelf.
func (r *RootShelf) checkTagged() error {
	tmp := shelf.New(r.Path())
	if err := tmp.Open(); err != nil {
		return err
	}
	defer tmp.Close()
	return validate(tmp)
}

// Open maps the root shelf and verifies its tag.
func (r *RootShelf) Open() error {
	if r.IsOpen() {
		return nil
	}
	if err := r.s.Open(); err != nil {
		return err
	}
	if err := validate(r.s); err != nil {
		_ = r.s.Close()
		return err
	}
	logger.Debug("root shelf opened", "path", r.Path(), "base", r.s.Base())
	return nil
}

// Close unmaps the root shelf.
func (r *RootShelf) Close() error {
	return r.s.Close()
}

// Destroy removes the root shelf file. Returns types.ErrNotFound if absent.
func (r *RootShelf) Destroy() error {
	if err := r.s.Destroy(); err != nil {
		return err
	}
	logger.Info("root shelf destroyed", "path", r.Path())
	return nil
}

// Created returns the creation time recorded in the header, or the zero
// time when closed.
func (r *RootShelf) Created() time.Time {
	if !r.IsOpen() {
		return time.Time{}
	}
	h := (*header)(r.s.Base())
	return time.Unix(0, int64(famatomic.Load64((*uint64)(unsafe.Pointer(&h.created)))))
}

// Metadata returns the process-local address of the metadata area, or nil
// when closed.
func (r *RootShelf) Metadata() unsafe.Pointer {
	if !r.IsOpen() {
		return nil
	}
	return r.s.Addr(MetadataOffset)
}

func validate(s *shelf.Shelf) error {
	if s.Size() != ShelfSize {
		return types.Errorf(types.ErrCorrupt, "root shelf size mismatch", nil)
	}
	h := (*header)(s.Base())
	if famatomic.Load64(&h.magic) != MagicNum {
		return types.Errorf(types.ErrCorrupt, "root shelf magic missing or invalid", nil)
	}
	if v := famatomic.Load32(&h.version); v != Version {
		return types.Errorf(types.ErrCorrupt, "unsupported root shelf version", nil)
	}
	return nil
}
