// Package shelf implements a named, independently mappable region of
// persistent memory backed by a file.
//
// A Shelf is the unit every other layer builds on: it supplies raw storage
// and, once opened, a process-local base address. Locations inside a shelf
// are always exchanged between processes as types.Offset values because two
// processes generally map the same shelf at different addresses.
//
// A *Shelf handle is owned by the process (and goroutine) that opened it;
// Open and Close are not safe for concurrent use on the same handle.
package shelf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unsafe"

	"github.com/joshuapare/famkit/internal/mmfile"
	"github.com/joshuapare/famkit/pkg/types"
)

// Perm is the permission used for new shelf files. Shelves are meant to be
// shared by cooperating processes of one user or group.
const Perm fs.FileMode = 0o660

// Shelf is a file-backed region mapped MAP_SHARED into this process.
type Shelf struct {
	path string
	f    *os.File
	data []byte
}

// New returns a closed handle for the shelf at path. No I/O is performed.
func New(path string) *Shelf {
	return &Shelf{path: path}
}

// Path returns the shelf file path.
func (s *Shelf) Path() string { return s.path }

// Exist reports whether the shelf file is present.
func (s *Shelf) Exist() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Create exclusively creates the shelf file with the given size. The new
// bytes are zero-filled by the OS. Returns types.ErrAlreadyExists if the
// file is already present.
func (s *Shelf) Create(size int64) error {
	if size <= 0 {
		return fmt.Errorf("shelf: invalid size %d for %s", size, s.path)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, Perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return types.Errorf(types.ErrAlreadyExists, s.path, nil)
		}
		return fmt.Errorf("shelf: create %s: %w", s.path, err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		_ = os.Remove(s.path)
		return fmt.Errorf("shelf: size %s: %w", s.path, err)
	}
	return mmfile.Datasync(f)
}

// Ensure creates the shelf file if needed and makes it at least size bytes.
// It is idempotent, so a creation interrupted by a crash can be completed by
// whoever calls Ensure next.
func (s *Shelf) Ensure(size int64) error {
	if size <= 0 {
		return fmt.Errorf("shelf: invalid size %d for %s", size, s.path)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, Perm)
	if err != nil {
		return fmt.Errorf("shelf: open %s: %w", s.path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("shelf: stat %s: %w", s.path, err)
	}
	if st.Size() < size {
		if err := f.Truncate(size); err != nil {
			return fmt.Errorf("shelf: size %s: %w", s.path, err)
		}
		return mmfile.Datasync(f)
	}
	return nil
}

// Destroy removes the shelf file. Other processes that still map it keep
// their pages until they unmap; callers must not destroy a live shelf.
func (s *Shelf) Destroy() error {
	if s.IsOpen() {
		if err := s.Close(); err != nil {
			return err
		}
	}
	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Errorf(types.ErrNotFound, s.path, nil)
		}
		return fmt.Errorf("shelf: remove %s: %w", s.path, err)
	}
	return nil
}

// Open maps the whole shelf file read-write into this process.
func (s *Shelf) Open() error {
	if s.IsOpen() {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Errorf(types.ErrNotFound, s.path, nil)
		}
		return fmt.Errorf("shelf: open %s: %w", s.path, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("shelf: stat %s: %w", s.path, err)
	}
	if st.Size() == 0 {
		_ = f.Close()
		return types.Errorf(types.ErrCorrupt, "empty shelf "+s.path, nil)
	}

	data, err := mmfile.Map(f, int(st.Size()))
	if err != nil {
		_ = f.Close()
		return types.Errorf(types.ErrCorrupt, "map "+s.path, err)
	}

	s.f = f
	s.data = data
	return nil
}

// Close unmaps the shelf and closes its file. Closing a closed shelf is a no-op.
func (s *Shelf) Close() error {
	var err error
	if s.data != nil {
		err = mmfile.Unmap(s.data)
		s.data = nil
	}
	if s.f != nil {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
		s.f = nil
	}
	return err
}

// IsOpen reports whether the shelf is mapped in this process.
func (s *Shelf) IsOpen() bool { return s.data != nil }

// Size returns the mapped length, or 0 when closed.
func (s *Shelf) Size() int64 { return int64(len(s.data)) }

// Bytes returns the mapped region. The slice aliases shared memory and is
// invalid after Close.
func (s *Shelf) Bytes() []byte { return s.data }

// Base returns the process-local base address, or nil when closed.
func (s *Shelf) Base() unsafe.Pointer {
	if len(s.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&s.data[0])
}

// Addr resolves off to a process-local address. It panics if the shelf is
// closed or off is outside the mapping.
func (s *Shelf) Addr(off types.Offset) unsafe.Pointer {
	if !s.Contains(off, 1) {
		panic(fmt.Sprintf("shelf: offset 0x%x outside %s (%d bytes)", uint64(off), s.path, len(s.data)))
	}
	return unsafe.Add(s.Base(), uintptr(off))
}

// Contains reports whether [off, off+n) lies inside the mapping.
func (s *Shelf) Contains(off types.Offset, n uint64) bool {
	end := uint64(off) + n
	return end >= uint64(off) && end <= uint64(len(s.data))
}

// Sync flushes the whole mapping to the backing file.
func (s *Shelf) Sync() error {
	if !s.IsOpen() {
		return types.Errorf(types.ErrNotOpen, s.path, nil)
	}
	return mmfile.Sync(s.data)
}

// SyncRange flushes the page-aligned range covering [off, off+n).
func (s *Shelf) SyncRange(off types.Offset, n uint64) error {
	if !s.IsOpen() {
		return types.Errorf(types.ErrNotOpen, s.path, nil)
	}
	if !s.Contains(off, n) {
		return types.Errorf(types.ErrBadPointer, fmt.Sprintf("sync 0x%x+%d outside %s", uint64(off), n, s.path), nil)
	}
	page := uint64(os.Getpagesize())
	start := types.RoundDown(uint64(off), page)
	end := min(types.RoundUp(uint64(off)+n, page), uint64(len(s.data)))
	if start >= end {
		return nil
	}
	return mmfile.Sync(s.data[start:end])
}

// Prefault pre-faults every page of the mapping.
func (s *Shelf) Prefault() error {
	if !s.IsOpen() {
		return types.Errorf(types.ErrNotOpen, s.path, nil)
	}
	return mmfile.Populate(s.data)
}
