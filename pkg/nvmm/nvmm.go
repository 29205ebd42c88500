// Package nvmm bootstraps the allocator for one process: it makes sure the
// root shelf exists, maps it, and hands out a heap.Manager.
//
//	cfg, _ := config.Load("")
//	ctx, err := nvmm.Start(cfg)
//	if err != nil { ... }
//	defer ctx.Close()
//
//	_ = ctx.Manager().CreateHeap(1, 1<<20)
//	h, err := ctx.OpenHeap(1)
package nvmm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joshuapare/famkit/heap"
	"github.com/joshuapare/famkit/internal/config"
	"github.com/joshuapare/famkit/internal/logger"
	"github.com/joshuapare/famkit/internal/retry"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/rootshelf"
)

// openAttempts bounds how long Start waits for a concurrent creator to tag
// the root shelf.
const openAttempts = 30

// Context is one process's view of the allocator.
type Context struct {
	cfg  config.Config
	root *rootshelf.RootShelf
	mgr  *heap.Manager
}

// Start creates the root shelf if nobody has yet, opens it and builds a
// Manager. Any number of processes may call Start at once.
func Start(cfg config.Config) (*Context, error) {
	if err := heap.Supported(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.CheckBase(); err != nil {
		return nil, err
	}

	root := rootshelf.New(cfg.RootShelfPath())
	if !root.Exist() {
		err := root.Create()
		// Losing the creation race is fine; the winner may still be
		// writing, which openRoot waits out.
		if err != nil && !errors.Is(err, types.ErrAlreadyExists) && !errors.Is(err, types.ErrCorrupt) {
			return nil, fmt.Errorf("nvmm: create root shelf: %w", err)
		}
	}
	if err := openRoot(root); err != nil {
		return nil, fmt.Errorf("nvmm: open root shelf: %w", err)
	}

	mgr, err := heap.NewManager(root, cfg.HeapZones())
	if err != nil {
		_ = root.Close()
		return nil, err
	}
	logger.Debug("nvmm started", "root", root.Path(), "pid", os.Getpid())
	return &Context{cfg: cfg, root: root, mgr: mgr}, nil
}

func openRoot(root *rootshelf.RootShelf) error {
	untagged := func(err error) bool { return errors.Is(err, types.ErrCorrupt) }
	return retry.Attempts(openAttempts, untagged, root.Open)
}

// Config returns the configuration the context was started with.
func (c *Context) Config() config.Config { return c.cfg }

// Root returns the mapped root shelf.
func (c *Context) Root() *rootshelf.RootShelf { return c.root }

// Manager returns the heap manager.
func (c *Context) Manager() *heap.Manager { return c.mgr }

// OpenHeap finds and opens the heap with the given id.
func (c *Context) OpenHeap(id types.PoolID) (*heap.Heap, error) {
	h, err := c.mgr.FindHeap(id)
	if err != nil {
		return nil, err
	}
	if err := h.Open(); err != nil {
		return nil, err
	}
	return h, nil
}

// Close unmaps the root shelf. Heaps opened through the context must be
// closed by the caller.
func (c *Context) Close() error {
	return c.root.Close()
}

// Reset deletes the root shelf and every heap zone file of the configured
// user. Nothing may be running against them.
func Reset(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	zones, err := filepath.Glob(cfg.HeapZoneGlob())
	if err != nil {
		return err
	}

	var errs []error
	for _, z := range zones {
		if err := os.Remove(z); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := rootshelf.New(cfg.RootShelfPath()).Destroy(); err != nil && !errors.Is(err, types.ErrNotFound) {
		errs = append(errs, err)
	}
	logger.Info("nvmm reset", "base", cfg.ShelfBase, "user", cfg.ShelfUser, "zones", len(zones))
	return errors.Join(errs...)
}
