package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/famkit/heap"
	"github.com/joshuapare/famkit/internal/retry"
	"github.com/joshuapare/famkit/pkg/nvmm"
	"github.com/joshuapare/famkit/pkg/types"
	"github.com/joshuapare/famkit/rootshelf"
)

var (
	heapCreateSize string
	heapTimeout    time.Duration
)

func init() {
	rootCmd.AddCommand(newHeapCmd())
}

func newHeapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heap",
		Short: "Create, inspect, resize or destroy a heap",
	}

	create := &cobra.Command{
		Use:   "create <pool>",
		Short: "Create a heap (and the root shelf if needed)",
		Long: `The create command publishes a new heap under the given pool id. The
size is rounded up to 64 KiB and becomes the zone size of the heap.

Example:
  famctl heap create 1 --size 1MiB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeapCreate(args)
		},
	}
	create.Flags().StringVarP(&heapCreateSize, "size", "s", "1MiB", "Initial size")

	resize := &cobra.Command{
		Use:   "resize <pool> <size>",
		Short: "Grow a heap, retrying while another process resizes it",
		Long: `The resize command grows a heap to at least the given size. Heaps never
shrink; a smaller size succeeds without changes.

Example:
  famctl heap resize 1 64MiB --timeout 5s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeapResize(args)
		},
	}
	resize.Flags().DurationVar(&heapTimeout, "timeout", 10*time.Second, "Give up after this long when busy")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "destroy <pool>",
			Short: "Destroy a heap and delete its zones",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHeapDestroy(args)
			},
		},
		&cobra.Command{
			Use:   "info <pool>",
			Short: "Show a heap's shared state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHeapInfo(args)
			},
		},
		resize,
	)
	return cmd
}

func parsePool(s string) (types.PoolID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pool id %q", s)
	}
	id := types.PoolID(n)
	return id, id.Check()
}

func newManager(r *rootshelf.RootShelf) (*heap.Manager, error) {
	return heap.NewManager(r, cfg.HeapZones())
}

// withManager opens the existing root shelf for the duration of fn.
func withManager(fn func(*heap.Manager) error) error {
	r := rootshelf.New(cfg.RootShelfPath())
	if err := r.Open(); err != nil {
		return err
	}
	defer r.Close()

	mgr, err := newManager(r)
	if err != nil {
		return err
	}
	return fn(mgr)
}

func runHeapCreate(args []string) error {
	id, err := parsePool(args[0])
	if err != nil {
		return err
	}
	size, err := parseSize(heapCreateSize)
	if err != nil {
		return err
	}

	ctx, err := nvmm.Start(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	if err := ctx.Manager().CreateHeap(id, size); err != nil {
		return err
	}
	printInfo("Created heap %d\n", id)
	return nil
}

func runHeapDestroy(args []string) error {
	id, err := parsePool(args[0])
	if err != nil {
		return err
	}
	return withManager(func(mgr *heap.Manager) error {
		if err := mgr.DestroyHeap(id); err != nil {
			return err
		}
		printInfo("Destroyed heap %d\n", id)
		return nil
	})
}

func runHeapResize(args []string) error {
	id, err := parsePool(args[0])
	if err != nil {
		return err
	}
	size, err := parseSize(args[1])
	if err != nil {
		return err
	}

	return withManager(func(mgr *heap.Manager) error {
		h, err := mgr.FindHeap(id)
		if err != nil {
			return err
		}
		if err := h.Open(); err != nil {
			return err
		}
		defer h.Close()

		ctx, cancel := context.WithTimeout(context.Background(), heapTimeout)
		defer cancel()

		attempts := 0
		err = retry.OnBusy(ctx, func() error {
			attempts++
			return h.Resize(size)
		})
		if err != nil {
			return fmt.Errorf("resize heap %d after %d attempts: %w", id, attempts, err)
		}
		printVerbose("Resize took %d attempt(s)\n", attempts)
		printInfo("Heap %d is %s\n", id, formatSize(h.Size()))
		return nil
	})
}

type heapInfo struct {
	Pool       uint32 `json:"pool"`
	Size       uint64 `json:"size"`
	ZoneSize   uint64 `json:"zone_size"`
	Zones      uint64 `json:"zones"`
	Epoch      uint64 `json:"epoch"`
	Generation uint64 `json:"generation"`
	BusyPID    uint32 `json:"busy_pid"`
	Cursor     string `json:"cursor"`
}

func runHeapInfo(args []string) error {
	id, err := parsePool(args[0])
	if err != nil {
		return err
	}
	return withManager(func(mgr *heap.Manager) error {
		h, err := mgr.FindHeap(id)
		if err != nil {
			return err
		}
		st := h.Stats()
		info := heapInfo{
			Pool:       uint32(st.Pool),
			Size:       st.Size,
			ZoneSize:   st.ZoneSize,
			Zones:      st.Zones,
			Epoch:      st.Epoch,
			Generation: st.Generation,
			BusyPID:    st.BusyPID,
			Cursor:     st.Cursor.String(),
		}
		if jsonOut {
			return printJSON(info)
		}

		printInfo("\nHeap %d:\n", info.Pool)
		printInfo("  Size:       %s\n", formatSize(info.Size))
		printInfo("  Zones:      %d x %s\n", info.Zones, formatSize(info.ZoneSize))
		printInfo("  Epoch:      %d\n", info.Epoch)
		printInfo("  Generation: %d\n", info.Generation)
		printInfo("  Cursor:     %s\n", info.Cursor)
		if info.BusyPID != 0 {
			printInfo("  Resizing:   pid %s\n", strconv.FormatUint(uint64(info.BusyPID), 10))
		}
		return nil
	})
}
