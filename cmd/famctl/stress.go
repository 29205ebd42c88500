package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/famkit/internal/logger"
	"github.com/joshuapare/famkit/internal/retry"
	"github.com/joshuapare/famkit/pkg/nvmm"
	"github.com/joshuapare/famkit/pkg/types"
)

var (
	stressPool    uint32
	stressWorkers int
	stressSize    string
	stressTimeout time.Duration

	workerStep   uint64
	workerTarget uint64
)

func init() {
	rootCmd.AddCommand(newStressCmd(), newStressWorkerCmd())
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Grow one heap from many processes at once",
		Long: `The stress command creates a heap of --size bytes, then starts --workers
child processes. Worker i keeps calling Resize(size + step) with
step = size*(i%4+1) until the heap holds 2*workers*size bytes, retrying
whenever another worker holds the resize indicator. Afterwards the heap is
destroyed, and a second destroy must report that it is gone.

Example:
  famctl stress --pool 1 --workers 32 --size 1MiB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	cmd.Flags().Uint32Var(&stressPool, "pool", 1, "Pool id to use")
	cmd.Flags().IntVar(&stressWorkers, "workers", 32, "Number of worker processes")
	cmd.Flags().StringVar(&stressSize, "size", "1MiB", "Initial heap size and resize unit")
	cmd.Flags().DurationVar(&stressTimeout, "timeout", time.Minute, "Per-worker deadline")
	return cmd
}

func newStressWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "stress-worker",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStressWorker()
		},
	}
	cmd.Flags().Uint32Var(&stressPool, "pool", 1, "")
	cmd.Flags().Uint64Var(&workerStep, "step", types.MiB, "")
	cmd.Flags().Uint64Var(&workerTarget, "target", 0, "")
	cmd.Flags().DurationVar(&stressTimeout, "timeout", time.Minute, "")
	return cmd
}

type stressResult struct {
	Workers   int     `json:"workers"`
	Failed    int     `json:"failed"`
	FinalSize uint64  `json:"final_size"`
	Target    uint64  `json:"target"`
	Seconds   float64 `json:"seconds"`
}

func runStress() error {
	id := types.PoolID(stressPool)
	if err := id.Check(); err != nil {
		return err
	}
	unit, err := parseSize(stressSize)
	if err != nil {
		return err
	}
	if stressWorkers < 1 {
		return fmt.Errorf("need at least one worker")
	}
	target := 2 * uint64(stressWorkers) * unit

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	ctx, err := nvmm.Start(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()
	mgr := ctx.Manager()

	if err := mgr.CreateHeap(id, unit); err != nil {
		return err
	}
	printVerbose("Created heap %d with %s, target %s\n", id, formatSize(unit), formatSize(target))

	start := time.Now()
	failures := make([]error, stressWorkers)
	var wg sync.WaitGroup
	for i := range stressWorkers {
		args := []string{
			"stress-worker",
			"--pool", strconv.FormatUint(uint64(id), 10),
			"--step", strconv.FormatUint(unit*uint64(i%4+1), 10),
			"--target", strconv.FormatUint(target, 10),
			"--timeout", stressTimeout.String(),
			"--quiet",
		}
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		cmd := exec.Command(exe, args...)
		cmd.Stderr = os.Stderr

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cmd.Run(); err != nil {
				failures[i] = fmt.Errorf("worker %d: %w", i, err)
			}
		}()
	}
	wg.Wait()

	res := stressResult{
		Workers: stressWorkers,
		Target:  target,
		Seconds: time.Since(start).Seconds(),
	}
	if h, err := mgr.FindHeap(id); err == nil {
		res.FinalSize = h.Size()
	}
	failed := errors.Join(failures...)
	for _, f := range failures {
		if f != nil {
			res.Failed++
		}
	}

	if err := mgr.DestroyHeap(id); err != nil {
		return errors.Join(failed, fmt.Errorf("destroy heap %d: %w", id, err))
	}
	if err := mgr.DestroyHeap(id); !errors.Is(err, types.ErrNotFound) {
		return errors.Join(failed, fmt.Errorf("second destroy of heap %d returned %v, want not found", id, err))
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printInfo("Workers:    %d (%d failed)\n", res.Workers, res.Failed)
		printInfo("Final size: %s\n", formatSize(res.FinalSize))
		printInfo("Target:     %s\n", formatSize(res.Target))
		printInfo("Elapsed:    %.2fs\n", res.Seconds)
	}
	if failed != nil {
		return failed
	}
	if res.FinalSize < target {
		return fmt.Errorf("heap %d reached %d bytes, want %d", id, res.FinalSize, target)
	}
	return nil
}

func runStressWorker() error {
	id := types.PoolID(stressPool)
	ctx, err := nvmm.Start(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	h, err := ctx.OpenHeap(id)
	if err != nil {
		return err
	}
	defer h.Close()

	deadline, cancel := context.WithTimeout(context.Background(), stressTimeout)
	defer cancel()

	busy := 0
	last := uint64(0)
	for {
		size := h.Size()
		if size < last {
			return fmt.Errorf("heap %d shrank from %d to %d", id, last, size)
		}
		last = size
		if size >= workerTarget {
			break
		}
		err := retry.OnBusy(deadline, func() error {
			err := h.Resize(h.Size() + workerStep)
			if types.Retryable(err) {
				busy++
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	logger.Debug("stress worker done", "pool", id, "pid", os.Getpid(), "busy_retries", busy, "size", last)
	return nil
}
