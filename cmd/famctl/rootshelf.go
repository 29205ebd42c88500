package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/famkit/pkg/nvmm"
	"github.com/joshuapare/famkit/rootshelf"
)

func init() {
	rootCmd.AddCommand(newRootShelfCmd())
}

func newRootShelfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Create, inspect or destroy the root shelf",
	}

	var all bool
	destroy := &cobra.Command{
		Use:   "destroy",
		Short: "Remove the root shelf",
		Long: `The destroy command removes the root shelf file. With --all it also
removes every heap zone file of the configured user. No process may be using
them.

Example:
  famctl root destroy --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRootDestroy(all)
		},
	}
	destroy.Flags().BoolVar(&all, "all", false, "Also remove all heap zone files")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create and tag a new root shelf",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRootCreate()
			},
		},
		destroy,
		&cobra.Command{
			Use:   "info",
			Short: "Validate the root shelf and list live heaps",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRootInfo()
			},
		},
	)
	return cmd
}

func runRootCreate() error {
	r := rootshelf.New(cfg.RootShelfPath())
	if err := r.Create(); err != nil {
		return err
	}
	printInfo("Created root shelf %s\n", r.Path())
	return nil
}

func runRootDestroy(all bool) error {
	if all {
		if err := nvmm.Reset(cfg); err != nil {
			return err
		}
		printInfo("Removed root shelf and heap zones under %s\n", cfg.ShelfBase)
		return nil
	}
	r := rootshelf.New(cfg.RootShelfPath())
	if err := r.Destroy(); err != nil {
		return err
	}
	printInfo("Removed root shelf %s\n", r.Path())
	return nil
}

type rootInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
	Heaps   []uint32  `json:"heaps"`
}

func runRootInfo() error {
	printVerbose("Opening root shelf: %s\n", cfg.RootShelfPath())

	r := rootshelf.New(cfg.RootShelfPath())
	if err := r.Open(); err != nil {
		return err
	}
	defer r.Close()

	mgr, err := newManager(r)
	if err != nil {
		return err
	}

	info := rootInfo{
		Path:    r.Path(),
		Size:    r.Size(),
		Created: r.Created(),
		Heaps:   []uint32{},
	}
	for _, id := range mgr.Heaps() {
		info.Heaps = append(info.Heaps, uint32(id))
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nRoot Shelf:\n")
	printInfo("  Path:    %s\n", info.Path)
	printInfo("  Size:    %s\n", formatSize(uint64(info.Size)))
	printInfo("  Created: %s\n", info.Created.Format(time.RFC3339))
	printInfo("  Heaps:   %d\n", len(info.Heaps))
	for _, id := range info.Heaps {
		printInfo("    - pool %d\n", id)
	}
	return nil
}
