package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig()
		},
	})
}

func runConfig() error {
	if jsonOut {
		return printJSON(map[string]any{
			"shelf_base": cfg.ShelfBase,
			"shelf_user": cfg.ShelfUser,
			"log_level":  cfg.LogLevel,
			"root_shelf": cfg.RootShelfPath(),
		})
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
