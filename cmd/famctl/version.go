package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/joshuapare/famkit/heap"
	"github.com/joshuapare/famkit/rootshelf"
)

// Set at link time with -X main.version=... and friends.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// versionInfo is what `famctl version` reports. The layout version and the
// platform check decide whether two builds can share the same shelves.
type versionInfo struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	Built        string `json:"built"`
	Layout       uint32 `json:"layout_version"`
	Platform     string `json:"platform"`
	CrossProcess bool   `json:"cross_process"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and platform information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:      version,
		Commit:       commit,
		Built:        date,
		Layout:       rootshelf.Version,
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		CrossProcess: heap.Supported() == nil,
	}
}

func runVersion() error {
	info := currentVersion()
	if jsonOut {
		return printJSON(info)
	}
	printInfo("famctl %s\n", info.Version)
	printInfo("  commit:   %s\n", info.Commit)
	printInfo("  built:    %s\n", info.Built)
	printInfo("  layout:   v%d\n", info.Layout)
	printInfo("  platform: %s (cross-process: %t)\n", info.Platform, info.CrossProcess)
	return nil
}
