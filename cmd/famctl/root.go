package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/joshuapare/famkit/internal/config"
	"github.com/joshuapare/famkit/internal/logger"
)

var (
	// Global flags
	configPath string
	verbose    bool
	quiet      bool
	jsonOut    bool
	logJSON    bool

	// cfg is loaded before every command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "famctl",
	Short: "Manage shared persistent-memory heaps",
	Long: `famctl creates, inspects, resizes and destroys the root shelf and the
heaps that cooperating processes share through it. Shelf files live in the
directory named by shelf_base in the configuration (default /dev/shm).`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $"+config.EnvFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON (default when stderr is not a terminal)")
}

func setup(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level := logger.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logger.ParseLevel("debug")
	}
	logger.Init(logger.Options{
		Enabled: verbose || !quiet,
		Level:   level,
		JSON:    logJSON || !isatty.IsTerminal(os.Stderr.Fd()),
	})
	return nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprint(os.Stdout, printer.Sprintf(format, args...))
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprint(os.Stdout, printer.Sprintf(format, args...))
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
