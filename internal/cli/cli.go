// Package cli implements the drain-swamp command-line interface.
//
// This package provides commands for toggling a Python project's
// requirement files between locked and unlocked states, fixing version
// discrepancies across lock files, listing the configured venvs, and
// drawing the requirement include graph. The CLI is built using cobra
// and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - lock: Compile .in files to pinned .lock files via pip-compile
//   - unlock: Flatten .in include graphs into .unlock files
//   - fix: Find and repair version discrepancies across lock files
//   - venvs: List venvs and requirement stems from pyproject.toml
//   - graph: Draw the requirement include graph as DOT or SVG
//   - cache: Manage the compiled lock cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context for structured progress tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/msftcangoblowm/drain-swamp/pkg/buildinfo"
	"github.com/msftcangoblowm/drain-swamp/pkg/cache"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

// appName is the application name used for directories and display.
const appName = "drain-swamp"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// path is the start directory for the pyproject.toml reverse
	// search, settable with the persistent --path flag.
	path string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "drain-swamp toggles Python dependency locks on and off",
		Long:         `drain-swamp manages a Python project's requirement files per venv: compiling pinned .lock files, flattening .unlock files, and reconciling version discrepancies between them.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.path, "path", ".",
		"folder to start the pyproject.toml search from")

	root.AddCommand(c.lockCommand())
	root.AddCommand(c.unlockCommand())
	root.AddCommand(c.fixCommand())
	root.AddCommand(c.venvsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadVenvMap locates pyproject.toml from the --path start directory
// and parses the venv map, verifying the given endings exist on disk.
func (c *CLI) loadVenvMap(checkSuffixes ...string) (*venvs.Map, error) {
	loader, err := venvs.NewLoader(c.path)
	if err != nil {
		return nil, err
	}
	return venvs.NewMap(loader, checkSuffixes...)
}

// newCache returns the compile cache, or a no-op cache when caching is
// disabled or the cache directory is unavailable.
func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using the XDG convention
// (~/.cache/drain-swamp/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
