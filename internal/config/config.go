// Package config loads the shelf location settings every process must agree
// on. Files are YAML with a top-level nvmm map:
//
//	nvmm:
//	  shelf_base: /dev/shm
//	  shelf_user: alice
//	  log_level: info
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/famkit/heap"
	"github.com/joshuapare/famkit/pkg/types"
)

// EnvFile names a config file used when no path is given explicitly.
const EnvFile = "FAMKIT_CONFIG"

var (
	ErrNoBase     = errors.New("config: shelf_base is empty")
	ErrNoUser     = errors.New("config: shelf_user is empty")
	ErrBadUser    = errors.New("config: shelf_user must not contain path separators")
	ErrNotDir     = errors.New("config: shelf_base is not a directory")
	ErrBadLogName = errors.New("config: unknown log_level")
)

// Config holds the settings under the nvmm key.
type Config struct {
	ShelfBase string `yaml:"shelf_base"`
	ShelfUser string `yaml:"shelf_user"`
	LogLevel  string `yaml:"log_level"`
}

type file struct {
	NVMM Config `yaml:"nvmm"`
}

// Default returns /dev/shm (or the temp dir where it is missing) and the
// current user name.
func Default() Config {
	base := os.TempDir()
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		base = "/dev/shm"
	}
	return Config{
		ShelfBase: base,
		ShelfUser: currentUser(),
		LogLevel:  "info",
	}
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return filepath.Base(u.Username)
	}
	return "nvmm"
}

// Load reads path over the defaults. An empty path falls back to
// $FAMKIT_CONFIG, and to plain defaults when that is unset too.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.Merge(data); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays the non-empty fields of a YAML document onto c.
func (c *Config) Merge(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.NVMM.ShelfBase != "" {
		c.ShelfBase = f.NVMM.ShelfBase
	}
	if f.NVMM.ShelfUser != "" {
		c.ShelfUser = f.NVMM.ShelfUser
	}
	if f.NVMM.LogLevel != "" {
		c.LogLevel = f.NVMM.LogLevel
	}
	return nil
}

// Marshal renders c as a YAML document Load accepts.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(file{NVMM: c})
}

// Validate checks the fields without touching the file system.
func (c Config) Validate() error {
	switch {
	case c.ShelfBase == "":
		return ErrNoBase
	case c.ShelfUser == "":
		return ErrNoUser
	case strings.ContainsAny(c.ShelfUser, `/\`):
		return ErrBadUser
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrBadLogName, c.LogLevel)
	}
	return nil
}

// CheckBase fails when ShelfBase is not an existing directory.
func (c Config) CheckBase() error {
	st, err := os.Stat(c.ShelfBase)
	if err != nil {
		return fmt.Errorf("config: shelf_base: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, c.ShelfBase)
	}
	return nil
}

// RootShelfPath is <base>/<user>_NVMM_ROOT.
func (c Config) RootShelfPath() string {
	return filepath.Join(c.ShelfBase, c.ShelfUser+"_NVMM_ROOT")
}

// HeapZones names this user's zone files under ShelfBase.
func (c Config) HeapZones() heap.ZoneNamer {
	return heap.ZonePathIn(c.ShelfBase, c.ShelfUser)
}

// HeapZonePath is <base>/<user>_NVMM_HEAP_<pool>_<gen>_<zone>.
func (c Config) HeapZonePath(pool types.PoolID, gen uint64, zone int) string {
	return c.HeapZones()(pool, gen, zone)
}

// HeapZoneGlob matches every zone file of this user.
func (c Config) HeapZoneGlob() string {
	return heap.ZoneGlobIn(c.ShelfBase, c.ShelfUser)
}
