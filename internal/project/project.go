// Package project loads the sable.toml build configuration. Every knob
// has a default so a bare unit file compiles without any config at all.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is the config file looked up next to the unit.
const DefaultFileName = "sable.toml"

// Wildcard policies for dynamically keyed state access.
const (
	WildcardCoarsen = "coarsen"
	WildcardReject  = "reject"
)

// Package identifies the project.
type Package struct {
	Name string `toml:"name"`
}

// Build holds compiler knobs.
type Build struct {
	// WildcardPolicy selects how unbounded state keys fold into domains:
	// "coarsen" widens to the namespace wildcard, "reject" fails the build.
	WildcardPolicy string `toml:"wildcard_policy"`
	// MaxLocals bounds the per-function local slot budget.
	MaxLocals uint32 `toml:"max_locals"`
	// MemoryPages sizes the VM scratch memory in 64 KiB pages.
	MemoryPages uint32 `toml:"memory_pages"`
	// OutDir receives the .sbc artifact and manifest.
	OutDir string `toml:"out_dir"`
}

// Manifest controls metadata emission.
type Manifest struct {
	Emit bool `toml:"emit"`
}

// Config is the parsed sable.toml.
type Config struct {
	Package  Package  `toml:"package"`
	Build    Build    `toml:"build"`
	Manifest Manifest `toml:"manifest"`
}

// Default returns the configuration used when no sable.toml exists.
func Default() *Config {
	return &Config{
		Build: Build{
			WildcardPolicy: WildcardCoarsen,
			OutDir:         ".",
		},
		Manifest: Manifest{Emit: true},
	}
}

func (c *Config) validate() error {
	var errs []error
	switch c.Build.WildcardPolicy {
	case WildcardCoarsen, WildcardReject:
	default:
		errs = append(errs, fmt.Errorf("build.wildcard_policy: unknown policy %q", c.Build.WildcardPolicy))
	}
	return errors.Join(errs...)
}

// Parse decodes TOML text and fills defaults for absent fields.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undec[0].String())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config next to the given unit file, falling back to
// defaults when none exists.
func Load(unitPath string) (*Config, error) {
	path := filepath.Join(filepath.Dir(unitPath), DefaultFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
