// Package config handles norn.toml configuration for the CLI and server.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the parsed norn.toml.
type Config struct {
	Server Server `toml:"server"`
	Store  Store  `toml:"store"`
	Eval   Eval   `toml:"eval"`

	// Dir is the directory containing the norn.toml file (set at load time).
	Dir string `toml:"-"`
}

// Server configures the evaluation service.
type Server struct {
	Addr string `toml:"addr"`
}

// Store configures the persistent noun store.
type Store struct {
	Path string `toml:"path"`
}

// Eval configures evaluator construction.
type Eval struct {
	// Budget caps the reductions of a single evaluation; 0 is unlimited.
	Budget int64 `toml:"budget"`
	// MemoCapacity bounds each memo table; 0 keeps them unbounded.
	MemoCapacity int `toml:"memo-capacity"`
	// Seed, when non-empty, is a hex string keying a deterministic
	// entropy stream in place of OS randomness.
	Seed string `toml:"seed"`
}

// Default returns the configuration used when no norn.toml exists.
func Default() *Config {
	return &Config{
		Server: Server{Addr: ":4591"},
	}
}

// Load parses a norn.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "norn.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if c.Eval.Budget < 0 {
		return fmt.Errorf("eval.budget must not be negative")
	}
	if c.Eval.MemoCapacity < 0 {
		return fmt.Errorf("eval.memo-capacity must not be negative")
	}
	if c.Eval.Seed != "" {
		if _, err := hex.DecodeString(c.Eval.Seed); err != nil {
			return fmt.Errorf("eval.seed is not valid hex: %w", err)
		}
	}
	return nil
}

// SeedBytes returns the decoded entropy seed, or nil when unset.
func (c *Config) SeedBytes() []byte {
	if c.Eval.Seed == "" {
		return nil
	}
	bs, err := hex.DecodeString(c.Eval.Seed)
	if err != nil {
		// Validate rejected this at load time.
		return nil
	}
	return bs
}

// StorePath resolves the store path relative to the config directory.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}
