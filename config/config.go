// Package config handles tether.toml endpoint configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file tether looks for.
const FileName = "tether.toml"

// Config represents a tether.toml endpoint configuration.
type Config struct {
	Log          Log                    `toml:"log"`
	Store        Store                  `toml:"store"`
	Script       Script                 `toml:"script"`
	Applications map[string]Application `toml:"applications"`

	// Dir is the directory containing the tether.toml file (set at load time).
	Dir string `toml:"-"`
}

// Log configures logging output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Store configures record persistence.
type Store struct {
	Path string `toml:"path"`
}

// Script configures the secondary script interpreter.
type Script struct {
	Command []string `toml:"command"`
}

// Application declares an automation root served by the endpoint.
type Application struct {
	RecordClass string `toml:"record_class"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store:        Store{Path: "tether.db"},
		Script:       Script{Command: []string{"/bin/sh"}},
		Applications: map[string]Application{},
	}
}

// Load parses a tether.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if c.Store.Path == "" {
		c.Store.Path = "tether.db"
	}
	if len(c.Script.Command) == 0 {
		c.Script.Command = []string{"/bin/sh"}
	}
	if c.Applications == nil {
		c.Applications = map[string]Application{}
	}
	for name, app := range c.Applications {
		if app.RecordClass == "" {
			app.RecordClass = "record"
			c.Applications[name] = app
		}
	}

	return c, nil
}

// FindAndLoad walks up from startDir to find a tether.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the store path resolved against the config directory.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}
