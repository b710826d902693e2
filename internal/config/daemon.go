package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Module maps a daemon-mode module name (the first path component of a
// `host::path` argument, spec §6) to a filesystem root.
type Module struct {
	Name     string `toml:"name"`
	Path     string `toml:"path"`
	ReadOnly bool   `toml:"read_only"`
	Comment  string `toml:"comment"`
}

// DaemonConfig is the TOML shape of --config for `mrsync daemon`.
type DaemonConfig struct {
	Address string   `toml:"address"`
	Port    int      `toml:"port"`
	Modules []Module `toml:"modules"`
}

// LoadDaemonConfig parses a module-map file (spec §9's "daemon module
// map" addition); see SPEC_FULL.md §4.9.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading daemon config %s: %w", path, err)
	}
	var cfg DaemonConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing daemon config %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = 10873
	}
	return &cfg, nil
}

// Lookup returns the module named name, or false if no such module exists.
func (c *DaemonConfig) Lookup(name string) (Module, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}
