package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yoyama/bakthat/internal/flagx"
)

// DefaultFile returns the default config file location (~/.bakthat.yml).
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".bakthat.yml")
}

// Load constructs a Config: defaults first, then the YAML file overlaid on
// top. path may be empty, in which case the -c/-config flag and finally the
// default location are consulted. A missing file is not an error; the
// defaults are returned so commands that need no remote profile still work.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path == "" {
		path = flagx.ConfigFileFlags()
	}
	if path == "" {
		path = DefaultFile()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]*Profile{}
	}
	if cfg.DBPath == "" {
		cfg.LoadDefaults()
	}
	return cfg, nil
}
