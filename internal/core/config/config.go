package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nightconcept/extmanifest/internal/core/store"
)

const OptionsTomlName = "extm.toml"

// EditConfig is the content of an extm.toml file.
type EditConfig struct {
	// ManifestGlobs locate top-level manifests when editing a directory.
	ManifestGlobs []string `toml:"manifest_globs,omitempty"`
	// Output is the archive path `extm edit` writes to for archive inputs.
	Output  string        `toml:"output,omitempty"`
	Options store.Options `toml:"options"`
}

// LoadOptionsToml reads extm.toml from dirPath.
func LoadOptionsToml(dirPath string) (*EditConfig, error) {
	return LoadOptionsFile(filepath.Join(dirPath, OptionsTomlName))
}

// LoadOptionsFile reads and validates the options file at path.
func LoadOptionsFile(path string) (*EditConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EditConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options in %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteOptionsToml writes cfg to extm.toml in dirPath, replacing any existing file.
func WriteOptionsToml(dirPath string, cfg *EditConfig) error {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return err
	}

	fullPath := filepath.Join(dirPath, OptionsTomlName)
	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write(buf.Bytes())
	return err
}
