package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/core"
)

// configFileName is the per-project config file rememex reads and writes.
// internal/config owns the Config struct's shape, not its persistence --
// that's this host's job.
const configFileName = ".rememex.yaml"

// dataDirName is where a project's store, models, and lock files live,
// relative to the project root.
const dataDirName = ".rememex"

// findProjectRoot walks up from start looking for an existing config file
// or a .git directory, falling back to start itself so a first run in an
// empty directory still has somewhere to write its config.
func findProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if _, err := os.Stat(filepath.Join(dir, configFileName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// loadConfig reads root's config file, returning config.Default() if it
// doesn't exist yet.
func loadConfig(root string) (config.Config, error) {
	data, err := os.ReadFile(filepath.Join(root, configFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return config.Config{}, err
	}

	cfg := config.Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// saveConfig marshals cfg back to root's config file.
func saveConfig(root string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, configFileName), data, 0o644)
}

// persister builds the core.ConfigPersister the CLI hands to core.New, so
// any config mutation an operation makes (new container, active-container
// switch, new indexed root) is written back to root's config file.
func persister(root string) core.ConfigPersister {
	return func(cfg config.Config) error {
		return saveConfig(root, cfg)
	}
}
