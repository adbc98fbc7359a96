package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".uiprobe"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads the defaults and scenarios from a YAML file.
// Unknown keys are rejected so a misspelled option does not silently fall
// back to its default. An empty file yields an empty File.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := File{Scenarios: make(map[string]Scenario)}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cf.Scenarios == nil {
		cf.Scenarios = make(map[string]Scenario)
	}
	return &cf, nil
}

// FindConfigFile returns the configuration file to load, or "" when none
// exists. An explicit configPath is the only candidate when set; otherwise
// .uiprobe is looked up in the working directory and then the home directory.
func FindConfigFile(configPath string) string {
	var candidates []string
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
