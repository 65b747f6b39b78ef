package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default site file name.
const DefaultConfigFile = ".carpart.yaml"

// ErrConfigNotFound is returned when the site file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads the site file from a YAML file.
// Values absent from the file keep the defaults from DefaultFile.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := DefaultFile()
	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, err
	}

	// Category keys are matched case-insensitively.
	if len(cf.Selectors.Categories) > 0 {
		normalized := make(map[string]SelectorSet, len(cf.Selectors.Categories))
		for k, v := range cf.Selectors.Categories {
			normalized[strings.ToLower(strings.TrimSpace(k))] = v
		}
		cf.Selectors.Categories = normalized
	}
	cf.Site.BaseURL = strings.TrimRight(cf.Site.BaseURL, "/")

	return cf, nil
}

// FindConfigFile searches for the site file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .carpart.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the site file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
