// Package config parses the ensemble-set definition file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/resviz/ensembleprov/internal/models"
)

// Ensemble names one ensemble and where its realizations live: either glob
// patterns of realization directories, or a single pre-aggregated table.
type Ensemble struct {
	Name       string   `yaml:"name"`
	Paths      []string `yaml:"paths,omitempty"`
	Aggregated string   `yaml:"aggregated,omitempty"`
}

type Config struct {
	Ensembles  []Ensemble `yaml:"ensembles"`
	ColumnKeys []string   `yaml:"column_keys,omitempty"`
	Frequency  string     `yaml:"frequency"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Ensembles) == 0 {
		return fmt.Errorf("no ensembles defined")
	}
	seen := make(map[string]bool)
	for _, e := range c.Ensembles {
		if e.Name == "" {
			return fmt.Errorf("ensemble without a name")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate ensemble name %q", e.Name)
		}
		seen[e.Name] = true
		if len(e.Paths) == 0 && e.Aggregated == "" {
			return fmt.Errorf("ensemble %s: needs paths or aggregated", e.Name)
		}
		if len(e.Paths) > 0 && e.Aggregated != "" {
			return fmt.Errorf("ensemble %s: paths and aggregated are mutually exclusive", e.Name)
		}
	}
	if _, err := models.ParseFrequency(c.Frequency); err != nil {
		return err
	}
	return nil
}

// ParsedFrequency returns the validated sampling frequency.
func (c *Config) ParsedFrequency() models.Frequency {
	freq, _ := models.ParseFrequency(c.Frequency)
	return freq
}

// ExpandPaths resolves an ensemble's directory globs to the sorted set of
// realization directories. The expansion result feeds cache fingerprints, so
// it must be deterministic.
func (e *Ensemble) ExpandPaths() ([]string, error) {
	var dirs []string
	for _, pattern := range e.Paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("ensemble %s: bad path pattern %q: %w", e.Name, pattern, err)
		}
		dirs = append(dirs, matches...)
	}
	if len(dirs) == 0 {
		return nil, &models.MissingSourceError{Path: fmt.Sprintf("%v", e.Paths)}
	}
	sort.Strings(dirs)
	return dirs, nil
}
