// Package config parses the pipeline configuration file (§6 of the
// design: projects + jobs, in YAML) and assembles it with its
// referenced binaries into a Submission Artifact.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/twizmwazin/pap/pkg/store"
	"gopkg.in/yaml.v3"
)

// LoadConfig parses a pipeline config file from r.
func LoadConfig(r io.Reader) (*store.Config, error) {
	var cfg store.Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// BuildSubmission loads cfg's projects' binaries from disk, relative to
// basePath (the config file's parent directory), and bundles them into
// a Submission. Every project's `binary` must be present on disk.
func BuildSubmission(cfg store.Config, basePath string) (*store.Submission, error) {
	files := make(map[string][]byte, len(cfg.Projects))
	for _, project := range cfg.Projects {
		full := filepath.Join(basePath, project.Binary)
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", full, err)
		}
		files[project.Binary] = data
	}
	return &store.Submission{Config: cfg, Files: files}, nil
}
