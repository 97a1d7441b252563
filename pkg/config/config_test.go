package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const typedArgsYAML = `
projects:
  - name: p1
    binary: p1.bin
    arch: x86_64
jobs:
  - name: job1
    steps:
      - name: step1
        call: hello
        args:
          name: world
          count: 3
          flag: true
`

const sampleYAML = `
projects:
  - name: p1
    binary: p1.bin
    arch: x86_64
jobs:
  - name: job1
    steps:
      - name: step1
        call: hello
        args:
          name: world
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Projects, 1)
	assert.Equal(t, "p1.bin", cfg.Projects[0].Binary)
	require.Len(t, cfg.Jobs, 1)
	require.Len(t, cfg.Jobs[0].Steps, 1)
	assert.Equal(t, "hello", cfg.Jobs[0].Steps[0].Call)
}

func TestLoadConfigParsesNonStringArgs(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(typedArgsYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)
	require.Len(t, cfg.Jobs[0].Steps, 1)

	args := cfg.Jobs[0].Steps[0].Args
	assert.Equal(t, "world", args["name"].String())
	assert.Equal(t, "3", args["count"].String())
	assert.Equal(t, "true", args["flag"].String())
}

func TestBuildSubmissionReadsBinaries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.bin"), []byte{0x7f, 'E', 'L', 'F'}, 0o644))

	cfg, err := LoadConfig(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	sub, err := BuildSubmission(*cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, sub.Files["p1.bin"])
}

func TestBuildSubmissionMissingBinary(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	_, err = BuildSubmission(*cfg, t.TempDir())
	require.Error(t, err)
}
