package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	input := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(input, "hello.txt"), []byte("hi"), 0644))
	output := filepath.Join(t.TempDir(), "site")

	assert.Equal(t, 0, run([]string{input, "-o", output, "--log-level", "error", "-t", "Mirror"}))

	page, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Mirror</title>")
	assert.Contains(t, string(page), "hello.txt")

	data, err := os.ReadFile(filepath.Join(output, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"--help"}, 0},
		{"version", []string{"--version"}, 0},
		{"unknown flag", []string{"--nope"}, 2},
		{"too many arguments", []string{"a", "b"}, 2},
		{"missing input", []string{filepath.Join(t.TempDir(), "missing")}, 1},
		{"bad log level", []string{t.TempDir(), "--log-level", "loud"}, 1},
		{"missing config file", []string{t.TempDir(), "--config", filepath.Join(t.TempDir(), "nope.yaml")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(tt.args))
		})
	}
}
