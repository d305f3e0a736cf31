package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolated(t *testing.T) Options {
	t.Helper()
	return Options{Dir: t.TempDir(), Home: t.TempDir()}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// TestLoad_Defaults verifies the built-in values when nothing is configured.
func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(isolated(t))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

// TestLoad_FileLookup verifies the local file wins over the user config.
func TestLoad_FileLookup(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeFile(t, filepath.Join(opts.Home, ".config", "odigraph", "config.yaml"), "parallelism: 2\nlog:\n  level: warn\n")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 64, cfg.MaxDepth)

	writeFile(t, filepath.Join(opts.Dir, LocalFile), "parallelism: 8\nwatch:\n  debounce: 1s\n")
	cfg, err = Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, filepath.Join(opts.Dir, LocalFile), cfg.File)
}

// TestLoad_Precedence verifies flags over environment over file.
func TestLoad_Precedence(t *testing.T) {
	opts := isolated(t)
	writeFile(t, filepath.Join(opts.Dir, LocalFile), "max_depth: 10\nparallelism: 3\nmanifest: file.yaml\n")
	t.Setenv("ODIGRAPH_MAX_DEPTH", "20")
	t.Setenv("ODIGRAPH_TRACE_ENABLED", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("manifest", "", "")
	fs.Int("max-depth", 0, "")
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--max-depth=30", "--log-level=debug"}))
	opts.Flags = fs

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Parallelism)
	assert.Equal(t, "file.yaml", cfg.Manifest)
	assert.True(t, cfg.Trace.Enabled)
}

// TestLoad_Errors verifies missing explicit files and invalid values fail.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	opts.File = filepath.Join(opts.Dir, "nope.yaml")
	_, err := Load(opts)
	require.Error(t, err)

	opts = isolated(t)
	opts.File = filepath.Join(opts.Dir, "bad.yaml")
	writeFile(t, opts.File, "parallelism: 0\ntrace:\n  exporter: otlp\n")
	_, err = Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallelism must be positive")
	assert.Contains(t, err.Error(), `unsupported trace.exporter "otlp"`)
}

// TestValidate verifies range checks one field at a time.
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, false},
		{"negative cache", func(c *Config) { c.AssignCacheSize = -1 }, false},
		{"no cache", func(c *Config) { c.AssignCacheSize = 0 }, true},
		{"none exporter", func(c *Config) { c.Trace.Exporter = "none" }, true},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Defaults()
			tt.mutate(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
				return
			}
			assert.Error(t, c.Validate())
		})
	}
}
