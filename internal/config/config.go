// Package config loads CLI settings from a config file, ODIGRAPH_ environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ODIGRAPH_LOG_LEVEL.
const EnvPrefix = "ODIGRAPH"

// LocalFile is looked up in the working directory before the user config.
const LocalFile = ".odigraph.yaml"

// Config is the resolved CLI configuration.
type Config struct {
	Manifest        string      `mapstructure:"manifest"`
	Out             string      `mapstructure:"out"`
	Package         string      `mapstructure:"package"`
	MaxDepth        int         `mapstructure:"max_depth"`
	Parallelism     int         `mapstructure:"parallelism"`
	AssignCacheSize int         `mapstructure:"assign_cache_size"`
	Log             LogConfig   `mapstructure:"log"`
	Trace           TraceConfig `mapstructure:"trace"`
	Watch           WatchConfig `mapstructure:"watch"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TraceConfig holds tracing settings.
type TraceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Manifest:        "odigraph.yaml",
		Out:             "wiring.gen.go",
		MaxDepth:        64,
		Parallelism:     4,
		AssignCacheSize: 4096,
		Log:             LogConfig{Level: "info"},
		Trace:           TraceConfig{Exporter: "stdout"},
		Watch:           WatchConfig{Debounce: 300 * time.Millisecond},
	}
}

// Options control where Load looks.
type Options struct {
	// File is an explicit config file; lookup is skipped when set.
	File string
	// Dir is searched for LocalFile. Defaults to the working directory.
	Dir string
	// Home is searched for .config/odigraph/config.yaml. Defaults to the user home.
	Home string
	// Flags are bound through FlagKeys.
	Flags *pflag.FlagSet
}

// Load resolves the configuration. Precedence, highest first: flags that were
// set, environment, config file, defaults.
func Load(opts Options) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	file, err := locate(opts)
	if err != nil {
		return Config{}, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("parallelism must be positive, got %d", c.Parallelism))
	}
	if c.AssignCacheSize < 0 {
		errs = append(errs, fmt.Errorf("assign_cache_size must not be negative, got %d", c.AssignCacheSize))
	}
	switch c.Trace.Exporter {
	case "stdout", "none", "":
	default:
		errs = append(errs, fmt.Errorf("unsupported trace.exporter %q", c.Trace.Exporter))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("out", d.Out)
	v.SetDefault("package", d.Package)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("assign_cache_size", d.AssignCacheSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("trace.enabled", d.Trace.Enabled)
	v.SetDefault("trace.exporter", d.Trace.Exporter)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"manifest":    "manifest",
	"out":         "out",
	"package":     "package",
	"max-depth":   "max_depth",
	"parallelism": "parallelism",
	"log-level":   "log.level",
	"trace":       "trace.enabled",
	"debounce":    "watch.debounce",
}

// locate picks the config file: an explicit one, then LocalFile in Dir, then
// the user config. A missing file is not an error.
func locate(opts Options) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return opts.File, nil
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	local := filepath.Join(dir, LocalFile)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		home = h
	}
	user := filepath.Join(home, ".config", "odigraph", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user, nil
	}
	return "", nil
}
