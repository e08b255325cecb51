// Package config gathers the run configuration from flags, CIBUILDPKG_*
// environment variables and an optional YAML config file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory.
	AppName = "cibuildpkg"
	// EnvPrefix prefixes the environment variables, e.g.
	// CIBUILDPKG_SOURCE_DIR.
	EnvPrefix = "CIBUILDPKG"
)

// Config keys, identical to the flag names.
const (
	KeyCatalog   = "catalog"
	KeyCommunity = "community"
	KeyJobs      = "jobs"
	KeyLogLevel  = "log-level"
	KeySourceDir = "source-dir"
	KeyBuildDir  = "build-dir"
	KeyPatchDir  = "patch-dir"
	KeyOutputDir = "output-dir"
	KeyStrip     = "strip"
	KeyArchive   = "archive"

	KeyAllowDowngrade = "allow-downgrade"
)

// Config is the configuration of one run.
type Config struct {
	Catalog   string `mapstructure:"catalog"`
	Community bool   `mapstructure:"community"`
	Jobs      int    `mapstructure:"jobs"`
	LogLevel  string `mapstructure:"log-level"`
	SourceDir string `mapstructure:"source-dir"`
	BuildDir  string `mapstructure:"build-dir"`
	PatchDir  string `mapstructure:"patch-dir"`
	OutputDir string `mapstructure:"output-dir"`
	Strip     bool   `mapstructure:"strip"`
	Archive   bool   `mapstructure:"archive"`
	// AllowDowngrade accepts a catalogue that builds an older release of
	// a package than the embedded one.
	AllowDowngrade bool `mapstructure:"allow-downgrade"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// New returns a viper instance with the defaults and the environment
// bindings in place. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyCatalog, "")
	v.SetDefault(KeyCommunity, false)
	v.SetDefault(KeyJobs, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySourceDir, "source")
	v.SetDefault(KeyBuildDir, "build")
	v.SetDefault(KeyPatchDir, "patches")
	v.SetDefault(KeyOutputDir, DefaultOutputDir(runtime.GOOS, os.Getenv))
	v.SetDefault(KeyStrip, true)
	v.SetDefault(KeyArchive, true)
	v.SetDefault(KeyAllowDowngrade, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or the first config.yaml found in the XDG config
// directories when file is empty, and decodes the merged configuration.
// A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file == "" {
		if found, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml")); err == nil {
			file = found
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.File = file
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	for key, dir := range map[string]string{
		KeySourceDir: c.SourceDir,
		KeyBuildDir:  c.BuildDir,
		KeyOutputDir: c.OutputDir,
	} {
		if dir == "" {
			errs = append(errs, fmt.Errorf("%s is empty", key))
		}
	}
	return errors.Join(errs...)
}

// DefaultOutputDir returns where the output archive goes when nothing was
// configured. Inside a cibuildwheel linux container the host mounts
// /output.
func DefaultOutputDir(goos string, getenv func(string) string) string {
	if goos == "linux" && getenv("CIBUILDWHEEL") == "1" {
		return "/output"
	}
	return "output"
}
