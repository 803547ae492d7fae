// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for pkgfs components.
//
// Configuration is loaded from a single file specified by:
//   - PKGFS_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for pkgfs.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Mount configures the FUSE mount layer.
	Mount MountConfig `yaml:"mount"`

	// Sandbox configures the launcher's sandboxed chroot.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Mount   *MountConfig   `yaml:"mount,omitempty"`
	Sandbox *SandboxConfig `yaml:"sandbox,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for pkgfs data.
	Root string `yaml:"root"`

	// Bin is where pkgfs binaries are installed. This provides
	// hermetic binary paths independent of user PATH.
	Bin string `yaml:"bin"`

	// Catalog is where built images are kept, keyed by content digest.
	Catalog string `yaml:"catalog"`

	// Mountpoints is the default parent directory under which images
	// are mounted when no explicit mountpoint is given.
	Mountpoints string `yaml:"mountpoints"`

	// State is where runtime state (pid files, mount leases) is stored.
	State string `yaml:"state"`
}

// MountConfig configures the FUSE mount layer.
type MountConfig struct {
	// AllowOther permits other users (including root) to access the
	// mount; required for the sandboxed launcher's bwrap'd process,
	// which may run as a different uid inside its user namespace.
	// Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// Debug enables go-fuse's request-level trace logging.
	Debug bool `yaml:"debug"`

	// EntryTimeout and AttrTimeout are cache durations, parsed as
	// time.Duration strings (e.g. "1s").
	EntryTimeout string `yaml:"entry_timeout"`
	AttrTimeout  string `yaml:"attr_timeout"`
}

// SandboxConfig configures the sandboxed chroot the launcher runs the
// image's entry point inside.
type SandboxConfig struct {
	// DefaultProfile is the sandbox profile used when none is specified.
	// Default: developer
	DefaultProfile string `yaml:"default_profile"`

	// ProfilesFile is the path to sandbox profiles configuration.
	// Default: "" (embedded defaults)
	ProfilesFile string `yaml:"profiles_file"`

	// Fallback configures behavior when sandbox capabilities are unavailable.
	Fallback FallbackConfig `yaml:"fallback"`
}

// FallbackConfig configures graceful degradation when capabilities are missing.
type FallbackConfig struct {
	// NoUserns specifies behavior when user namespaces are unavailable.
	// Values: "skip" (continue without), "warn" (warn and continue), "error" (fail)
	// Default: skip (development), error (production)
	NoUserns string `yaml:"no_userns"`

	// NoBwrap specifies behavior when bubblewrap is unavailable.
	// Values: "skip", "warn", "error"
	// Default: error (all environments)
	NoBwrap string `yaml:"no_bwrap"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "pkgfs")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:        defaultRoot,
			Bin:         filepath.Join(defaultRoot, "bin"),
			Catalog:     filepath.Join(defaultRoot, "catalog"),
			Mountpoints: filepath.Join(defaultRoot, "mnt"),
			State:       filepath.Join(defaultRoot, "state"),
		},
		Mount: MountConfig{
			AllowOther:   false,
			Debug:        false,
			EntryTimeout: "1s",
			AttrTimeout:  "1s",
		},
		Sandbox: SandboxConfig{
			DefaultProfile: "developer",
			ProfilesFile:   "",
			Fallback: FallbackConfig{
				NoUserns: "skip",
				NoBwrap:  "error",
			},
		},
	}
}

// Load loads configuration from the PKGFS_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if PKGFS_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("PKGFS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PKGFS_CONFIG environment variable not set; " +
			"set it to the path of your pkgfs.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: stricter fallback behavior.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Sandbox: &SandboxConfig{
					DefaultProfile: "assistant",
					Fallback: FallbackConfig{
						NoUserns: "error",
					},
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Bin != "" {
			c.Paths.Bin = overrides.Paths.Bin
		}
		if overrides.Paths.Catalog != "" {
			c.Paths.Catalog = overrides.Paths.Catalog
		}
		if overrides.Paths.Mountpoints != "" {
			c.Paths.Mountpoints = overrides.Paths.Mountpoints
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Mount != nil {
		// AllowOther and Debug are bools, so they always apply from overrides.
		c.Mount.AllowOther = overrides.Mount.AllowOther
		c.Mount.Debug = overrides.Mount.Debug
		if overrides.Mount.EntryTimeout != "" {
			c.Mount.EntryTimeout = overrides.Mount.EntryTimeout
		}
		if overrides.Mount.AttrTimeout != "" {
			c.Mount.AttrTimeout = overrides.Mount.AttrTimeout
		}
	}

	if overrides.Sandbox != nil {
		if overrides.Sandbox.DefaultProfile != "" {
			c.Sandbox.DefaultProfile = overrides.Sandbox.DefaultProfile
		}
		if overrides.Sandbox.ProfilesFile != "" {
			c.Sandbox.ProfilesFile = overrides.Sandbox.ProfilesFile
		}
		if overrides.Sandbox.Fallback.NoUserns != "" {
			c.Sandbox.Fallback.NoUserns = overrides.Sandbox.Fallback.NoUserns
		}
		if overrides.Sandbox.Fallback.NoBwrap != "" {
			c.Sandbox.Fallback.NoBwrap = overrides.Sandbox.Fallback.NoBwrap
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"PKGFS_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PKGFS_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.Catalog = expandVars(c.Paths.Catalog, vars)
	c.Paths.Mountpoints = expandVars(c.Paths.Mountpoints, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Sandbox.ProfilesFile = expandVars(c.Sandbox.ProfilesFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Sandbox.DefaultProfile == "" {
		errs = append(errs, fmt.Errorf("sandbox.default_profile is required"))
	}

	fallbackValues := []string{"skip", "warn", "error"}
	if !contains(fallbackValues, c.Sandbox.Fallback.NoUserns) {
		errs = append(errs, fmt.Errorf("sandbox.fallback.no_userns must be one of: %v", fallbackValues))
	}
	if !contains(fallbackValues, c.Sandbox.Fallback.NoBwrap) {
		errs = append(errs, fmt.Errorf("sandbox.fallback.no_bwrap must be one of: %v", fallbackValues))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasSystemd returns true if systemd is available on this system.
func (c *Config) HasSystemd() bool {
	_, err := os.Stat("/run/systemd/system")
	return err == nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Bin,
		c.Paths.Catalog,
		c.Paths.Mountpoints,
		c.Paths.State,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// BinaryPath returns the full path to a pkgfs binary.
// It looks in Paths.Bin first, then falls back to exec.LookPath.
// This provides hermetic binary resolution when Bin is configured.
func (c *Config) BinaryPath(name string) (string, error) {
	// If Bin is configured, look there first.
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	// Fall back to PATH lookup.
	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
