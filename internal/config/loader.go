package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Include  []string `mapstructure:"include"   yaml:"include,omitempty"`
	StateDir string   `mapstructure:"state_dir" yaml:"state_dir"`

	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
	Collect  CollectConfig  `mapstructure:"collect"  yaml:"collect"`
	Vault    VaultConfig    `mapstructure:"vault"    yaml:"vault"`

	Locations map[string]LocationConfig `mapstructure:"locations" yaml:"locations"`
}

// DefaultsConfig holds settings applied to every restic invocation.
type DefaultsConfig struct {
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir,omitempty"`
	Binary   string        `mapstructure:"binary"    yaml:"binary,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout"   yaml:"timeout,omitempty"`
}

// CollectConfig contains collection-specific options.
type CollectConfig struct {
	// ExtendedStats also records raw-data stats and latest-diff stats
	// beyond the core artifact kinds.
	ExtendedStats bool `mapstructure:"extended_stats" yaml:"extended_stats,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault. Only needed
// when at least one location sources its repository password from Vault.
type VaultConfig struct {
	Address     string `mapstructure:"address"      yaml:"address"`
	ApproleName string `mapstructure:"approle_name" yaml:"approle_name,omitempty"`
	RoleID      string `mapstructure:"role_id"      yaml:"role_id,omitempty"`
}

// LocationConfig describes one backup source and the backends it is
// replicated to. Exactly one of PasswordFile and VaultPath must be set.
type LocationConfig struct {
	PasswordFile string            `mapstructure:"password_file" yaml:"password_file,omitempty"`
	VaultPath    string            `mapstructure:"vault_path"    yaml:"vault_path,omitempty"`
	Backends     map[string]string `mapstructure:"backends"      yaml:"backends"`
}

// Location is one audited (source, backend) pair, expanded from the
// configuration with everything needed to build a restic client for it.
type Location struct {
	Source       string
	Backend      string
	Repository   string
	PasswordFile string
	VaultPath    string
	CacheDir     string
}

// Name returns the identifier used for state subdirectories and reporting.
func (l Location) Name() string {
	return l.Source + "@" + l.Backend
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("%w: state_dir is required", ErrValidateConfig)
	}
	for name, loc := range c.Locations {
		if loc.PasswordFile == "" && loc.VaultPath == "" {
			return fmt.Errorf(
				"%w: location %q needs password_file or vault_path", ErrValidateConfig, name)
		}
		if loc.PasswordFile != "" && loc.VaultPath != "" {
			return fmt.Errorf(
				"%w: location %q sets both password_file and vault_path", ErrValidateConfig, name)
		}
		if len(loc.Backends) == 0 {
			return fmt.Errorf("%w: location %q has no backends", ErrValidateConfig, name)
		}
	}
	return nil
}

// ExpandLocations flattens the locations map into one entry per
// (source, backend) pair, sorted by name for a deterministic audit order.
func (c *Config) ExpandLocations() []Location {
	var locs []Location
	for source, lc := range c.Locations {
		for backend, repo := range lc.Backends {
			locs = append(locs, Location{
				Source:       source,
				Backend:      backend,
				Repository:   repo,
				PasswordFile: lc.PasswordFile,
				VaultPath:    lc.VaultPath,
				CacheDir:     c.Defaults.CacheDir,
			})
		}
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Name() < locs[j].Name() })
	return locs
}

// NeedsVault reports whether any location sources its password from Vault.
func (c *Config) NeedsVault() bool {
	for _, lc := range c.Locations {
		if lc.VaultPath != "" {
			return true
		}
	}
	return false
}
