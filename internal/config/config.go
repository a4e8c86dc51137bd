// Package config loads cardctl's configuration: a TOML file read by
// github.com/BurntSushi/toml, overlaid with environment variables and
// flags through github.com/spf13/viper, so the CLI never threads ad hoc
// os.Getenv calls through its command tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// DefaultDir is the directory name the CLI looks for relative to the
// working directory, a project marker in the style of a dotfile cache
// directory.
const DefaultDir = ".cardledger"

// DefaultDatabaseName is the SQLite file name created inside DefaultDir
// when no explicit path is configured.
const DefaultDatabaseName = "cardledger.db"

// Config holds cardctl's resolved configuration.
type Config struct {
	// DatabasePath is the SQLite file backing the blob store and event
	// log. Empty means "use DefaultDir/DefaultDatabaseName under the
	// working directory".
	DatabasePath string `toml:"database_path" mapstructure:"database_path"`

	// Actor is the default actor string stamped on events submitted by
	// this CLI invocation when --actor is not given.
	Actor string `toml:"actor" mapstructure:"actor"`

	// InMemory runs the ledger without a durable backend, for scratch
	// sessions and tests of the CLI itself.
	InMemory bool `toml:"in_memory" mapstructure:"in_memory"`
}

// defaults returns the built-in configuration used when no file,
// environment variable, or flag overrides a field.
func defaults() Config {
	return Config{
		Actor: "cardctl",
	}
}

// Load resolves configuration in precedence order: flag overrides
// (already bound into v by the caller) > environment (CARDLEDGER_*) >
// configPath's TOML file, if it exists > built-in defaults.
func Load(configPath string, v *viper.Viper) (Config, error) {
	cfg := defaults()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("CARDLEDGER")
	v.AutomaticEnv()
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("actor", cfg.Actor)
	v.SetDefault("in_memory", cfg.InMemory)

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply environment/flag overrides: %w", err)
	}
	return cfg, nil
}

// ResolveDatabasePath returns cfg.DatabasePath if set, else the default
// path under DefaultDir relative to dir.
func ResolveDatabasePath(cfg Config, dir string) string {
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return filepath.Join(dir, DefaultDir, DefaultDatabaseName)
}
