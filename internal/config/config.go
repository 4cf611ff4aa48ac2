// Package config resolves runtime settings from .storyline.toml,
// STORYLINE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"storyline-cli/internal/model"
)

const (
	EnvPrefix  = "STORYLINE"
	configName = ".storyline"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LayoutConfig struct {
	Gap int `mapstructure:"gap"`
}

// Config holds all runtime configuration for one invocation.
type Config struct {
	DB     string       `mapstructure:"db"`
	Story  string       `mapstructure:"story"`
	Format string       `mapstructure:"format"`
	Log    LogConfig    `mapstructure:"log"`
	Layout LayoutConfig `mapstructure:"layout"`
}

// DefaultDBPath is ~/.storyline/storyline.sqlite, or a relative path when the
// home directory cannot be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(".storyline", "storyline.sqlite")
	}
	return filepath.Join(home, ".storyline", "storyline.sqlite")
}

// New returns a viper instance with defaults, env binding and (when found)
// the config file loaded. cfgFile overrides the search path.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("db", DefaultDBPath())
	v.SetDefault("story", "")
	v.SetDefault("format", "json")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("layout.gap", 120)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return v, nil
}

// Load unmarshals v and checks enumerated values.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	switch cfg.Format {
	case "json", "edn", "toml":
	default:
		return Config{}, fmt.Errorf("config: invalid format %q (expected json|edn|toml)", cfg.Format)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return Config{}, fmt.Errorf("config: invalid log.format %q (expected console|json)", cfg.Log.Format)
	}
	if cfg.Layout.Gap <= 0 {
		return Config{}, fmt.Errorf("config: layout.gap must be positive, got %d", cfg.Layout.Gap)
	}
	return cfg, nil
}

// LoadLevelPreset reads a level naming preset, e.g.
//
//	level1_name = "Saga"
//	level2_name = "Book"
//	level4_name = "Chapter"
//	level4_persist = true
//	level5_name = "Scene"
func LoadLevelPreset(path string) (model.LevelConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.LevelConfig{}, fmt.Errorf("config: read level preset: %w", err)
	}
	var cfg model.LevelConfig
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return model.LevelConfig{}, fmt.Errorf("config: parse level preset %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return model.LevelConfig{}, fmt.Errorf("config: level preset %s: %w", path, err)
	}
	return cfg, nil
}
