// Package config loads host settings from lv2host.yaml, LV2HOST_*
// environment variables and the standard LV2_PATH and LV2_STATE_BUNDLE
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/lv2-runtime/engine"
	"github.com/wippyai/lv2-runtime/module"
	"github.com/wippyai/lv2-runtime/state"
	"github.com/wippyai/lv2-runtime/world"
)

const (
	// FileName is the config file name without extension.
	FileName = "lv2host"
	// EnvPrefix prefixes environment overrides, as in LV2HOST_SAMPLE_RATE.
	EnvPrefix = "LV2HOST"
)

// Config holds the host settings.
type Config struct {
	SearchPath           []string `mapstructure:"search_path"`
	StateDir             string   `mapstructure:"state_dir"`
	ScratchDir           string   `mapstructure:"scratch_dir"`
	FilterLanguage       string   `mapstructure:"filter_language"`
	LogLevel             string   `mapstructure:"log_level"`
	SampleRate           float64  `mapstructure:"sample_rate"`
	BlockSize            uint32   `mapstructure:"block_size"`
	MemoryLimitPages     uint32   `mapstructure:"memory_limit_pages"`
	ReplaceNewerVersions bool     `mapstructure:"replace_newer_versions"`
}

// Load reads the configuration. An explicit file must exist; otherwise
// lv2host.yaml is looked up in the working directory and in
// $HOME/.config/lv2host, and a missing file means defaults.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("sample_rate", 48000.0)
	v.SetDefault("block_size", 512)
	v.SetDefault("log_level", "warn")
	v.SetDefault("state_dir", state.DefaultDir())
	v.SetDefault("scratch_dir", filepath.Join(os.TempDir(), "lv2host"))
	v.SetDefault("memory_limit_pages", 0)
	v.SetDefault("replace_newer_versions", false)
	v.SetDefault("filter_language", "")
	v.SetDefault("search_path", []string{})

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The LV2 variables win over the file so bundles behave as in other hosts.
	if env := os.Getenv(world.PathEnv); env != "" {
		cfg.SearchPath = world.SplitPath(env)
	} else {
		cfg.SearchPath = expandAll(cfg.SearchPath)
	}
	if os.Getenv(state.BundleEnv) != "" {
		cfg.StateDir = state.DefaultDir()
	} else {
		cfg.StateDir = world.ExpandPath(cfg.StateDir)
	}
	cfg.ScratchDir = world.ExpandPath(cfg.ScratchDir)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandAll(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, world.ExpandPath(d))
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got: %v", cfg.SampleRate)
	}
	if cfg.BlockSize == 0 {
		return fmt.Errorf("block_size must be positive")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// WorldOptions returns the World options for the configured search path and
// metadata policies.
func (c *Config) WorldOptions() []world.Option {
	var opts []world.Option
	if len(c.SearchPath) > 0 {
		opts = append(opts, world.WithSearchPath(c.SearchPath))
	}
	if c.FilterLanguage != "" {
		lang := c.FilterLanguage
		if lang == "auto" {
			lang = ""
		}
		opts = append(opts, world.WithFilterLanguage(true, lang))
	}
	if c.ReplaceNewerVersions {
		opts = append(opts, world.WithReplaceNewerVersions(true))
	}
	return opts
}

// LoaderOptions returns the module loader options for the configured engine
// limits.
func (c *Config) LoaderOptions() []module.Option {
	if c.MemoryLimitPages == 0 {
		return nil
	}
	return []module.Option{module.WithEngineConfig(engine.Config{MemoryLimitPages: c.MemoryLimitPages})}
}

// Logger builds a console logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
