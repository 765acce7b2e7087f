package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/artpar/buildgen/internal/core/steps"
	"github.com/artpar/buildgen/internal/shell/emitter"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Generator GeneratorConfig     `mapstructure:"generator"`
	Deploy    DeployConfig        `mapstructure:"deploy"`
	Tools     steps.Tools         `mapstructure:"tools"`
	CMake     emitter.CMakeConfig `mapstructure:"cmake"`
	Journal   JournalConfig       `mapstructure:"journal"`
	Log       LogConfig           `mapstructure:"log"`
}

// GeneratorConfig controls planning and emission.
type GeneratorConfig struct {
	Backend       string `mapstructure:"backend"`
	OutputDir     string `mapstructure:"output_dir"`     // emitted build files
	GeneratedRoot string `mapstructure:"generated_root"` // outputs of derived steps
	Parallelism   int    `mapstructure:"parallelism"`
	DryRun        bool   `mapstructure:"dry_run"`
	DiffContext   int    `mapstructure:"diff_context"`
	MaxDiffBytes  int    `mapstructure:"max_diff_bytes"` // 0 disables the limit
}

// DeployConfig controls runtime file staging.
type DeployConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PublishRoot   string `mapstructure:"publish_root"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// JournalConfig holds the run journal database. An empty DSN disables it.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	tools := steps.DefaultTools()
	cmake := emitter.DefaultCMakeConfig()

	v.SetDefault("generator.backend", "cmake")
	v.SetDefault("generator.output_dir", "build")
	v.SetDefault("generator.generated_root", "build/generated")
	v.SetDefault("generator.parallelism", 0)
	v.SetDefault("generator.dry_run", false)
	v.SetDefault("generator.diff_context", 3)
	v.SetDefault("generator.max_diff_bytes", 1<<20)
	v.SetDefault("deploy.enabled", true)
	v.SetDefault("deploy.publish_root", "publish")
	v.SetDefault("deploy.max_concurrent", 4)
	v.SetDefault("tools.protoc", tools.InterfaceCompiler)
	v.SetDefault("tools.antlr_jar", tools.GrammarCompiler)
	v.SetDefault("cmake.minimum_version", cmake.MinimumVersion)
	v.SetDefault("cmake.cxx_standard", cmake.CXXStandard)
	v.SetDefault("cmake.module_path", "")
	v.SetDefault("journal.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	v.SetEnvPrefix("BUILDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.Generator.Backend == "" {
		return fmt.Errorf("generator.backend is required")
	}
	if c.Generator.Parallelism < 0 {
		return fmt.Errorf("generator.parallelism must not be negative")
	}
	if c.Generator.MaxDiffBytes < 0 {
		return fmt.Errorf("generator.max_diff_bytes must not be negative")
	}
	if c.Deploy.MaxConcurrent < 1 {
		return fmt.Errorf("deploy.max_concurrent must be at least 1")
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
