// Package config loads compdb configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"compdb/internal/compdb"
	"compdb/internal/workspace"
)

// DefaultFile is the config file name looked up in the working directory
// when no explicit path is given.
const DefaultFile = "compdb.yaml"

// BuildToolConfig describes how to invoke the external build tool. The
// command may contain {descriptor}, {target}, and {output} placeholders.
type BuildToolConfig struct {
	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the top-level configuration struct.
type Config struct {
	Compiler      string   `yaml:"compiler"`
	DefaultFlags  []string `yaml:"default_flags"`
	OutputDir     string   `yaml:"output_dir"`
	Descriptor    string   `yaml:"descriptor"`
	Marker        string   `yaml:"workspace_marker"`
	Target        string   `yaml:"target"`
	NotifyCommand []string `yaml:"notify_command"`

	BuildTool BuildToolConfig `yaml:"build_tool"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Compiler:     compdb.DefaultCompiler,
		DefaultFlags: append([]string(nil), compdb.DefaultFlags...),
		Descriptor:   workspace.DefaultDescriptor,
		Marker:       workspace.DefaultMarker,
		Target:       "project-info",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration at path, merged over the defaults and
// under any COMPDB_* environment overrides. An empty path falls back to
// DefaultFile when it exists; a missing file is not an error, a
// malformed one is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// no config file, defaults apply
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("COMPDB_COMPILER")); v != "" {
		cfg.Compiler = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPDB_DEFAULT_FLAGS")); v != "" {
		cfg.DefaultFlags = strings.Fields(v)
	}
	if v := strings.TrimSpace(os.Getenv("COMPDB_OUTPUT_DIR")); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPDB_TARGET")); v != "" {
		cfg.Target = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPDB_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}
