// Package config loads the broker configuration once at startup.
//
// Configuration comes from an optional YAML file, SANDBOX_* environment
// overrides, and programmed defaults, in that order of precedence. The
// resulting Config is never mutated after Load returns; every worker shares
// the same value without locking.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full read-once configuration surface of the broker.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Sandbox   SandboxConfig    `mapstructure:"sandbox"`
	Languages []LanguageConfig `mapstructure:"languages"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SandboxConfig holds broker-wide execution settings.
type SandboxConfig struct {
	// EnableDocker controls whether the container backend is probed at all.
	// When false the broker goes straight to the process backend.
	EnableDocker bool `mapstructure:"enable_docker"`
	// OutputLimitBytes caps captured stdout and stderr, each.
	OutputLimitBytes int `mapstructure:"output_limit_bytes"`
	// CodeLimitBytes caps submitted source size.
	CodeLimitBytes int `mapstructure:"code_limit_bytes"`
	// StdinLimitBytes caps the optional stdin payload.
	StdinLimitBytes int `mapstructure:"stdin_limit_bytes"`
}

// LanguageConfig describes one registry entry.
type LanguageConfig struct {
	Name       string   `mapstructure:"name"`
	Image      string   `mapstructure:"image"`
	Command    []string `mapstructure:"command"`
	Extension  string   `mapstructure:"extension"`
	TimeoutSec int      `mapstructure:"timeout_sec"`
	MemoryMB   int      `mapstructure:"memory_mb"`
	CPULimit   float64  `mapstructure:"cpu_limit"`
	Example    string   `mapstructure:"example"`
}

// Load reads configuration from the given file (optional), the environment,
// and defaults. A missing config file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sandbox")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SANDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// An omitted cpu_limit means 0 NanoCPUs, which Docker treats as
	// unlimited; fill in the stock share before validating.
	for i := range cfg.Languages {
		if cfg.Languages[i].CPULimit == 0 {
			cfg.Languages[i].CPULimit = defaultCPULimit
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// defaultCPULimit is the CPU share a language entry gets when the file
// leaves cpu_limit unset.
const defaultCPULimit = 0.5

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("sandbox.enable_docker", true)
	v.SetDefault("sandbox.output_limit_bytes", 64*1024)
	v.SetDefault("sandbox.code_limit_bytes", 10*1024)
	v.SetDefault("sandbox.stdin_limit_bytes", 64*1024)
	v.SetDefault("languages", defaultLanguages())
}

// defaultLanguages mirrors the stock language table: python, javascript and
// bash with conservative time and memory budgets.
func defaultLanguages() []map[string]any {
	return []map[string]any{
		{
			"name":        "python",
			"image":       "python:3.11-alpine",
			"command":     []string{"python3"},
			"extension":   ".py",
			"timeout_sec": 30,
			"memory_mb":   128,
			"cpu_limit":   0.5,
			"example":     pythonExample,
		},
		{
			"name":        "javascript",
			"image":       "node:18-alpine",
			"command":     []string{"node"},
			"extension":   ".js",
			"timeout_sec": 30,
			"memory_mb":   128,
			"cpu_limit":   0.5,
			"example":     javascriptExample,
		},
		{
			"name":        "bash",
			"image":       "alpine:3.19",
			"command":     []string{"sh"},
			"extension":   ".sh",
			"timeout_sec": 15,
			"memory_mb":   64,
			"cpu_limit":   0.5,
			"example":     bashExample,
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Sandbox.OutputLimitBytes <= 0 {
		return fmt.Errorf("sandbox.output_limit_bytes must be positive, got %d", c.Sandbox.OutputLimitBytes)
	}
	if c.Sandbox.CodeLimitBytes <= 0 {
		return fmt.Errorf("sandbox.code_limit_bytes must be positive, got %d", c.Sandbox.CodeLimitBytes)
	}
	if c.Sandbox.StdinLimitBytes <= 0 {
		return fmt.Errorf("sandbox.stdin_limit_bytes must be positive, got %d", c.Sandbox.StdinLimitBytes)
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one language must be configured")
	}

	seen := make(map[string]bool, len(c.Languages))
	for i, lang := range c.Languages {
		if lang.Name == "" {
			return fmt.Errorf("languages[%d]: name is required", i)
		}
		if seen[lang.Name] {
			return fmt.Errorf("languages[%d]: duplicate language %q", i, lang.Name)
		}
		seen[lang.Name] = true
		if lang.Image == "" {
			return fmt.Errorf("language %q: image is required", lang.Name)
		}
		if len(lang.Command) == 0 {
			return fmt.Errorf("language %q: command is required", lang.Name)
		}
		if lang.Extension == "" {
			return fmt.Errorf("language %q: extension is required", lang.Name)
		}
		if lang.TimeoutSec <= 0 {
			return fmt.Errorf("language %q: timeout_sec must be positive, got %d", lang.Name, lang.TimeoutSec)
		}
		if lang.MemoryMB <= 0 {
			return fmt.Errorf("language %q: memory_mb must be positive, got %d", lang.Name, lang.MemoryMB)
		}
		if lang.CPULimit <= 0 {
			return fmt.Errorf("language %q: cpu_limit must be positive, got %g", lang.Name, lang.CPULimit)
		}
	}
	return nil
}

// Timeout returns the wall-clock budget of one language entry.
func (l LanguageConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}

// MemoryBytes returns the memory ceiling of one language entry.
func (l LanguageConfig) MemoryBytes() int64 {
	return int64(l.MemoryMB) * 1024 * 1024
}
