// Package config loads the agency hub configuration.
//
// Configuration is read from a single YAML file on top of Defaults, after
// which AGENCYHUB_* environment variables override individual fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agencyhub/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENCYHUB_"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	LLM       LLMConfig       `yaml:"llm"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Tools     ToolsConfig     `yaml:"tools"`
	Auth      AuthConfig      `yaml:"auth"`
	Templates TemplatesConfig `yaml:"templates"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source"`
}

// TracerConfig configures OpenTelemetry.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// StorageConfig selects the configuration store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path"`
}

// CacheConfig configures the agency cache and the work pool.
type CacheConfig struct {
	Capacity     int           `yaml:"capacity"`
	BuildTimeout time.Duration `yaml:"build_timeout"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
	// Concurrency bounds builds and turns running at once. Zero uses 16.
	Concurrency int `yaml:"concurrency"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai, anthropic, bedrock or mock
	Model       string        `yaml:"model"`
	CheapModel  string        `yaml:"cheap_model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	APIKey      string        `yaml:"api_key"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the model circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RuntimeConfig bounds agent conversations.
type RuntimeConfig struct {
	MaxToolRounds      int           `yaml:"max_tool_rounds"`
	MaxDepth           int           `yaml:"max_depth"`
	MaxModelCalls      int           `yaml:"max_model_calls"`
	MaxHistoryMessages int           `yaml:"max_history_messages"`
	ToolTimeout        time.Duration `yaml:"tool_timeout"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	RootDir   string `yaml:"root_dir"`
	MaxOutput int    `yaml:"max_output"`
}

// AuthConfig lists the accepted bearer tokens.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig maps a bearer token to a user.
type TokenConfig struct {
	Token     string `yaml:"token"`
	UserID    string `yaml:"user_id"`
	Superuser bool   `yaml:"superuser"`
	Disabled  bool   `yaml:"disabled"`
}

// User returns the user the token authenticates.
func (t TokenConfig) User() core.User {
	return core.User{ID: t.UserID, IsSuperuser: t.Superuser, Disabled: t.Disabled}
}

// TemplatesConfig points at a YAML seed file with shared records.
type TemplatesConfig struct {
	File string `yaml:"file"`
}

// Defaults returns a configuration that runs in memory with the mock model.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Logger: LoggerConfig{Level: "info", Format: "json"},
		Tracer: TracerConfig{Exporter: "noop"},
		Storage: StorageConfig{
			Driver: "memory",
			Path:   "agencyhub.db",
		},
		Cache: CacheConfig{
			Capacity:     1024,
			BuildTimeout: 2 * time.Minute,
			TurnTimeout:  5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "mock",
			Temperature: 0.7,
			MaxTokens:   4096,
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Runtime: RuntimeConfig{
			MaxToolRounds:      8,
			MaxDepth:           3,
			MaxModelCalls:      32,
			MaxHistoryMessages: 20,
			ToolTimeout:        15 * time.Second,
		},
		Tools: ToolsConfig{RootDir: ".", MaxOutput: 20000},
	}
}

// Load reads path (optional) over Defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from AGENCYHUB_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Logger.Level)
	str("LOG_FORMAT", &c.Logger.Format)
	boolean("TRACER_ENABLED", &c.Tracer.Enabled)
	str("TRACER_EXPORTER", &c.Tracer.Exporter)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	integer("CACHE_CAPACITY", &c.Cache.Capacity)
	integer("CACHE_CONCURRENCY", &c.Cache.Concurrency)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_CHEAP_MODEL", &c.LLM.CheapModel)
	str("LLM_API_KEY", &c.LLM.APIKey)
	integer("RUNTIME_MAX_TOOL_ROUNDS", &c.Runtime.MaxToolRounds)
	integer("RUNTIME_MAX_DEPTH", &c.Runtime.MaxDepth)
	str("TOOLS_ROOT_DIR", &c.Tools.RootDir)
	str("TEMPLATES_FILE", &c.Templates.File)

	return errors.Join(errs...)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logger.level %q is not supported", c.Logger.Level))
	}
	switch c.Logger.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logger.format %q is not supported", c.Logger.Format))
	}
	switch c.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		errs = append(errs, fmt.Errorf("tracer.exporter %q is not supported", c.Tracer.Exporter))
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity must be positive"))
	}
	if c.Cache.Concurrency < 0 {
		errs = append(errs, errors.New("cache.concurrency must not be negative"))
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "bedrock", "mock":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.Runtime.MaxToolRounds <= 0 {
		errs = append(errs, errors.New("runtime.max_tool_rounds must be positive"))
	}
	if c.Runtime.MaxDepth < 0 {
		errs = append(errs, errors.New("runtime.max_depth must not be negative"))
	}

	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.UserID == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d]: token and user_id are required", i))
			continue
		}
		if seen[t.Token] {
			errs = append(errs, fmt.Errorf("auth.tokens[%d]: duplicate token", i))
		}
		seen[t.Token] = true
	}

	return errors.Join(errs...)
}
