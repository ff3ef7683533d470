// Package config loads the engine configuration from a TOML file.
// Environment variables in ${VAR_NAME} form are expanded before parsing,
// so credentials can stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/gateway"
	"github.com/adolfousier/opencrab/retry"
)

// Config is the complete engine configuration.
type Config struct {
	Session      SessionConfig             `toml:"session"`
	Approval     ApprovalConfig            `toml:"approval"`
	Orchestrator OrchestratorConfig        `toml:"orchestrator"`
	Providers    map[string]ProviderConfig `toml:"providers"`
	Priority     []string                  `toml:"priority"`
	Retry        RetryConfig               `toml:"retry"`
	MCP          []MCPConfig               `toml:"mcp"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	// Store is "memory" or "sqlite".
	Store string `toml:"store"`
	// Path is the SQLite database file for the sqlite store.
	Path string `toml:"path"`
}

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	Timeout    time.Duration `toml:"-"`
	TimeoutRaw string        `toml:"timeout"`
}

// OrchestratorConfig configures the turn loop.
type OrchestratorConfig struct {
	MaxIterations int    `toml:"max_iterations"`
	SystemPrompt  string `toml:"system_prompt"`
	Model         string `toml:"model"`
}

// ProviderConfig configures one LLM backend.
type ProviderConfig struct {
	Enabled      bool   `toml:"enabled"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
	APIKey       string `toml:"api_key"`
	OAuthToken   string `toml:"oauth_token"`
}

// RetryConfig configures backoff for transient provider errors.
type RetryConfig struct {
	MaxAttempts     int           `toml:"max_attempts"`
	InitialDelay    time.Duration `toml:"-"`
	MaxDelay        time.Duration `toml:"-"`
	InitialDelayRaw string        `toml:"initial_delay"`
	MaxDelayRaw     string        `toml:"max_delay"`
}

// MCPConfig configures one remote MCP tool server.
type MCPConfig struct {
	Name    string   `toml:"name"`
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	URL     string   `toml:"url"`
}

// Load reads and parses the configuration file at path. Environment
// variables in ${VAR_NAME} form are expanded; unset variables become empty
// strings, which leaves the corresponding credential source unconfigured.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data))
}

// Parse parses TOML configuration content.
func Parse(content string) (*Config, error) {
	expanded := expandEnvVars(content)

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Approval.TimeoutRaw != "" {
		cfg.Approval.Timeout, err = time.ParseDuration(cfg.Approval.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing approval.timeout %q: %w", cfg.Approval.TimeoutRaw, err)
		}
	}
	if cfg.Retry.InitialDelayRaw != "" {
		cfg.Retry.InitialDelay, err = time.ParseDuration(cfg.Retry.InitialDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry.initial_delay %q: %w", cfg.Retry.InitialDelayRaw, err)
		}
	}
	if cfg.Retry.MaxDelayRaw != "" {
		cfg.Retry.MaxDelay, err = time.ParseDuration(cfg.Retry.MaxDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry.max_delay %q: %w", cfg.Retry.MaxDelayRaw, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Approval.Timeout == 0 {
		cfg.Approval.Timeout = 5 * time.Minute
	}
	if cfg.Orchestrator.MaxIterations == 0 {
		cfg.Orchestrator.MaxIterations = 10
	}
}

// Validate checks the configuration for contradictions. It returns an error
// describing the first problem found.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case "memory":
	case "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown session.store %q (want memory or sqlite)", c.Session.Store)
	}

	for name := range c.Providers {
		switch name {
		case "anthropic", "openai", "google":
		default:
			return fmt.Errorf("unknown provider %q", name)
		}
	}

	for _, p := range c.Priority {
		if _, ok := c.Providers[p]; !ok {
			return fmt.Errorf("priority names unconfigured provider %q", p)
		}
	}

	for i, m := range c.MCP {
		if m.Command == "" && m.URL == "" {
			return fmt.Errorf("mcp[%d]: either command or url is required", i)
		}
	}

	return nil
}

// GatewayConfig converts the provider sections into a gateway configuration.
func (c *Config) GatewayConfig() gateway.Config {
	providers := make(map[ai.Provider]gateway.ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		providers[ai.Provider(name)] = gateway.ProviderConfig{
			Enabled:      p.Enabled,
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
			Credential: gateway.CredentialConfig{
				OAuthToken: p.OAuthToken,
				APIKey:     p.APIKey,
			},
		}
	}

	var priority []ai.Provider
	for _, p := range c.Priority {
		priority = append(priority, ai.Provider(p))
	}

	cfg := gateway.Config{
		Providers: providers,
		Priority:  priority,
	}
	if c.Retry.MaxAttempts > 0 {
		r := retry.DefaultConfig()
		r.MaxAttempts = c.Retry.MaxAttempts
		if c.Retry.InitialDelay > 0 {
			r.InitialDelay = c.Retry.InitialDelay
		}
		if c.Retry.MaxDelay > 0 {
			r.MaxDelay = c.Retry.MaxDelay
		}
		cfg.Retry = &r
	}
	return cfg
}
