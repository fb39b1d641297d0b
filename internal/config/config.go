// Package config loads the agent configuration from YAML with sane
// defaults and environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Storage StorageConfig `yaml:"storage"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AgentConfig identifies the agent and how it derives its keys.
type AgentConfig struct {
	// IssuerID identifies this agent in proofs and settlement records.
	IssuerID string `yaml:"issuer_id"`
	// WalletAddress is the expected signer of the key-derivation message.
	WalletAddress string `yaml:"wallet_address"`
	// SignatureHex is the wallet signature over the signing message,
	// supplied out-of-band. AGENT_SIGNATURE overrides it.
	SignatureHex string `yaml:"signature_hex"`
	// SaltHex is the key-derivation salt. AGENT_SALT overrides it.
	SaltHex string `yaml:"salt_hex"`
}

// StorageConfig selects the content store backend.
type StorageConfig struct {
	// Backend is one of memory, badger, postgres.
	Backend string `yaml:"backend"`
	// Dir is the badger data directory.
	Dir string `yaml:"dir"`
	// PostgresDSN is the postgres connection string. AGENT_POSTGRES_DSN
	// overrides it.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	// MaxEntries bounds the in-memory audit window.
	MaxEntries int `yaml:"max_entries"`
	// FilePath enables the JSONL file sink when set.
	FilePath string `yaml:"file_path"`
}

// LoggingConfig mirrors pkg/logger's configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Addr enables the /metrics listener when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			IssuerID: "helix-agent",
		},
		Storage: StorageConfig{
			Backend: "memory",
			Dir:     "data/vault",
		},
		Audit: AuditConfig{
			MaxEntries: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, applies defaults for unset fields, then
// environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the given path, falling back to defaults (plus
// environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENT_SIGNATURE"); v != "" {
		c.Agent.SignatureHex = v
	}
	if v := os.Getenv("AGENT_SALT"); v != "" {
		c.Agent.SaltHex = v
	}
	if v := os.Getenv("AGENT_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Agent.IssuerID == "" {
		return fmt.Errorf("config: agent.issuer_id is required")
	}
	switch c.Storage.Backend {
	case "memory":
	case "badger":
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: storage.dir is required for the badger backend")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Audit.MaxEntries < 0 {
		return fmt.Errorf("config: audit.max_entries must not be negative")
	}
	return nil
}
