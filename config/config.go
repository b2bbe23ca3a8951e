// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Provider    ProviderConfig    `yaml:"provider"`
	Protocols   []ProtocolConfig  `yaml:"protocols"`
	Registries  []RegistryConfig  `yaml:"registries"`
	Services    []ServiceConfig   `yaml:"services"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ApplicationConfig identifies the running application.
type ApplicationConfig struct {
	Name    string            `yaml:"name"`
	Owner   string            `yaml:"owner,omitempty"`
	Module  string            `yaml:"module,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
	Monitor string            `yaml:"monitor,omitempty"`
}

// ProviderConfig sets shared defaults applied beneath every service's own
// settings.
type ProviderConfig struct {
	Host   string            `yaml:"host,omitempty"`
	Port   int               `yaml:"port,omitempty"`
	Token  string            `yaml:"token,omitempty"`
	Params map[string]string `yaml:"params,omitempty"`
}

// ProtocolConfig configures one transport.
type ProtocolConfig struct {
	Name        string            `yaml:"name"`
	Host        string            `yaml:"host,omitempty"`
	Port        int               `yaml:"port,omitempty"`
	ContextPath string            `yaml:"context_path,omitempty"`
	Params      map[string]string `yaml:"params,omitempty"`
}

// RegistryConfig configures one discovery backend.
type RegistryConfig struct {
	Address string `yaml:"address"`
	Dynamic *bool  `yaml:"dynamic,omitempty"`
}

// ServiceConfig configures one exported service.
type ServiceConfig struct {
	Name      string            `yaml:"name"`
	Group     string            `yaml:"group,omitempty"`
	Version   string            `yaml:"version,omitempty"`
	Path      string            `yaml:"path,omitempty"`
	Generic   bool              `yaml:"generic,omitempty"`
	Disabled  bool              `yaml:"disabled,omitempty"`
	Delay     time.Duration     `yaml:"delay,omitempty"`
	Token     string            `yaml:"token,omitempty"`
	Scope     string            `yaml:"scope,omitempty"`
	Protocols []string          `yaml:"protocols,omitempty"`
	Params    map[string]string `yaml:"params,omitempty"`
	Methods   []MethodConfig    `yaml:"methods,omitempty"`
}

// MethodConfig overrides settings for one method.
type MethodConfig struct {
	Name      string            `yaml:"name"`
	Params    map[string]string `yaml:"params,omitempty"`
	Arguments []ArgumentConfig  `yaml:"arguments,omitempty"`
}

// ArgumentConfig annotates one method argument. Index is -1 when only the
// type is declared.
type ArgumentConfig struct {
	Index    *int              `yaml:"index,omitempty"`
	Type     string            `yaml:"type,omitempty"`
	Callback bool              `yaml:"callback,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// MetadataConfig configures the metadata store.
type MetadataConfig struct {
	Type string `yaml:"type"` // "none" or "sqlite"
	DSN  string `yaml:"dsn,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind,omitempty"` // listen address (default: :9090)
	Path    string `yaml:"path,omitempty"` // scrape path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies RPCGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPCGATE_APPLICATION_NAME"); v != "" {
		cfg.Application.Name = v
	}
	if v := os.Getenv("RPCGATE_PROVIDER_HOST"); v != "" {
		cfg.Provider.Host = v
	}
	if v := os.Getenv("RPCGATE_PROVIDER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Provider.Port = port
		}
	}
	if v := os.Getenv("RPCGATE_METADATA_TYPE"); v != "" {
		cfg.Metadata.Type = v
	}
	if v := os.Getenv("RPCGATE_METADATA_DSN"); v != "" {
		cfg.Metadata.DSN = v
	}
	if v := os.Getenv("RPCGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RPCGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RPCGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("RPCGATE_METRICS_BIND"); v != "" {
		cfg.Metrics.Bind = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Application.Name == "" {
		cfg.Application.Name = "rpcgate"
	}

	if len(cfg.Protocols) == 0 {
		cfg.Protocols = []ProtocolConfig{{Name: "http"}}
	}

	if cfg.Metadata.Type == "" {
		cfg.Metadata.Type = "none"
	}
	if cfg.Metadata.Type == "sqlite" && cfg.Metadata.DSN == "" {
		cfg.Metadata.DSN = "rpcgate-metadata.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Bind == "" {
		cfg.Metrics.Bind = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	seen := map[string]bool{}
	for i, pc := range cfg.Protocols {
		if pc.Name == "" {
			return fmt.Errorf("protocols[%d].name is required", i)
		}
		if seen[pc.Name] {
			return fmt.Errorf("protocol %q configured twice", pc.Name)
		}
		seen[pc.Name] = true
		if pc.Port < 0 || pc.Port > 65535 {
			return fmt.Errorf("protocols[%d].port %d out of range", i, pc.Port)
		}
	}

	for i, rc := range cfg.Registries {
		if rc.Address == "" {
			return fmt.Errorf("registries[%d].address is required", i)
		}
	}

	for i, sc := range cfg.Services {
		if sc.Name == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		switch sc.Scope {
		case "", "none", "local", "remote":
		default:
			return fmt.Errorf("services[%d].scope must be none, local or remote, got %q", i, sc.Scope)
		}
		for _, p := range sc.Protocols {
			if !seen[p] {
				return fmt.Errorf("services[%d] references unconfigured protocol %q", i, p)
			}
		}
		for j, mc := range sc.Methods {
			if mc.Name == "" {
				return fmt.Errorf("services[%d].methods[%d].name is required", i, j)
			}
			for k, ac := range mc.Arguments {
				if ac.Index == nil && ac.Type == "" {
					return fmt.Errorf("services[%d].methods[%d].arguments[%d] must set index or type", i, j, k)
				}
			}
		}
	}

	validMetadata := map[string]bool{"none": true, "sqlite": true}
	if !validMetadata[cfg.Metadata.Type] {
		return fmt.Errorf("metadata.type must be 'none' or 'sqlite', got %q", cfg.Metadata.Type)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}

// Protocol returns the protocol configuration by name.
func (c *Config) Protocol(name string) (ProtocolConfig, bool) {
	for _, pc := range c.Protocols {
		if pc.Name == name {
			return pc, true
		}
	}
	return ProtocolConfig{}, false
}
