package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpcgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
application:
  name: demo-provider
  owner: platform-team
provider:
  host: 192.168.1.10
  token: "true"
protocols:
  - name: http
    port: 8080
  - name: demo
    port: 20880
    context_path: /api
registries:
  - address: registry://zk1.example:2181?registry=memory
services:
  - name: EchoService
    group: g1
    version: 1.0.0
    protocols: [http, demo]
    delay: 5s
    methods:
      - name: echo
        params:
          timeout: "3000"
        arguments:
          - index: 0
            type: string
            callback: true
metadata:
  type: sqlite
  dsn: /tmp/meta.db
logging:
  level: debug
  format: console
metrics:
  enabled: true
  bind: ":9100"
`

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Application.Name != "demo-provider" {
		t.Errorf("application.name = %q", cfg.Application.Name)
	}
	if cfg.Provider.Host != "192.168.1.10" || cfg.Provider.Token != "true" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if len(cfg.Protocols) != 2 {
		t.Fatalf("protocols = %d", len(cfg.Protocols))
	}
	demo, ok := cfg.Protocol("demo")
	if !ok || demo.Port != 20880 || demo.ContextPath != "/api" {
		t.Errorf("demo protocol = %+v", demo)
	}
	if len(cfg.Registries) != 1 || !strings.HasPrefix(cfg.Registries[0].Address, "registry://") {
		t.Errorf("registries = %+v", cfg.Registries)
	}

	if len(cfg.Services) != 1 {
		t.Fatalf("services = %d", len(cfg.Services))
	}
	svc := cfg.Services[0]
	if svc.Name != "EchoService" || svc.Group != "g1" || svc.Version != "1.0.0" {
		t.Errorf("service = %+v", svc)
	}
	if svc.Delay != 5*time.Second {
		t.Errorf("delay = %v", svc.Delay)
	}
	if len(svc.Methods) != 1 || svc.Methods[0].Params["timeout"] != "3000" {
		t.Errorf("methods = %+v", svc.Methods)
	}
	arg := svc.Methods[0].Arguments[0]
	if arg.Index == nil || *arg.Index != 0 || arg.Type != "string" || !arg.Callback {
		t.Errorf("argument = %+v", arg)
	}

	if cfg.Metadata.Type != "sqlite" || cfg.Metadata.DSN != "/tmp/meta.db" {
		t.Errorf("metadata = %+v", cfg.Metadata)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Bind != ":9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "services:\n  - name: Svc\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Application.Name != "rpcgate" {
		t.Errorf("application.name = %q", cfg.Application.Name)
	}
	if len(cfg.Protocols) != 1 || cfg.Protocols[0].Name != "http" {
		t.Errorf("default protocols = %+v", cfg.Protocols)
	}
	if cfg.Metadata.Type != "none" {
		t.Errorf("metadata.type = %q", cfg.Metadata.Type)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Bind != ":9090" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestEnvExpansionInFile(t *testing.T) {
	t.Setenv("TEST_PROVIDER_HOST", "10.0.0.9")
	cfg, err := Load(writeConfig(t, "provider:\n  host: ${TEST_PROVIDER_HOST}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Host != "10.0.0.9" {
		t.Errorf("provider.host = %q", cfg.Provider.Host)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RPCGATE_APPLICATION_NAME", "from-env")
	t.Setenv("RPCGATE_PROVIDER_PORT", "20990")
	t.Setenv("RPCGATE_LOG_LEVEL", "warn")
	t.Setenv("RPCGATE_METRICS_ENABLED", "yes")

	cfg, err := Load(writeConfig(t, "application:\n  name: from-file\nlogging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Application.Name != "from-env" {
		t.Errorf("application.name = %q, env must win", cfg.Application.Name)
	}
	if cfg.Provider.Port != 20990 {
		t.Errorf("provider.port = %d", cfg.Provider.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"nameless protocol", "protocols:\n  - port: 8080\n"},
		{"duplicate protocol", "protocols:\n  - name: http\n  - name: http\n"},
		{"port out of range", "protocols:\n  - name: http\n    port: 70000\n"},
		{"registry without address", "registries:\n  - dynamic: true\n"},
		{"nameless service", "services:\n  - group: g1\n"},
		{"bad scope", "services:\n  - name: S\n    scope: galactic\n"},
		{"unknown service protocol", "services:\n  - name: S\n    protocols: [grpc]\n"},
		{"nameless method", "services:\n  - name: S\n    methods:\n      - params: {}\n"},
		{"empty argument", "services:\n  - name: S\n    methods:\n      - name: m\n        arguments:\n          - callback: true\n"},
		{"bad metadata type", "metadata:\n  type: etcd\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "services: [unclosed\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestSQLiteMetadataDefaultDSN(t *testing.T) {
	cfg, err := Load(writeConfig(t, "metadata:\n  type: sqlite\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Metadata.DSN == "" {
		t.Error("sqlite metadata should get a default DSN")
	}
}
