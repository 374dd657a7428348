package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iris.json")
	content := `{
  "events": {"url": "ws://oracle:9000/ws", "stale_agent_seconds": 90},
  "registry": {"seed_path": "agents.yaml"},
  "logging": {"audit": {"enabled": true}}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Events.URL != "ws://oracle:9000/ws" {
		t.Fatalf("unexpected events url %q", cfg.Events.URL)
	}
	if cfg.Events.StaleAgentAfter() != 90*time.Second {
		t.Fatalf("unexpected stale timeout %s", cfg.Events.StaleAgentAfter())
	}
	if cfg.Events.HandshakeTimeout() != 10*time.Second {
		t.Fatalf("unexpected handshake timeout %s", cfg.Events.HandshakeTimeout())
	}
	if cfg.Archive.Store.Driver != "memory" || cfg.Archive.Queue.Driver != "memory" {
		t.Fatalf("unexpected archive drivers %+v", cfg.Archive)
	}
	if cfg.Registry.SeedPath != filepath.Join(dir, "agents.yaml") {
		t.Fatalf("seed path not resolved: %q", cfg.Registry.SeedPath)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Runtime.DataDir)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "data", "audit.log") {
		t.Fatalf("unexpected audit path %q", cfg.Logging.Audit.Path)
	}
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestShippedConfigResolvesRelativeFiles(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")
	cfg, err := Load(filepath.Join(dir, "iris.json"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	for _, path := range []string{cfg.Registry.SeedPath, cfg.Web3.ChainConfig} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("referenced file %q missing: %v", path, err)
		}
	}
	if cfg.Archive.Queue.RabbitMQ.Prefetch != 4 || !cfg.Archive.Queue.RabbitMQ.Durable {
		t.Fatalf("unexpected rabbitmq config %+v", cfg.Archive.Queue.RabbitMQ)
	}
}
