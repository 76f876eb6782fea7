package database

import (
	"testing"
	"time"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/chat?sslmode=disable", PoolSize{MaxConns: 8, MinConns: 2})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if cfg.MaxConns != 8 || cfg.MinConns != 2 {
		t.Errorf("expected pool 2..8, got %d..%d", cfg.MinConns, cfg.MaxConns)
	}
	if cfg.MaxConnIdleTime != 5*time.Minute {
		t.Errorf("unexpected idle time %v", cfg.MaxConnIdleTime)
	}
	if cfg.ConnConfig.Database != "chat" {
		t.Errorf("expected database chat, got %q", cfg.ConnConfig.Database)
	}
}

func TestPoolConfig_BadURL(t *testing.T) {
	if _, err := poolConfig("postgres://u@localhost:notaport/chat", PoolSize{MaxConns: 1}); err == nil {
		t.Error("expected parse error")
	}
}
