package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "ORDERS_TABLE", "IDEMPOTENCY_TTL", "RUN_LOCAL", "METRICS_NAMESPACE"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.Tables.Orders != "orders" {
		t.Fatalf("orders table = %q", cfg.Tables.Orders)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("ttl = %s", cfg.IdempotencyTTL)
	}
	if cfg.RunLocal {
		t.Fatalf("RunLocal should default to false")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "orders-dev")
	t.Setenv("RUN_LOCAL", "true")
	t.Setenv("IDEMPOTENCY_TTL", "12")

	cfg := FromEnv()
	if cfg.Tables.Orders != "orders-dev" {
		t.Fatalf("orders table = %q", cfg.Tables.Orders)
	}
	if !cfg.RunLocal {
		t.Fatalf("expected RunLocal")
	}
	if cfg.IdempotencyTTL != 12*time.Hour {
		t.Fatalf("ttl = %s", cfg.IdempotencyTTL)
	}

	t.Setenv("IDEMPOTENCY_TTL", "90m")
	if got := FromEnv().IdempotencyTTL; got != 90*time.Minute {
		t.Fatalf("ttl = %s", got)
	}
}
