package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("EXPORT_SETTLE_DELAY", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Server.Port != "8081" || cfg.Database.Enabled() || cfg.Export.SettleDelay != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Assets.Timeout != 10*time.Second || cfg.Export.Supersample != 2 || cfg.Assets.AllowAbsolute {
		t.Fatalf("unexpected asset/export defaults: %+v %+v", cfg.Assets, cfg.Export)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EXPORT_SETTLE_DELAY", "250ms")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ASSET_ALLOW_ABSOLUTE", "true")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Export.SettleDelay != 250*time.Millisecond {
		t.Fatalf("unexpected settle delay %v", cfg.Export.SettleDelay)
	}
	if !cfg.Assets.AllowAbsolute {
		t.Fatalf("ASSET_ALLOW_ABSOLUTE=true should allow absolute asset paths")
	}
	if got := cfg.Database.DSN(); got != "root:secret@tcp(db:3306)/diploma?charset=utf8mb4&parseTime=True&loc=Local" {
		t.Fatalf("unexpected dsn %q", got)
	}
	cfg.Database.Host = "/cloudsql/x"
	if got := cfg.Database.DSN(); got != "root:secret@unix(/cloudsql/x)/diploma?charset=utf8mb4&parseTime=True&loc=Local" {
		t.Fatalf("unexpected socket dsn %q", got)
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("ASSET_FETCH_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
	t.Setenv("ASSET_FETCH_TIMEOUT", "")
	t.Setenv("ASSET_ALLOW_ABSOLUTE", "maybe")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for invalid ASSET_ALLOW_ABSOLUTE")
	}
}
