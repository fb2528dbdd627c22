package config

import (
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFieldsOmitted(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
[engine]
seed = 42
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Engine.Seed)
	}
	if cfg.Engine.RunLength != 1 {
		t.Errorf("RunLength = %d, want default 1", cfg.Engine.RunLength)
	}
	if cfg.Notify.Enabled {
		t.Error("Notify.Enabled should default to false")
	}
	if cfg.Store.DSN != "" {
		t.Errorf("Store.DSN = %q, want empty default", cfg.Store.DSN)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
[engine]
run_length = 100
look_ahead = 5
seed = 7

[store]
dsn = "sqlite://run.db"

[notify]
enabled = true
addr = "localhost:8765"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.RunLength != 100 || cfg.Engine.LookAhead != 5 || cfg.Engine.Seed != 7 {
		t.Errorf("Engine = %+v, want {100 5 7}", cfg.Engine)
	}
	if cfg.Store.DSN != "sqlite://run.db" {
		t.Errorf("Store.DSN = %q", cfg.Store.DSN)
	}
	if !cfg.Notify.Enabled || cfg.Notify.Addr != "localhost:8765" {
		t.Errorf("Notify = %+v, want enabled at localhost:8765", cfg.Notify)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	_, err := Load(strings.NewReader(`not = [valid toml`))
	if err == nil {
		t.Fatal("expected an error for malformed TOML")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/framexpr.toml")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
