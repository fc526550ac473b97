package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIZCHAT_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if !cfg.Database.ReadOnly || cfg.Database.MaxRows != 1000 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.LLM.SummaryRows != 3 || cfg.LLM.SampleRows != 2 {
		t.Fatalf("unexpected sample sizes: %+v", cfg.LLM)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vizchat.yaml")
	if err := os.WriteFile(path, []byte(`server:
  address: ":9000"
  rateLimit: 1.5
database:
  driver: sqlite
  dsn: file:test.db
cache:
  enabled: true
  schemaTTL: 30s
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VIZCHAT_SERVER_ADDRESS", ":9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("LLM_MODEL", "mixtral")
	t.Setenv("VIZCHAT_RULES_WATCH", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9100" {
		t.Fatalf("env override not applied: %s", cfg.Server.Address)
	}
	if cfg.Server.RateLimit != 1.5 {
		t.Fatalf("unexpected rate limit: %v", cfg.Server.RateLimit)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected driver: %s", cfg.Database.Driver)
	}
	if !cfg.Cache.Enabled || cfg.Cache.SchemaTTL != 30*time.Second {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.LLM.Model != "mixtral" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if !cfg.Rules.Watch {
		t.Fatalf("expected rules watch enabled from env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Driver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDataSourceNamePostgres(t *testing.T) {
	db := DatabaseConfig{Driver: "pgx", Host: "db", Port: 5433, Name: "shop", User: "app", Password: "s3cret", SSLMode: "disable"}
	driver, dsn := db.DataSourceName()
	if driver != "pgx" {
		t.Fatalf("unexpected driver: %s", driver)
	}
	if dsn != "postgres://app:s3cret@db:5433/shop?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestResolveEndpoints(t *testing.T) {
	llm := LLMConfig{Model: "llama3.2", OllamaURL: "http://ollama:11434/v1"}
	eps := llm.Resolve()
	if len(eps) != 1 || eps[0].Provider != "ollama" || eps[0].URL != "http://ollama:11434/v1" {
		t.Fatalf("unexpected default chain: %+v", eps)
	}

	llm.GroqAPIKey = "gsk"
	eps = llm.Resolve()
	if eps[0].Provider != "groq" || eps[0].APIKey != "gsk" {
		t.Fatalf("expected groq when key present: %+v", eps)
	}

	llm.Endpoints = []EndpointConfig{{Provider: "gemini"}, {Provider: "ollama", Model: "phi3"}}
	eps = llm.Resolve()
	if eps[0].Model != "llama3.2" || eps[1].Model != "phi3" {
		t.Fatalf("expected model inheritance: %+v", eps)
	}
}
