package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the vizchat service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	UI       UIConfig       `yaml:"ui"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
	Rules    RulesConfig    `yaml:"rules"`
	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	// RateLimit is the sustained number of queries per second; zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// UIConfig controls the embedded chat page.
type UIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	// BackendURL points the page at a remote query backend. Empty means in-process.
	BackendURL string        `yaml:"backendURL"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the database prompts are answered against.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Name         string        `yaml:"name"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"sslMode"`
	Schema       string        `yaml:"schema"`
	MaxRows      int           `yaml:"maxRows"`
	ReadOnly     bool          `yaml:"readOnly"`
	MaxOpenConns int           `yaml:"maxOpenConns"`
	ConnMaxIdle  time.Duration `yaml:"connMaxIdle"`
}

// LLMConfig configures the language model endpoints.
type LLMConfig struct {
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BackoffBase time.Duration `yaml:"backoffBase"`
	MaxBackoff  time.Duration `yaml:"maxBackoff"`
	// Endpoints is the ordered fallback chain. When empty, Resolve picks groq or ollama.
	Endpoints []EndpointConfig `yaml:"endpoints"`
	GroqAPIKey string          `yaml:"groqAPIKey"`
	OllamaURL  string          `yaml:"ollamaURL"`
	// SummaryRows and SampleRows bound how much of the result is shown to the model.
	SummaryRows int `yaml:"summaryRows"`
	SampleRows  int `yaml:"sampleRows"`
}

// EndpointConfig is a single provider endpoint in the chain.
type EndpointConfig struct {
	Provider string `yaml:"provider"`
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls visualization rule-pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
	// Watch reloads the rule file when it changes on disk.
	Watch bool `yaml:"watch"`
}

// CacheConfig controls caching of schema metadata and generated SQL.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	SchemaTTL    time.Duration `yaml:"schemaTTL"`
	SQLTTL       time.Duration `yaml:"sqlTTL"`
}

// HistoryConfig controls the query history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VIZCHAT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8000",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			QueryTimeout:    2 * time.Minute,
			AllowedOrigins:  []string{"http://localhost:5173"},
			MaxBodyBytes:    1 << 20,
			RateBurst:       4,
		},
		UI: UIConfig{
			Enabled: true,
			Title:   "SQL Visualization Chat",
			Timeout: 3 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:       "pgx",
			Host:         "localhost",
			Port:         5432,
			SSLMode:      "disable",
			Schema:       "public",
			MaxRows:      1000,
			ReadOnly:     true,
			MaxOpenConns: 5,
			ConnMaxIdle:  5 * time.Minute,
		},
		LLM: LLMConfig{
			Model:       "llama3.2",
			Timeout:     3 * time.Minute,
			MaxAttempts: 3,
			BackoffBase: 2 * time.Second,
			MaxBackoff:  30 * time.Second,
			OllamaURL:   "http://localhost:11434/v1",
			SummaryRows: 3,
			SampleRows:  2,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/visualization.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      "memory",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			SchemaTTL:    5 * time.Minute,
			SQLTTL:       10 * time.Minute,
		},
		History: HistoryConfig{Enabled: false, Path: "vizchat_history.db"},
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "pgx", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "valkey":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Database.MaxRows < 0 {
		return fmt.Errorf("database.maxRows must not be negative")
	}
	if c.UI.BackendURL != "" {
		if _, err := url.ParseRequestURI(c.UI.BackendURL); err != nil {
			return fmt.Errorf("ui.backendURL: %w", err)
		}
	}
	return nil
}

// DataSourceName returns the driver name and DSN used to open the database.
func (d DatabaseConfig) DataSourceName() (driver, dsn string) {
	switch d.Driver {
	case "sqlite":
		return "sqlite", d.DSN
	default:
		if d.DSN != "" {
			return "pgx", d.DSN
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Name,
		}
		if d.User != "" {
			if d.Password != "" {
				u.User = url.UserPassword(d.User, d.Password)
			} else {
				u.User = url.User(d.User)
			}
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
		}
		return "pgx", u.String()
	}
}

// Resolve returns the configured endpoint chain, or the groq/ollama default.
func (l LLMConfig) Resolve() []EndpointConfig {
	if len(l.Endpoints) > 0 {
		out := make([]EndpointConfig, 0, len(l.Endpoints))
		for _, ep := range l.Endpoints {
			if ep.Model == "" {
				ep.Model = l.Model
			}
			out = append(out, ep)
		}
		return out
	}
	if l.GroqAPIKey != "" {
		return []EndpointConfig{{Provider: "groq", Model: l.Model, APIKey: l.GroqAPIKey}}
	}
	return []EndpointConfig{{Provider: "ollama", URL: l.OllamaURL, Model: l.Model}}
}

func applyEnvOverrides(cfg *Config) {
	// Variables understood by the original backend deployment.
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("VIZCHAT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("VIZCHAT_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("VIZCHAT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("VIZCHAT_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("VIZCHAT_RATE_LIMIT"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = rate
		}
	}
	if v := os.Getenv("VIZCHAT_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.QueryTimeout = d
		}
	}
	if v := os.Getenv("VIZCHAT_UI_BACKEND_URL"); v != "" {
		cfg.UI.BackendURL = v
	}
	if v := os.Getenv("VIZCHAT_UI_ENABLED"); v != "" {
		cfg.UI.Enabled = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("VIZCHAT_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("VIZCHAT_DB_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxRows = n
		}
	}
	if v := os.Getenv("VIZCHAT_DB_READ_ONLY"); v != "" {
		cfg.Database.ReadOnly = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("VIZCHAT_LLM_OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
	if v := os.Getenv("VIZCHAT_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("VIZCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VIZCHAT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("VIZCHAT_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("VIZCHAT_RULES_WATCH"); v != "" {
		cfg.Rules.Watch = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("VIZCHAT_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("VIZCHAT_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("VIZCHAT_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("VIZCHAT_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("VIZCHAT_CACHE_TLS"); v != "" {
		cfg.Cache.TLS = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_CACHE_SCHEMA_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SchemaTTL = d
		}
	}
	if v := os.Getenv("VIZCHAT_CACHE_SQL_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SQLTTL = d
		}
	}
	if v := os.Getenv("VIZCHAT_HISTORY_ENABLED"); v != "" {
		cfg.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("VIZCHAT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
