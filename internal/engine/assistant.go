package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-vizchat/internal/cache"
	"github.com/miradorstack/mirador-vizchat/internal/llm"
	"github.com/miradorstack/mirador-vizchat/internal/metrics"
	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// Completer is the llm.Client behaviour used by the assistant.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// AssistantOptions tunes model calls and SQL caching.
type AssistantOptions struct {
	Temperature *float64
	MaxTokens   int
	// Dialect is mentioned in the SQL prompt when set, e.g. "PostgreSQL".
	Dialect string
	Cache   cache.Provider
	SQLTTL  time.Duration
	Logger  *slog.Logger
}

// Assistant wraps the three model prompts: SQL generation, visualization
// suggestion and result summary.
type Assistant struct {
	llm         Completer
	temperature *float64
	maxTokens   int
	dialect     string
	cache       cache.Provider
	sqlTTL      time.Duration
	logger      *slog.Logger
}

// NewAssistant constructs an Assistant.
func NewAssistant(c Completer, opts AssistantOptions) *Assistant {
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Assistant{
		llm:         c,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		dialect:     opts.Dialect,
		cache:       opts.Cache,
		sqlTTL:      opts.SQLTTL,
		logger:      opts.Logger,
	}
}

// GenerateSQL asks the model for a query answering prompt over meta.
// Generated SQL is cached per prompt and schema fingerprint. When two
// callers generate the same entry concurrently the first stored query wins
// and both return it.
func (a *Assistant) GenerateSQL(ctx context.Context, prompt string, meta models.SchemaMetadata) (string, error) {
	key := ""
	if a.sqlTTL > 0 {
		key = a.sqlKey(prompt, meta)
		if data, err := a.cache.Get(ctx, key); err == nil && len(data) > 0 {
			metrics.ObserveCacheLookup("sql", true)
			return string(data), nil
		}
		metrics.ObserveCacheLookup("sql", false)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema metadata: %w", err)
	}
	hint := ""
	if a.dialect != "" {
		hint = fmt.Sprintf(sqlDialectHint, a.dialect)
	}

	text, err := a.complete(ctx, fmt.Sprintf(sqlPromptTemplate, prompt, metaJSON, hint))
	if err != nil {
		return "", fmt.Errorf("SQL generation failed: %w", err)
	}
	sql := CleanSQL(text)
	if sql == "" {
		return "", errors.New("SQL generation returned an empty query")
	}

	if key != "" {
		stored, err := a.cache.SetNX(ctx, key, []byte(sql), a.sqlTTL)
		switch {
		case err != nil:
			a.logger.Warn("sql cache write failed", slog.Any("error", err))
		case !stored:
			if data, err := a.cache.Get(ctx, key); err == nil && len(data) > 0 {
				sql = string(data)
			}
		}
	}
	return sql, nil
}

// ForgetSQL evicts the cached query for prompt so the next request asks the
// model again.
func (a *Assistant) ForgetSQL(ctx context.Context, prompt string, meta models.SchemaMetadata) {
	if a.sqlTTL <= 0 {
		return
	}
	if err := a.cache.Del(ctx, a.sqlKey(prompt, meta)); err != nil {
		a.logger.Warn("sql cache eviction failed", slog.Any("error", err))
	}
}

func (a *Assistant) sqlKey(prompt string, meta models.SchemaMetadata) string {
	return cache.Key("sql", prompt, meta.Fingerprint(), a.dialect)
}

// SuggestVisualization returns the model's lower-cased visualization choice.
func (a *Assistant) SuggestVisualization(ctx context.Context, prompt string, sample []models.Row, preference string) (string, error) {
	if preference == "" {
		preference = "none"
	}
	text, err := a.complete(ctx, fmt.Sprintf(visualizationPromptTemplate, prompt, sampleJSON(sample), preference))
	if err != nil {
		return "", fmt.Errorf("visualization determination failed: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(text)), nil
}

// Summarize returns a short plain-text description of the sample.
func (a *Assistant) Summarize(ctx context.Context, prompt string, sample []models.Row, vt models.VisualizationType) (string, error) {
	text, err := a.complete(ctx, fmt.Sprintf(summaryPromptTemplate, prompt, vt, sampleJSON(sample)))
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (a *Assistant) complete(ctx context.Context, content string) (string, error) {
	if a.llm == nil {
		return "", errors.New("llm client not configured")
	}
	resp, err := a.llm.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: content}},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func sampleJSON(sample []models.Row) string {
	if sample == nil {
		sample = []models.Row{}
	}
	raw, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// CleanSQL strips whitespace, markdown fences, a leading "sql" language tag
// and a trailing semicolon from a model reply.
func CleanSQL(text string) string {
	s := strings.TrimSpace(text)
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "sql") && (len(s) == 3 || s[3] == '\n' || s[3] == '\r' || s[3] == ' ') {
		s = strings.TrimSpace(s[3:])
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	return s
}
