package visualization

import (
	"context"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// SummaryUnavailable replaces the summary when the model cannot produce one.
const SummaryUnavailable = "Summary unavailable - please review raw data"

// Selection sources reported in Result.Source.
const (
	SourcePreference = "preference"
	SourceModel      = "llm"
	SourceRule       = "rule"
	SourceDefault    = "default"
)

// Advisor is the language-model side of visualization processing.
type Advisor interface {
	SuggestVisualization(ctx context.Context, prompt string, sample []models.Row, preference string) (string, error)
	Summarize(ctx context.Context, prompt string, sample []models.Row, vt models.VisualizationType) (string, error)
}

// Result is a processed result set ready for the response envelope.
type Result struct {
	Type          models.VisualizationType
	Data          any
	HumanReadable string
	Success       bool
	Source        string
}

// Processor turns raw rows into a visualization payload plus summary.
type Processor struct {
	advisor     Advisor
	rules       *RuleEngine
	logger      *slog.Logger
	sampleRows  int
	summaryRows int
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithSampleRows sets how many rows are shown to the model for type selection.
func WithSampleRows(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.sampleRows = n
		}
	}
}

// WithSummaryRows sets how many rows are shown to the model for the summary.
func WithSummaryRows(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.summaryRows = n
		}
	}
}

// NewProcessor wires an advisor and an optional rule engine.
func NewProcessor(advisor Advisor, rules *RuleEngine, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{advisor: advisor, rules: rules, logger: logger, sampleRows: 2, summaryRows: 3}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process selects a type, converts rows and summarises them. A conversion
// failure falls back to a table of the raw rows with Success false.
func (p *Processor) Process(ctx context.Context, prompt string, rows []models.Row, preference string) Result {
	vt, source := p.Choose(ctx, prompt, rows, preference)

	data, err := Convert(vt, rows)
	if err != nil {
		p.logger.Error("data processing failed", slog.String("visualization", string(vt)), slog.Any("error", err))
		return Result{
			Type:          models.VisualizationTable,
			Data:          ToTable(rows),
			HumanReadable: "Error: " + err.Error(),
			Success:       false,
			Source:        source,
		}
	}

	summary := SummaryUnavailable
	if p.advisor != nil {
		text, err := p.advisor.Summarize(ctx, prompt, head(rows, p.summaryRows), vt)
		if err != nil {
			p.logger.Warn("summary generation failed", slog.Any("error", err))
		} else if text = strings.TrimSpace(text); text != "" {
			summary = text
		}
	}
	return Result{Type: vt, Data: data, HumanReadable: summary, Success: true, Source: source}
}

// Choose applies, in order: a valid explicit preference, the model's
// suggestion, the rule pack, then table.
func (p *Processor) Choose(ctx context.Context, prompt string, rows []models.Row, preference string) (models.VisualizationType, string) {
	if strings.TrimSpace(preference) != "" {
		if vt, ok := models.ParseVisualization(preference); ok {
			return vt, SourcePreference
		}
		p.logger.Warn("invalid visualization preference", slog.String("preference", preference))
	}

	if p.advisor != nil {
		suggestion, err := p.advisor.SuggestVisualization(ctx, prompt, head(rows, p.sampleRows), preference)
		if err != nil {
			p.logger.Warn("visualization suggestion failed", slog.Any("error", err))
		} else if vt, ok := models.ParseVisualization(strings.Trim(suggestion, " \t\r\n.\"'`")); ok {
			return vt, SourceModel
		} else {
			p.logger.Warn("invalid model visualization suggestion", slog.String("suggestion", suggestion))
		}
	}

	if vt, _, ok := p.rules.Match(prompt, rows); ok {
		return vt, SourceRule
	}
	return models.VisualizationTable, SourceDefault
}

func head(rows []models.Row, n int) []models.Row {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}
