package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/repo"
	"github.com/miradorstack/mirador-vizchat/internal/utils"
	"github.com/miradorstack/mirador-vizchat/internal/visualization"
)

// Database defines the query-target behaviour used by the pipeline.
type Database interface {
	TableMetadata(ctx context.Context) (models.SchemaMetadata, error)
	Execute(ctx context.Context, query string) (*repo.ResultSet, error)
}

// SQLGenerator turns a prompt and schema into SQL.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, prompt string, meta models.SchemaMetadata) (string, error)
}

// sqlForgetter is implemented by generators that cache SQL. Cached queries
// that fail the guard or the database are evicted.
type sqlForgetter interface {
	ForgetSQL(ctx context.Context, prompt string, meta models.SchemaMetadata)
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	ReadOnly     bool
	QueryTimeout time.Duration
}

// Outcome is the result of a pipeline run.
type Outcome struct {
	SQL       string
	Rows      []models.Row
	Truncated bool
	Result    visualization.Result
}

// Pipeline runs schema lookup, SQL generation, execution and visualization
// processing for a prompt.
type Pipeline struct {
	logger    *slog.Logger
	db        Database
	generator SQLGenerator
	processor *visualization.Processor
	opts      PipelineOptions
}

// NewPipeline constructs a Pipeline.
func NewPipeline(logger *slog.Logger, db Database, generator SQLGenerator, processor *visualization.Processor, opts PipelineOptions) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if processor == nil {
		processor = visualization.NewProcessor(nil, nil, logger)
	}
	return &Pipeline{logger: logger, db: db, generator: generator, processor: processor, opts: opts}
}

// Run answers prompt. Errors before visualization processing abort the run;
// processing failures are reported through Outcome.Result.Success.
func (p *Pipeline) Run(ctx context.Context, prompt, preference string) (Outcome, error) {
	if p.db == nil || p.generator == nil {
		return Outcome{}, fmt.Errorf("pipeline not configured")
	}

	meta, err := p.db.TableMetadata(ctx)
	if err != nil {
		return Outcome{}, utils.NewAppError("pipeline.schema", "failed to load schema metadata", err)
	}

	sql, err := p.generator.GenerateSQL(ctx, prompt, meta)
	if err != nil {
		return Outcome{}, utils.NewAppError("pipeline.generate", "failed to generate SQL", err)
	}
	p.logger.Debug("generated sql", slog.String("sql", sql))

	if p.opts.ReadOnly {
		if err := GuardReadOnly(sql); err != nil {
			p.forget(ctx, prompt, meta)
			return Outcome{SQL: sql}, utils.NewAppError("pipeline.guard", "refused to run generated SQL", err)
		}
	}

	execCtx := ctx
	if p.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.opts.QueryTimeout)
		defer cancel()
	}
	result, err := p.db.Execute(execCtx, sql)
	if err != nil {
		p.forget(ctx, prompt, meta)
		return Outcome{SQL: sql}, utils.NewAppError("pipeline.execute", "failed to execute SQL", err)
	}

	processed := p.processor.Process(ctx, prompt, result.Rows, preference)
	return Outcome{
		SQL:       sql,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Result:    processed,
	}, nil
}

func (p *Pipeline) forget(ctx context.Context, prompt string, meta models.SchemaMetadata) {
	if f, ok := p.generator.(sqlForgetter); ok {
		f.ForgetSQL(ctx, prompt, meta)
	}
}
