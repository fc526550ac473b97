package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-vizchat/internal/engine"
	"github.com/miradorstack/mirador-vizchat/internal/metrics"
	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/utils"
)

// ErrInvalidPrompt is returned when a request carries no prompt.
var ErrInvalidPrompt = errors.New("Missing required 'prompt' field")

// ErrNotConfigured is returned when a dependency was not wired.
var ErrNotConfigured = errors.New("service dependency not configured")

// Runner executes the query pipeline.
type Runner interface {
	Run(ctx context.Context, prompt, preference string) (engine.Outcome, error)
}

// HistoryStore persists and lists answered prompts.
type HistoryStore interface {
	Append(ctx context.Context, rec models.HistoryRecord) (models.HistoryRecord, error)
	List(ctx context.Context, req models.ListHistoryRequest) (models.ListHistoryResponse, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueryService is the transport-neutral facade behind the HTTP API, the gRPC
// service and the in-process web UI.
type QueryService struct {
	logger    *slog.Logger
	pipeline  Runner
	history   HistoryStore
	db        Pinger
	timeout   time.Duration
	latencies *utils.LatencyTracker
}

// NewQueryService constructs the facade. history and db may be nil.
func NewQueryService(logger *slog.Logger, pipeline Runner, history HistoryStore, db Pinger, timeout time.Duration) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		logger:    logger,
		pipeline:  pipeline,
		history:   history,
		db:        db,
		timeout:   timeout,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Query answers one prompt. The returned envelope is always non-nil; err is
// ErrInvalidPrompt for blank prompts or the pipeline failure otherwise, so
// transports can pick a status code while still writing the envelope.
func (s *QueryService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		metrics.ObserveQuery(0, metrics.OutcomeRejected, "")
		msg := ErrInvalidPrompt.Error()
		return &models.QueryResponse{Success: false, Error: msg, Message: msg}, ErrInvalidPrompt
	}
	if s.pipeline == nil {
		return failure("", ErrNotConfigured), ErrNotConfigured
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	queryID := uuid.NewString()
	start := time.Now()
	out, err := s.pipeline.Run(ctx, prompt, req.Visualization)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveQuery(duration, metrics.OutcomeError, "")
		s.logger.Error("query failed", slog.String("query_id", queryID), slog.Any("error", err))
		resp := failure(queryID, err)
		resp.SQL = out.SQL
		s.record(ctx, models.HistoryRecord{
			ID:         queryID,
			Prompt:     prompt,
			SQL:        out.SQL,
			Error:      resp.Error,
			DurationMS: duration.Milliseconds(),
		})
		return resp, err
	}

	data, err := json.Marshal(out.Result.Data)
	if err != nil {
		metrics.ObserveQuery(duration, metrics.OutcomeError, "")
		err = utils.NewAppError("services.encode", "failed to encode visualization", err)
		return failure(queryID, err), err
	}

	resp := &models.QueryResponse{
		Success:           out.Result.Success,
		VisualizationType: out.Result.Type,
		Data:              data,
		Raw:               out.Rows,
		HumanReadable:     out.Result.HumanReadable,
		SQL:               out.SQL,
		QueryID:           queryID,
	}
	if resp.Raw == nil {
		resp.Raw = []models.Row{}
	}
	outcome := metrics.OutcomeSuccess
	if !resp.Success {
		outcome = metrics.OutcomeError
		resp.Message = resp.HumanReadable
		resp.Error = resp.HumanReadable
	}
	metrics.ObserveQuery(duration, outcome, string(resp.VisualizationType))
	s.observeLatency(duration)

	s.logger.Info("query answered",
		slog.String("query_id", queryID),
		slog.String("visualization", string(resp.VisualizationType)),
		slog.String("source", out.Result.Source),
		slog.Int("rows", len(out.Rows)),
		slog.Bool("truncated", out.Truncated),
		slog.Duration("duration", duration))

	s.record(ctx, models.HistoryRecord{
		ID:            queryID,
		Prompt:        prompt,
		SQL:           out.SQL,
		Visualization: resp.VisualizationType,
		Success:       resp.Success,
		Error:         resp.Error,
		RowCount:      len(out.Rows),
		DurationMS:    duration.Milliseconds(),
	})
	return resp, nil
}

// History lists previous queries, newest first.
func (s *QueryService) History(ctx context.Context, req models.ListHistoryRequest) (models.ListHistoryResponse, error) {
	if s.history == nil {
		return models.ListHistoryResponse{}, fmt.Errorf("history: %w", ErrNotConfigured)
	}
	return s.history.List(ctx, req)
}

// Health pings the database.
func (s *QueryService) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database: %w", ErrNotConfigured)
	}
	return s.db.Ping(ctx)
}

func (s *QueryService) record(ctx context.Context, rec models.HistoryRecord) {
	if s.history == nil {
		return
	}
	// The request context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := s.history.Append(ctx, rec); err != nil {
		s.logger.Warn("history append failed", slog.String("query_id", rec.ID), slog.Any("error", err))
	}
}

func (s *QueryService) observeLatency(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("query latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}

func failure(queryID string, err error) *models.QueryResponse {
	msg := utils.UserMessage(err)
	return &models.QueryResponse{
		Success:       false,
		Error:         msg,
		Message:       msg,
		HumanReadable: "Error processing request: " + msg,
		QueryID:       queryID,
	}
}
