package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

const historySchema = `
CREATE TABLE IF NOT EXISTS query_history (
	id            TEXT PRIMARY KEY,
	prompt        TEXT NOT NULL,
	sql_text      TEXT NOT NULL DEFAULT '',
	visualization TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	row_count     INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_created ON query_history(created_at DESC);
`

// HistoryStore persists answered prompts in a local SQLite file.
type HistoryStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenHistoryStore opens (or creates) the history database at path.
func OpenHistoryStore(ctx context.Context, path string) (*HistoryStore, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	// modernc sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure history store: %w", err)
	}
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history store: %w", err)
	}
	return &HistoryStore{db: db, now: time.Now}, nil
}

// Append stores rec, assigning an id and timestamp when missing.
func (h *HistoryStore) Append(ctx context.Context, rec models.HistoryRecord) (models.HistoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = h.now().UTC()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO query_history (id, prompt, sql_text, visualization, success, error, row_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Prompt, rec.SQL, string(rec.Visualization), success, rec.Error,
		rec.RowCount, rec.DurationMS, rec.CreatedAt.UnixNano())
	if err != nil {
		return rec, fmt.Errorf("insert history record: %w", err)
	}
	return rec, nil
}

// List returns records newest first. The page token is the offset of the
// next page.
func (h *HistoryStore) List(ctx context.Context, req models.ListHistoryRequest) (models.ListHistoryResponse, error) {
	size := req.PageSize
	if size <= 0 {
		size = defaultHistoryPageSize
	}
	if size > maxHistoryPageSize {
		size = maxHistoryPageSize
	}
	offset := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 0 {
			return models.ListHistoryResponse{}, fmt.Errorf("%w %q", models.ErrInvalidPageToken, req.PageToken)
		}
		offset = n
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, prompt, sql_text, visualization, success, error, row_count, duration_ms, created_at
		FROM query_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, size+1, offset)
	if err != nil {
		return models.ListHistoryResponse{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	resp := models.ListHistoryResponse{Records: []models.HistoryRecord{}}
	for rows.Next() {
		var (
			rec     models.HistoryRecord
			viz     string
			success int
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Prompt, &rec.SQL, &viz, &success, &rec.Error,
			&rec.RowCount, &rec.DurationMS, &created); err != nil {
			return models.ListHistoryResponse{}, fmt.Errorf("scan history: %w", err)
		}
		rec.Visualization = models.VisualizationType(viz)
		rec.Success = success == 1
		rec.CreatedAt = time.Unix(0, created).UTC()
		resp.Records = append(resp.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return models.ListHistoryResponse{}, fmt.Errorf("iterate history: %w", err)
	}

	if len(resp.Records) > size {
		resp.Records = resp.Records[:size]
		resp.NextPageToken = strconv.Itoa(offset + size)
	}
	return resp, nil
}

// Close closes the underlying database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
