package models

import (
	"errors"
	"time"
)

// ErrInvalidPageToken is returned when a history page token cannot be decoded.
var ErrInvalidPageToken = errors.New("invalid page token")

// HistoryRecord is one answered prompt persisted to the history store.
type HistoryRecord struct {
	ID            string            `json:"id"`
	Prompt        string            `json:"prompt"`
	SQL           string            `json:"sql,omitempty"`
	Visualization VisualizationType `json:"visualization,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	RowCount      int               `json:"row_count"`
	DurationMS    int64             `json:"duration_ms"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ListHistoryRequest captures pagination for the history listing.
type ListHistoryRequest struct {
	PageSize  int
	PageToken string
}

// ListHistoryResponse contains history records and pagination state.
type ListHistoryResponse struct {
	Records       []HistoryRecord `json:"records"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}
