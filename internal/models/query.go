package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VisualizationType selects which renderer interprets a response payload.
type VisualizationType string

const (
	VisualizationTable VisualizationType = "table"
	VisualizationGraph VisualizationType = "graph"
	VisualizationPie   VisualizationType = "pie"
)

// ParseVisualization normalises s and reports whether it names a known type.
func ParseVisualization(s string) (VisualizationType, bool) {
	switch v := VisualizationType(strings.ToLower(strings.TrimSpace(s))); v {
	case VisualizationTable, VisualizationGraph, VisualizationPie:
		return v, true
	default:
		return "", false
	}
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Prompt        string `json:"prompt"`
	Visualization string `json:"visualization,omitempty"`
}

// QueryResponse is the envelope returned for every query. When Success is
// false only Message, Error and HumanReadable are meaningful.
type QueryResponse struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
	Error             string            `json:"error,omitempty"`
	VisualizationType VisualizationType `json:"visualization_type,omitempty"`
	Data              json.RawMessage   `json:"data,omitempty"`
	Raw               []Row             `json:"raw,omitempty"`
	HumanReadable     string            `json:"human_readable,omitempty"`
	SQL               string            `json:"sql,omitempty"`
	QueryID           string            `json:"query_id,omitempty"`
}

// FailureMessage collapses a failed envelope into the text shown to users.
func (r *QueryResponse) FailureMessage() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Error != "":
		return r.Error
	default:
		return "Query execution failed"
	}
}

// Table decodes Data as a table payload.
func (r *QueryResponse) Table() (TableData, error) {
	var out TableData
	err := r.decode(VisualizationTable, &out)
	return out, err
}

// Graph decodes Data as a graph payload.
func (r *QueryResponse) Graph() (GraphData, error) {
	var out GraphData
	err := r.decode(VisualizationGraph, &out)
	return out, err
}

// Pie decodes Data as a pie payload.
func (r *QueryResponse) Pie() (PieData, error) {
	var out PieData
	err := r.decode(VisualizationPie, &out)
	return out, err
}

func (r *QueryResponse) decode(want VisualizationType, dst any) error {
	if r.VisualizationType != want {
		return fmt.Errorf("payload is %q, not %q", r.VisualizationType, want)
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", want, err)
	}
	return nil
}
