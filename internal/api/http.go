package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/services"
)

// Service is the query facade exposed over HTTP and gRPC.
type Service interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
	History(ctx context.Context, req models.ListHistoryRequest) (models.ListHistoryResponse, error)
	Health(ctx context.Context) error
}

// jsonHandler returns a status code and a body to encode.
type jsonHandler func(r *http.Request) (int, any)

func wrapJSON(h jsonHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := h(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Routes registers the JSON API on mux.
func Routes(mux *http.ServeMux, svc Service, maxBodyBytes int64, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandlers{svc: svc, logger: logger}
	mux.Handle("POST /api/v1/query", MaxBytes(maxBodyBytes)(wrapJSON(h.query)))
	mux.HandleFunc("GET /api/v1/history", wrapJSON(h.history))
	mux.HandleFunc("GET /healthz", h.health)
}

type httpHandlers struct {
	svc    Service
	logger *slog.Logger
}

func (h *httpHandlers) query(r *http.Request) (int, any) {
	var req models.QueryRequest
	if status, err := readJSON(r, &req); err != nil {
		return status, &models.QueryResponse{Success: false, Error: err.Error(), Message: err.Error()}
	}

	resp, err := h.svc.Query(r.Context(), req)
	switch {
	case err == nil:
		return http.StatusOK, resp
	case errors.Is(err, services.ErrInvalidPrompt):
		return http.StatusBadRequest, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func (h *httpHandlers) history(r *http.Request) (int, any) {
	q := r.URL.Query()
	req := models.ListHistoryRequest{PageToken: q.Get("page_token")}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return http.StatusBadRequest, errorBody("page_size must be a non-negative integer")
		}
		req.PageSize = n
	}

	resp, err := h.svc.History(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			return http.StatusNotFound, errorBody("query history is disabled")
		}
		if errors.Is(err, models.ErrInvalidPageToken) {
			return http.StatusBadRequest, errorBody(err.Error())
		}
		h.logger.Error("list history failed", slog.Any("error", err))
		return http.StatusInternalServerError, errorBody("failed to list history")
	}
	return http.StatusOK, resp
}

func (h *httpHandlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.svc.Health(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "unavailable\n")
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg, "message": msg}
}

// readJSON decodes exactly one JSON value from the body. Size limits are
// enforced by MaxBytes.
func readJSON(r *http.Request, dst any) (int, error) {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, services.ErrInvalidPrompt
		}
		return http.StatusBadRequest, errors.New("invalid JSON body")
	}
	if dec.More() {
		return http.StatusBadRequest, errors.New("invalid JSON body: trailing data")
	}
	return 0, nil
}
