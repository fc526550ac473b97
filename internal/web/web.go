// Package web serves the chat page: a prompt form, an error banner and the
// rendered result of the last query.
package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/render"
)

//go:embed templates/* static/*
var embedded embed.FS

// Querier answers one prompt. Both the HTTP client and the in-process query
// service satisfy it.
type Querier interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
}

// Options configures the chat page.
type Options struct {
	Title  string
	Logger *slog.Logger
}

// Handler renders the chat page.
type Handler struct {
	querier Querier
	title   string
	logger  *slog.Logger
	page    *template.Template
	static  http.Handler
}

type pageData struct {
	Title         string
	Prompt        string
	Error         string
	Result        bool
	Visualization template.HTML
	HumanReadable template.HTML
}

// New builds the page handler.
func New(querier Querier, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "SQL Visualization Chat"
	}
	sub, _ := fs.Sub(embedded, "static")
	return &Handler{
		querier: querier,
		title:   opts.Title,
		logger:  opts.Logger,
		page:    template.Must(template.ParseFS(embedded, "templates/page.html")),
		static:  http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
	}
}

// Routes registers the page and its static assets on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /{$}", h.submit)
	mux.Handle("GET /static/", h.static)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.write(w, pageData{Title: h.title})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.write(w, pageData{Title: h.title, Error: "invalid form submission"})
		return
	}
	data := pageData{Title: h.title, Prompt: r.PostFormValue("prompt")}

	resp, err := h.querier.Query(r.Context(), models.QueryRequest{Prompt: data.Prompt})
	if msg, failed := failureMessage(resp, err); failed {
		h.logger.Info("query failed", slog.String("message", msg))
		data.Error = msg
		h.write(w, data)
		return
	}

	viz, err := render.VisualizationHTML(resp)
	if err != nil {
		h.logger.Warn("render visualization failed", slog.Any("error", err))
		data.Error = err.Error()
		h.write(w, data)
		return
	}
	data.Result = true
	data.Visualization = viz
	if resp.HumanReadable != "" {
		human, err := render.HumanReadableHTML(resp.HumanReadable)
		if err != nil {
			h.logger.Warn("render summary failed", slog.Any("error", err))
		}
		data.HumanReadable = human
	}
	h.write(w, data)
}

// failureMessage collapses every failure into one string: an envelope with
// success=false wins, then the transport error.
func failureMessage(resp *models.QueryResponse, err error) (string, bool) {
	switch {
	case resp != nil && !resp.Success:
		return resp.FailureMessage(), true
	case err != nil:
		return err.Error(), true
	case resp == nil:
		return "Query execution failed", true
	default:
		return "", false
	}
}

func (h *Handler) write(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("render page failed", slog.Any("error", err))
	}
}
