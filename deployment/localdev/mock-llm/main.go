// Command mock-llm is an OpenAI-compatible chat endpoint with canned answers
// for the three vizchat prompts. Point an "ollama" or "openai" endpoint at it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-vizchat/internal/utils"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

var firstTable = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)":\s*\[`)

func main() {
	addr := os.Getenv("MOCK_LLM_ADDRESS")
	if addr == "" {
		addr = ":11434"
	}
	logger := utils.NewLogger(os.Getenv("LOG_LEVEL"), false).With(slog.String("component", "mock-llm"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		prompt := ""
		if n := len(req.Messages); n > 0 {
			prompt = req.Messages[n-1].Content
		}
		content := answer(prompt)
		writeJSON(w, logger, chatResponse{
			ID:      "chatcmpl-" + uuid.NewString(),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}, FinishReason: "stop"}},
			Usage: chatUsage{
				PromptTokens:     len(strings.Fields(prompt)),
				CompletionTokens: len(strings.Fields(content)),
				TotalTokens:      len(strings.Fields(prompt)) + len(strings.Fields(content)),
			},
		})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

// answer recognises which of the three prompts it was sent.
func answer(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "produce a single syntactically correct sql query"):
		table := "sqlite_master"
		if m := firstTable.FindStringSubmatch(prompt); m != nil {
			table = m[1]
		}
		return fmt.Sprintf("```sql\nSELECT * FROM %s LIMIT 20;\n```", table)
	case strings.Contains(lower, "pick the best visualization"):
		switch {
		case strings.Contains(lower, "trend"), strings.Contains(lower, "over time"):
			return "graph"
		case strings.Contains(lower, "share"), strings.Contains(lower, "breakdown"):
			return "pie"
		default:
			return "table"
		}
	case strings.Contains(lower, "summary"):
		return "The result lists the first rows of the table.\n* **Rows** are shown in the order returned\n* Values are reported as stored"
	default:
		return "I can only answer vizchat prompts."
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
