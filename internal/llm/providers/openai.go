// Package providers registers the LLM dialects understood by the llm client.
// Import it for side effects.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/miradorstack/mirador-vizchat/internal/llm"
)

// OpenAICompatible implements the chat/completions dialect shared by OpenAI,
// Groq and Ollama. Endpoints differ only in default URL and key source.
type OpenAICompatible struct {
	name       string
	defaultURL string
	keyEnv     string
}

func init() {
	llm.RegisterProvider(NewOllama())
	llm.RegisterProvider(NewGroq())
	llm.RegisterProvider(NewOpenAI())
}

// NewOllama returns the provider for a local Ollama server.
func NewOllama() *OpenAICompatible {
	return &OpenAICompatible{name: "ollama", defaultURL: "http://localhost:11434/v1", keyEnv: "OLLAMA_API_KEY"}
}

// NewGroq returns the provider for Groq's OpenAI-compatible API.
func NewGroq() *OpenAICompatible {
	return &OpenAICompatible{name: "groq", defaultURL: "https://api.groq.com/openai/v1", keyEnv: "GROQ_API_KEY"}
}

// NewOpenAI returns the provider for the OpenAI API.
func NewOpenAI() *OpenAICompatible {
	return &OpenAICompatible{name: "openai", defaultURL: "https://api.openai.com/v1", keyEnv: "OPENAI_API_KEY"}
}

// Name returns the provider identifier.
func (o *OpenAICompatible) Name() string { return o.name }

// BuildURL appends /chat/completions unless baseURL already ends with it.
func (o *OpenAICompatible) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = o.defaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders sets bearer auth from apiKey, or from the provider's env var.
func (o *OpenAICompatible) SetHeaders(req *http.Request, apiKey string) {
	if apiKey == "" && o.keyEnv != "" {
		apiKey = os.Getenv(o.keyEnv)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// BuildRequestBody encodes a non-streaming chat request.
func (o *OpenAICompatible) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return json.Marshal(req)
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.TokenUsage `json:"usage"`
}

// ParseResponse extracts the first choice.
func (o *OpenAICompatible) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in %s response", o.name)
	}
	if resp.Model == "" {
		resp.Model = model
	}
	return &llm.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
