package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/miradorstack/mirador-vizchat/internal/llm"
)

// Gemini completes requests through the Google GenAI SDK. Clients are created
// lazily per API key and reused.
type Gemini struct {
	mu   sync.Mutex
	gens map[string]generator
	// newClient is replaced in tests.
	newClient func(ctx context.Context, apiKey string) (generator, error)
}

// generator is the slice of the genai Models service used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func init() {
	llm.RegisterSDKProvider(NewGemini())
}

// NewGemini returns the Gemini provider.
func NewGemini() *Gemini {
	return &Gemini{
		gens:      make(map[string]generator),
		newClient: newGenAIModels,
	}
}

func newGenAIModels(ctx context.Context, apiKey string) (generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Name returns the provider identifier.
func (g *Gemini) Name() string { return "gemini" }

// Complete sends the chat as a single GenerateContent call. System messages
// become the system instruction; assistant turns map to the model role.
func (g *Gemini) Complete(ctx context.Context, ep llm.Endpoint, req llm.Request) (*llm.Response, error) {
	apiKey := ep.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, llm.NewFatalError(errors.New("gemini API key is required"))
	}
	model := ep.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	gen, err := g.generator(ctx, apiKey)
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("create GenAI client: %w", err))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := gen.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("GenAI generate failed: %w", err))
	}

	out := &llm.Response{
		Content:  resp.Text(),
		Model:    model,
		Provider: g.Name(),
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *Gemini) generator(ctx context.Context, apiKey string) (generator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen, ok := g.gens[apiKey]; ok {
		return gen, nil
	}
	gen, err := g.newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	g.gens[apiKey] = gen
	return gen, nil
}
