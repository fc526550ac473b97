package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/miradorstack/mirador-vizchat/internal/llm"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func newTestGemini(gen *fakeGenerator) *Gemini {
	g := NewGemini()
	g.newClient = func(context.Context, string) (generator, error) { return gen, nil }
	return g
}

func TestGeminiComplete(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText("graph", genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 1, TotalTokenCount: 8},
	}}
	g := newTestGemini(gen)

	temp := 0.2
	resp, err := g.Complete(context.Background(), llm.Endpoint{APIKey: "k", Model: "gemini-test"}, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "which chart?"},
		},
		Temperature: &temp,
		MaxTokens:   16,
	})
	require.NoError(t, err)
	assert.Equal(t, "graph", resp.Content)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, 8, resp.Usage.TotalTokens)

	assert.Equal(t, "gemini-test", gen.model)
	require.Len(t, gen.contents, 1)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, int32(16), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.Temperature)
}

func TestGeminiRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := newTestGemini(&fakeGenerator{}).Complete(context.Background(), llm.Endpoint{}, llm.Request{})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

func TestGeminiErrorsAreTransient(t *testing.T) {
	g := newTestGemini(&fakeGenerator{err: errors.New("quota")})
	_, err := g.Complete(context.Background(), llm.Endpoint{APIKey: "k"}, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
}
