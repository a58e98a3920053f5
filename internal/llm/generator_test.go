package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/BradenHooton/prospector/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestGenerator_Generate(t *testing.T) {
	model := &stubModel{reply: "Hi Jane"}
	gen := NewGeneratorFromModel(model, "test-model")

	text, err := gen.Generate(context.Background(), "write something")
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane", text)
	assert.Equal(t, "test-model", gen.Model())
	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
}

func TestGenerator_GenerateError(t *testing.T) {
	gen := NewGeneratorFromModel(&stubModel{err: errors.New("overloaded")}, "test-model")

	_, err := gen.Generate(context.Background(), "write something")
	assert.ErrorContains(t, err, "overloaded")
}

func TestNewGenerator_Validation(t *testing.T) {
	_, err := NewGenerator(config.LLMConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGenerator(config.LLMConfig{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGenerator(config.LLMConfig{Provider: "markov"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestNewGenerator_OpenAIBaseURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chat/completions" {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Hi Jane"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen, err := NewGenerator(config.LLMConfig{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
		BaseURL:  srv.URL + "/v1",
	})
	require.NoError(t, err)

	_, _ = gen.Generate(context.Background(), "write something")
	assert.Equal(t, int32(1), hits.Load())
}
