package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BradenHooton/prospector/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ErrNotConfigured is returned when no generation backend is set up
var ErrNotConfigured = errors.New("llm provider not configured")

// Generator wraps a langchaingo model for outreach text generation.
type Generator struct {
	llm       llms.Model
	modelName string
	options   []llms.CallOption
}

// NewGenerator creates a generator based on configuration.
func NewGenerator(cfg config.LLMConfig) (*Generator, error) {
	var (
		model llms.Model
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key required", ErrNotConfigured)
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "":
		return nil, ErrNotConfigured

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return NewGeneratorFromModel(model, cfg.Model), nil
}

// NewGeneratorFromModel wraps an already constructed model.
func NewGeneratorFromModel(model llms.Model, modelName string) *Generator {
	return &Generator{
		llm:       model,
		modelName: modelName,
		options: []llms.CallOption{
			llms.WithTemperature(0.7),
			llms.WithMaxTokens(400),
		},
	}
}

// Generate generates text based on a prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.options...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// Model returns the LLM model name.
func (g *Generator) Model() string {
	return g.modelName
}
