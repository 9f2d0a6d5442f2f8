package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/anthropic"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/lifequest-app/lifequest/lifequest/logger"
)

var ErrNoContent = errors.New("generation call produced no usable content")

// Client is the Generative Content Client boundary. It takes one prompt
// and returns the parsed batch plus the raw model text for auditing.
type Client interface {
	GenerateQuests(ctx context.Context, prompt string) (*QuestBatch, string, error)
}

// ClientConfig selects the provider backing the genkit client.
type ClientConfig struct {
	Provider string // "google" (default) or "anthropic"
	Model    string
	APIKey   string
}

// GenkitClient backs the Client interface with a genkit instance.
type GenkitClient struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitClient initializes genkit with the configured provider plugin.
// A missing API key is an error here rather than at call time: the pipeline
// treats client construction failure like any other upstream outage.
func NewGenkitClient(ctx context.Context, cfg ClientConfig) (*GenkitClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "google"
	}

	modelID := strings.TrimSpace(cfg.Model)
	if modelID == "" {
		modelID = defaultModelForProvider(provider)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = envAPIKeyForProvider(provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", provider)
	}

	var g *genkit.Genkit
	var modelName string

	switch provider {
	case "anthropic":
		g = genkit.Init(ctx, genkit.WithPlugins(&anthropic.Anthropic{
			APIKey:  apiKey,
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		}))
		modelName = "anthropic/" + modelID

	case "google":
		_ = os.Setenv("GEMINI_API_KEY", apiKey)
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		modelName = "googleai/" + modelID

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}

	slog.Info("generation client initialized",
		slog.String("type", "llm"),
		slog.String("provider", provider),
		slog.String("model", modelName))

	return &GenkitClient{g: g, modelName: modelName}, nil
}

func defaultModelForProvider(provider string) string {
	if provider == "anthropic" {
		return "claude-3-5-haiku-latest"
	}
	return "gemini-2.0-flash"
}

func envAPIKeyForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
}

// GenerateQuests makes exactly one model call. Cancellation and timeouts
// live on the passed context; any failure surfaces as "no content" to the
// pipeline, which must not touch storage in that case.
func (c *GenkitClient) GenerateQuests(ctx context.Context, prompt string) (*QuestBatch, string, error) {
	start := time.Now()
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(SystemPrompt()),
		ai.WithPrompt(prompt),
	)
	logger.LogGeneration(c.modelName, time.Since(start), err)
	if err != nil {
		return nil, "", fmt.Errorf("generate: %w", err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return nil, "", ErrNoContent
	}

	batch, err := DecodeBatch(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("%w: %v", ErrNoContent, err)
	}

	return batch, raw, nil
}
