// Package llm generates assistant answers grounded on knowledge articles
package llm

import (
	"context"
	"fmt"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"go.uber.org/zap"
)

// Roles of history turns
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one earlier message of the conversation
type Turn struct {
	Role    string
	Content string
}

// Request is everything a generator needs to answer one question
type Request struct {
	Language models.Language
	Question string
	History  []Turn
	Articles []models.KnowledgeArticle
}

// Response is a generated answer
type Response struct {
	Text       string
	Provider   string
	TokensUsed *int
}

// Generator produces an answer for a request
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// New returns the generator selected by cfg. Provider "none" yields the
// extractive generator, which needs no network access.
func New(ctx context.Context, cfg config.LLMConfig, recorder usage.Recorder, log *zap.Logger) (Generator, error) {
	policy := resilience.NewPolicy(resilience.Settings{
		Name:    cfg.Provider,
		Timeout: cfg.Timeout,
	}, log)

	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg, policy, recorder, log)
	case "openai":
		return NewOpenAI(cfg, policy, recorder, log), nil
	case "none", "":
		return NewExtractive(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
