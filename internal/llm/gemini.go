package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates answers with the Gemini API
type Gemini struct {
	client   *genai.Client
	model    string
	policy   *resilience.Policy
	recorder usage.Recorder
	log      *zap.Logger
}

// NewGemini creates a Gemini generator
func NewGemini(ctx context.Context, cfg config.LLMConfig, policy *resilience.Policy, recorder usage.Recorder, log *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		client:   client,
		model:    model,
		policy:   policy,
		recorder: recorder,
		log:      log.Named("gemini"),
	}, nil
}

func (g *Gemini) Name() string {
	return string(models.APIGemini)
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		var role genai.Role = genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Question, genai.RoleUser))

	temperature := float32(0.3)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemPrompt(req)}}},
		Temperature:       &temperature,
	}

	started := time.Now()
	var text string
	var tokens *int
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
		if err != nil {
			return classifyGenaiError(err)
		}
		if resp.UsageMetadata != nil {
			n := int(resp.UsageMetadata.TotalTokenCount)
			tokens = &n
		}
		text = extractText(resp)
		if text == "" {
			return fmt.Errorf("%w: empty candidate", resilience.ErrMalformed)
		}
		return nil
	})

	g.recorder.Record(ctx, usage.Call{
		API:        models.APIGemini,
		Endpoint:   "models/" + g.model + ":generateContent",
		Request:    map[string]interface{}{"language": req.Language, "articles": len(req.Articles), "history": len(req.History)},
		Started:    started,
		TokensUsed: tokens,
		Err:        err,
	})
	if err != nil {
		g.log.Warn("generation failed", zap.Error(err))
		return nil, resilience.Classify(g.Name(), err)
	}

	return &Response{Text: text, Provider: g.Name(), TokensUsed: tokens}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func classifyGenaiError(err error) error {
	var apiErr *genai.APIError
	if stderrors.As(err, &apiErr) {
		return resilience.CheckStatus(apiErr.Code, apiErr.Message)
	}
	var apiVal genai.APIError
	if stderrors.As(err, &apiVal) {
		return resilience.CheckStatus(apiVal.Code, apiVal.Message)
	}
	return err
}
