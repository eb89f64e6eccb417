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
	gopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates answers with an OpenAI compatible chat completion API
type OpenAI struct {
	client   *gopenai.Client
	model    string
	policy   *resilience.Policy
	recorder usage.Recorder
	log      *zap.Logger
}

// NewOpenAI creates an OpenAI generator
func NewOpenAI(cfg config.LLMConfig, policy *resilience.Policy, recorder usage.Recorder, log *zap.Logger) *OpenAI {
	aiConfig := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:   gopenai.NewClientWithConfig(aiConfig),
		model:    model,
		policy:   policy,
		recorder: recorder,
		log:      log.Named("openai"),
	}
}

func (o *OpenAI) Name() string {
	return string(models.APIOpenAI)
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	messages := make([]gopenai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, gopenai.ChatCompletionMessage{
		Role:    gopenai.ChatMessageRoleSystem,
		Content: SystemPrompt(req),
	})
	for _, turn := range req.History {
		role := gopenai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = gopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, gopenai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, gopenai.ChatCompletionMessage{
		Role:    gopenai.ChatMessageRoleUser,
		Content: req.Question,
	})

	started := time.Now()
	var text string
	var tokens *int
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
			Model:       o.model,
			Messages:    messages,
			Temperature: 0.3,
		})
		if err != nil {
			return classifyOpenAIError(err)
		}
		n := resp.Usage.TotalTokens
		tokens = &n
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", resilience.ErrMalformed)
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return fmt.Errorf("%w: empty completion", resilience.ErrMalformed)
		}
		return nil
	})

	o.recorder.Record(ctx, usage.Call{
		API:        models.APIOpenAI,
		Endpoint:   "chat/completions",
		Request:    map[string]interface{}{"model": o.model, "language": req.Language, "articles": len(req.Articles), "history": len(req.History)},
		Started:    started,
		TokensUsed: tokens,
		Err:        err,
	})
	if err != nil {
		o.log.Warn("completion failed", zap.Error(err))
		return nil, resilience.Classify(o.Name(), err)
	}

	return &Response{Text: text, Provider: o.Name(), TokensUsed: tokens}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *gopenai.APIError
	if stderrors.As(err, &apiErr) {
		return resilience.CheckStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *gopenai.RequestError
	if stderrors.As(err, &reqErr) {
		return resilience.CheckStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}
	return err
}
