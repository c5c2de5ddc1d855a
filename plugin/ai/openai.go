package ai

import (
	"context"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
)

// Provider default endpoints. Any OpenAI-compatible server works via
// LLMBaseURL; these are just conveniences for the common ones.
const (
	baseURLOpenAI   = "https://api.openai.com/v1"
	baseURLDeepSeek = "https://api.deepseek.com/v1"
	baseURLOllama   = "http://localhost:11434/v1"
)

type openAIService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewLLMService builds an OpenAI-compatible completion client from the
// profile. Requests are rate limited and bounded by the configured timeout.
func NewLLMService(p *profile.Profile) (LLMService, error) {
	baseURL := p.LLMBaseURL
	if baseURL == "" {
		switch p.LLMProvider {
		case "deepseek":
			baseURL = baseURLDeepSeek
		case "ollama":
			baseURL = baseURLOllama
		default:
			baseURL = baseURLOpenAI
		}
	}
	if p.LLMModel == "" {
		return nil, errors.InvalidArguments("llm model is not configured")
	}

	config := openai.DefaultConfig(p.LLMAPIKey)
	config.BaseURL = baseURL

	slog.Info("llm service initialized", "provider", p.LLMProvider, "model", p.LLMModel, "baseURL", baseURL)

	return &openAIService{
		client:      openai.NewClientWithConfig(config),
		model:       p.LLMModel,
		maxTokens:   p.LLMMaxTokens,
		temperature: p.LLMTemperature,
		timeout:     p.LLMTimeout,
		limiter:     rate.NewLimiter(rate.Limit(p.LLMRateLimit), 1),
	}, nil
}

func (s *openAIService) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := s.complete(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *openAIService) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	return s.complete(ctx, messages, tools)
}

func (s *openAIService) complete(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.ProviderUnavailable("rate limiter interrupted", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.ProviderUnavailable("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.ProviderUnavailable("chat completion returned no choices", nil)
	}

	choice := resp.Choices[0].Message
	out := &ChatResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
