// Package ai generates persona replies through an OpenAI-compatible chat
// completions endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ErrEmptyResponse is returned when the model produced no choice.
var ErrEmptyResponse = errors.New("ai: empty response")

// Role of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the conversation history, oldest first.
type Turn struct {
	Role Role
	Text string
}

// Request is a single generation: a system instruction plus history.
type Request struct {
	System string
	Turns  []Turn
}

// Generator produces the next reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	RatePerMinute float64
	// MaxRetries: 0 keeps the SDK default, negative disables retries.
	MaxRetries int
}

// OpenAI is a Generator backed by openai-go.
type OpenAI struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAI creates a generator. A zero RatePerMinute disables the limiter.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append(opts, option.WithBaseURL(baseURL))
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	switch {
	case cfg.MaxRetries > 0:
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	case cfg.MaxRetries < 0:
		opts = append(opts, option.WithMaxRetries(0))
	}
	cl := openai.NewClient(opts...)

	g := &OpenAI{client: &cl, model: cfg.Model, logger: logger}
	if cfg.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), 1)
	}
	return g
}

// Generate sends the request as one chat completion and returns the text
// of the first choice.
func (g *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: Messages(req),
		Model:    shared.ChatModel(g.model),
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		g.logger.Warn("completion failed", zap.String("model", g.model), zap.Error(err))
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Messages converts a request into chat completion messages. Model turns
// become assistant messages.
func Messages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		switch t.Role {
		case RoleModel:
			messages = append(messages, openai.AssistantMessage(t.Text))
		default:
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	return messages
}
