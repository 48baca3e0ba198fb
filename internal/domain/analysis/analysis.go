package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	errs "cipher-server-go/internal/platform/errors"
	"cipher-server-go/internal/platform/logging"
)

const defaultSystemPrompt = "You are a concise voice assistant. Answer the " +
	"user's question about the provided material in a few short sentences " +
	"suitable for being read aloud."

// Config carries the chat-completion backend settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Request is one stateless analysis call: a spoken query, optionally grounded
// in a document the client supplies.
type Request struct {
	Query    string `json:"query"`
	Document string `json:"document,omitempty"`
}

// Result is the assistant's answer plus token accounting.
type Result struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Service answers one-shot analysis queries through an OpenAI-compatible
// chat-completion endpoint. It keeps no conversation history; every request
// stands alone.
type Service struct {
	client  *openai.Client
	logger  *logging.Logger
	model   string
	max     int
	temp    float32
	timeout time.Duration
}

// New builds the analysis service. An empty API key is a configuration error;
// callers that want analysis optional should skip construction instead.
func New(cfg Config, logger *logging.Logger) (*Service, error) {
	const op = "analysis.New"
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindAnalysis, op, "api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	temp := cfg.Temperature
	if temp < 0 || temp > 2 {
		temp = 0.7
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Service{
		client:  openai.NewClientWithConfig(clientConfig),
		logger:  logger,
		model:   model,
		max:     maxTokens,
		temp:    temp,
		timeout: timeout,
	}, nil
}

// Analyze runs one chat completion for the request.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	const op = "analysis.Analyze"

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, errs.New(errs.KindAnalysis, op, "query must not be empty")
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: defaultSystemPrompt},
	}
	if doc := strings.TrimSpace(req.Document); doc != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Material:\n" + doc,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: query,
	})

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   s.max,
		Temperature: s.temp,
	})
	if err != nil {
		s.logger.ErrorTag("ANALYSIS", "chat completion failed: %v", err)
		return Result{}, errs.Wrap(errs.KindAnalysis, op, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errs.New(errs.KindAnalysis, op, "empty completion response")
	}

	s.logger.DebugTag("ANALYSIS", "completion in %s, %d tokens",
		time.Since(start).Round(time.Millisecond), resp.Usage.TotalTokens)

	return Result{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
