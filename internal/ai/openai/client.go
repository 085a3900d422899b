// Package openai implements ai.Summarizer over any OpenAI-compatible chat
// completions endpoint. Groq is the default base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/utils"
	"go.uber.org/zap"
)

const (
	ProviderName = "openai"

	DefaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"

	defaultMaxLogLength = 200
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// JSONMode sends response_format=json_object when a request asks for JSON.
	JSONMode  bool
	MaxLogLen int
}

// Client is an ai.Summarizer backed by go-openai.
type Client struct {
	api       chatCompleter
	model     string
	jsonMode  bool
	maxLogLen int
	logger    *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	clientCfg.BaseURL = DefaultBaseURL
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxLogLen := cfg.MaxLogLen
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		api:       goopenai.NewClientWithConfig(clientCfg),
		model:     model,
		jsonMode:  cfg.JSONMode,
		maxLogLen: maxLogLen,
		logger:    logger.WithCommonFields(log, ProviderName, model),
	}, nil
}

// Complete implements ai.Summarizer.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("openai client is not initialized")
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: user})

	request := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	}
	if req.JSON && c.jsonMode {
		request.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	log := logger.OrNop(c.logger)
	log.Debug("chat completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", utils.TruncateForLog(user, c.maxLogLen)),
	)

	resp, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", ai.ErrEmptyResponse
	}

	log.Debug("chat completion response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
	)

	return output, nil
}
