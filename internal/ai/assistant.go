package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned by summarizers when the model produced no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Request is a single completion call.
type Request struct {
	System          string
	User            string
	Temperature     float32
	MaxOutputTokens int
	// JSON asks providers that support it for a JSON-only response.
	JSON bool
}

// Summarizer turns a prompt into model text.
type Summarizer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, req Request) (string, error)

func (f SummarizerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// RenderPrompt replaces {{KEY}} placeholders in template with values.
func RenderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
