// Package writer composes application emails with a language model.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/utils"
	"go.uber.org/zap"
)

const (
	systemPrompt = "You are an expert job application assistant. Write a concise, compelling email that is " +
		"personalized to the role. Avoid generic filler. Use a professional tone. 120-220 words."

	maxJobSummaryChars = 2000

	temperature     = 0.6
	maxOutputTokens = 600
)

var styleHints = map[records.Style]string{
	records.StyleBrief:    "Keep it short: three or four sentences.",
	records.StyleDetailed: "Explain the most relevant experience in two short paragraphs.",
	records.StyleBulleted: "Summarize the most relevant experience as a short bulleted list.",
}

// Input is everything the writer knows about one application.
type Input struct {
	Name       string
	Email      string
	Context    string
	JobSummary string
	JobLink    string
	Style      records.Style
}

// Writer produces a subject and body for an application email.
type Writer struct {
	summarizer ai.Summarizer
	logger     *zap.Logger
}

func New(summarizer ai.Summarizer, log *zap.Logger) *Writer {
	return &Writer{summarizer: summarizer, logger: logger.OrNop(log)}
}

// Compose asks the model for a tailored email. When the model ignores the
// expected tags the subject falls back to "Application - <name>" and the body to
// the raw model text.
func (w *Writer) Compose(ctx context.Context, in Input) (string, string, error) {
	if w == nil || w.summarizer == nil {
		return "", "", errors.New("writer is not configured")
	}

	text, err := w.summarizer.Complete(ctx, ai.Request{
		System:          systemPrompt,
		User:            buildPrompt(in),
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", "", fmt.Errorf("compose email: %w", err)
	}

	subject, body := Parse(text, in.Name)
	w.logger.Debug("composed application email",
		zap.String("subject", subject),
		zap.String("body_preview", utils.TruncateForLog(body, 120)),
	)

	return subject, body, nil
}

// Parse extracts <subject> and <body> from model text.
func Parse(text, name string) (string, string) {
	subject := extractTag(text, "subject")
	if subject == "" {
		subject = FallbackSubject(name)
	}
	body := extractTag(text, "body")
	if body == "" {
		body = strings.TrimSpace(text)
	}
	return subject, body
}

// FallbackSubject is the subject used when none could be composed.
func FallbackSubject(name string) string {
	return "Application - " + name
}

func extractTag(text, tag string) string {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"
	start := strings.Index(text, open)
	end := strings.Index(text, closing)
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start+len(open) : end])
}

func buildPrompt(in Input) string {
	lines := []string{fmt.Sprintf("Candidate: %s <%s>", in.Name, in.Email)}
	if ctx := strings.TrimSpace(in.Context); ctx != "" {
		lines = append(lines, "Profile Context: "+ctx)
	}
	if link := strings.TrimSpace(in.JobLink); link != "" {
		lines = append(lines, "Job Link: "+link)
	}
	lines = append(lines, "Job Summary: "+utils.Truncate(in.JobSummary, maxJobSummaryChars))
	if hint, ok := styleHints[in.Style]; ok {
		lines = append(lines, "Style: "+hint)
	}

	return strings.Join(lines, "\n") +
		"\n\nReturn your result strictly in this format:" +
		"\n<subject>Subject line here</subject>" +
		"\n<body>Body text here</body>"
}
