// Package fit scores how well a candidate matches a job post.
package fit

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/utils"
	"go.uber.org/zap"
)

const (
	systemPrompt = "You are an objective and concise hiring analyst. Produce a compact JSON evaluation of " +
		"how well this candidate fits the provided job description. Be evidence-based and reference " +
		"items from the candidate profile where relevant."

	// FallbackReason is reported when the model output has no usable JSON.
	FallbackReason = "Could not parse model output."

	MaxJobDescriptionChars = 4000

	temperature     = 0.2
	maxOutputTokens = 400

	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

var numberPattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)

// Scorer evaluates candidate/job fit through a summarizer. It never fails: any
// problem with the model yields the fallback result.
type Scorer struct {
	summarizer ai.Summarizer
	logger     *zap.Logger
	maxLogLen  int
}

func NewScorer(summarizer ai.Summarizer, log *zap.Logger) *Scorer {
	return &Scorer{
		summarizer: summarizer,
		logger:     logger.OrNop(log),
		maxLogLen:  defaultMaxLogLength,
	}
}

// Score rates the candidate described by profile against jobDescription.
func (s *Scorer) Score(ctx context.Context, profile *records.Context, jobDescription string) records.FitResult {
	person := profile.AsPerson()
	prompt := buildPrompt(person, utils.Truncate(jobDescription, MaxJobDescriptionChars))

	raw, err := s.summarizer.Complete(ctx, ai.Request{
		System:          systemPrompt,
		User:            prompt,
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
		JSON:            true,
	})
	if err != nil {
		s.logger.Warn("fit evaluation failed, using fallback", zap.Error(err))
		return Fallback("")
	}

	s.logger.Debug("fit evaluation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return Parse(raw)
}

// Parse normalizes raw model output into a FitResult.
func Parse(raw string) records.FitResult {
	raw = strings.TrimSpace(raw)

	data, ok := ai.ExtractJSON(raw)
	if !ok {
		return Fallback(raw)
	}

	score := NormalizeScore(data["score"])

	chance := records.Chance(strings.ToLower(strings.TrimSpace(stringValue(data["chance"]))))
	if !chance.Valid() {
		chance = ChanceFromScore(score)
	}

	style := records.StyleBrief
	if value, ok := data["recommended_email_style"]; ok && value != nil {
		style = NormalizeStyle(ai.CoerceString(value))
	}

	return records.FitResult{
		Score:            score,
		Chance:           chance,
		Reason:           stringValue(data["reason"]),
		MatchHighlights:  ai.CoerceStrings(data["match_highlights"]),
		RecommendedStyle: style,
		Raw:              raw,
	}
}

// Fallback is the result used when the model output cannot be interpreted.
func Fallback(raw string) records.FitResult {
	return records.FitResult{
		Score:            0,
		Chance:           records.ChanceLow,
		Reason:           FallbackReason,
		MatchHighlights:  []string{},
		RecommendedStyle: records.StyleBrief,
		Raw:              raw,
	}
}

// NormalizeScore maps loosely typed scores onto [0,100]. Integers are clamped,
// fractional values in [0,1] are read as a share of 100, strings may carry a
// percent sign. Anything else is 0.
func NormalizeScore(v any) int {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			return clampInt(i)
		}
		return scoreFromFloat(ai.CoerceFloat(val))
	case int:
		return clampInt(int64(val))
	case int64:
		return clampInt(val)
	case float64, float32:
		return scoreFromFloat(ai.CoerceFloat(val))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), "%", "")
		match := numberPattern.FindString(s)
		if match == "" {
			return 0
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0
		}
		return scoreFromFloat(f)
	default:
		return 0
	}
}

// ChanceFromScore buckets a score when the model gave no usable chance.
func ChanceFromScore(score int) records.Chance {
	switch {
	case score >= 75:
		return records.ChanceHigh
	case score >= 40:
		return records.ChanceMedium
	default:
		return records.ChanceLow
	}
}

// NormalizeStyle maps free-form style hints onto the known styles.
func NormalizeStyle(value string) records.Style {
	style := records.Style(strings.ToLower(strings.TrimSpace(value)))
	if style.Valid() {
		return style
	}
	switch {
	case strings.Contains(string(style), "bullet"):
		return records.StyleBulleted
	case strings.Contains(string(style), "brief"), strings.Contains(string(style), "short"):
		return records.StyleBrief
	default:
		return records.StyleDetailed
	}
}

func scoreFromFloat(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	if f >= 0 && f <= 1 {
		return int(f * 100)
	}
	return clampInt(int64(math.Max(0, math.Min(100, f))))
}

func clampInt(i int64) int {
	switch {
	case i < 0:
		return 0
	case i > 100:
		return 100
	default:
		return int(i)
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func buildPrompt(person records.PersonContext, job string) string {
	bullets := make([]string, 0, len(person.Bullets))
	for _, bullet := range person.Bullets {
		bullets = append(bullets, "- "+bullet)
	}
	return ai.RenderPrompt(promptTemplate, map[string]string{
		"BIO":     person.Bio,
		"BULLETS": strings.Join(bullets, "\n"),
		"JOB":     job,
	})
}
