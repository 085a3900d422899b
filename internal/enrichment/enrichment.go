// Package enrichment builds cached summaries of the candidate and of employers
// from their resume, links and websites.
package enrichment

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultMaxResumeChars = 12000
	DefaultMaxSourceChars = 20000

	personSystem  = "You are an expert career profiler. Extract the most relevant professional info from the text."
	companySystem = "You are an expert company analyst. Extract the company's key info from the text."

	temperature     = 0.2
	maxOutputTokens = 800
)

//go:embed prompts/*.md
var prompts embed.FS

// Fetcher returns page text for a URL, or "" when nothing could be fetched.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

type Config struct {
	MaxResumeChars int
	MaxSourceChars int
	// Force re-enriches entities that already carry a context.
	Force bool
}

// Enricher gathers sources and summarizes them into a records.Context.
type Enricher struct {
	fetcher    Fetcher
	summarizer ai.Summarizer
	cfg        Config
	logger     *zap.Logger
}

func New(fetcher Fetcher, summarizer ai.Summarizer, cfg Config, log *zap.Logger) *Enricher {
	if cfg.MaxResumeChars <= 0 {
		cfg.MaxResumeChars = DefaultMaxResumeChars
	}
	if cfg.MaxSourceChars <= 0 {
		cfg.MaxSourceChars = DefaultMaxSourceChars
	}
	return &Enricher{
		fetcher:    fetcher,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger.OrNop(log),
	}
}

// EnrichProfile fills profile.Context. It reports whether the context changed.
// A profile that is already enriched, or that has no reachable sources, is
// left as is.
func (e *Enricher) EnrichProfile(ctx context.Context, profile *records.Profile) (bool, error) {
	if profile == nil {
		return false, nil
	}
	if profile.Context != nil && !e.cfg.Force {
		return false, nil
	}

	sources := e.profileSources(ctx, profile)
	if len(sources) == 0 {
		e.logger.Info("no profile sources, keeping cached context", zap.String("profile", profile.ID))
		return false, nil
	}

	summary, err := e.summarize(ctx, records.KindPerson, sources)
	if err != nil {
		return false, fmt.Errorf("enrich profile %s: %w", profile.ID, err)
	}

	profile.Context = summary
	e.logger.Info("profile enriched",
		zap.String("profile", profile.ID),
		zap.Int("sources", len(sources)),
		zap.String("kind", string(summary.Kind)),
	)
	return true, nil
}

// EnrichCompany fills company.Context with the same rules as EnrichProfile.
func (e *Enricher) EnrichCompany(ctx context.Context, company *records.Company) (bool, error) {
	if company == nil {
		return false, nil
	}
	if company.Context != nil && !e.cfg.Force {
		return false, nil
	}

	sources := e.companySources(ctx, company)
	if len(sources) == 0 {
		e.logger.Debug("no company sources, keeping cached context", zap.String("company", company.Name))
		return false, nil
	}

	summary, err := e.summarize(ctx, records.KindCompany, sources)
	if err != nil {
		return false, fmt.Errorf("enrich company %s: %w", company.Name, err)
	}

	company.Context = summary
	e.logger.Info("company enriched",
		zap.String("company", company.Name),
		zap.Int("sources", len(sources)),
		zap.String("kind", string(summary.Kind)),
	)
	return true, nil
}

func (e *Enricher) profileSources(ctx context.Context, p *records.Profile) []string {
	var sources []string

	if p.Resume != nil {
		text, err := ResumeText(p.Resume, e.cfg.MaxResumeChars)
		if err != nil {
			e.logger.Warn("skip unreadable resume", zap.String("file", p.Resume.Filename), zap.Error(err))
		} else if text != "" {
			sources = append(sources, "[resume]\n"+text)
		}
	}

	if link := strings.TrimSpace(p.ResumeLink); link != "" {
		if text := e.fetch(ctx, link); text != "" {
			sources = append(sources, "[resume_link] "+text)
		}
	}

	for _, handle := range []string{p.GitHub, p.LinkedIn, p.Twitter} {
		sources = e.appendLink(ctx, sources, "social", handle)
	}

	for _, link := range p.PastWorkLinks {
		sources = e.appendLink(ctx, sources, "past_work", link)
	}

	return sources
}

func (e *Enricher) companySources(ctx context.Context, c *records.Company) []string {
	var sources []string
	sources = e.appendLink(ctx, sources, "website", c.Website)
	for _, handle := range []string{c.LinkedIn, c.Twitter} {
		sources = e.appendLink(ctx, sources, "social", handle)
	}
	return sources
}

func (e *Enricher) appendLink(ctx context.Context, sources []string, label, link string) []string {
	link = strings.TrimSpace(link)
	if link == "" {
		return sources
	}
	text := e.fetch(ctx, link)
	if text == "" {
		return sources
	}
	return append(sources, fmt.Sprintf("[%s:%s] %s", label, link, text))
}

func (e *Enricher) fetch(ctx context.Context, link string) string {
	if e.fetcher == nil {
		return ""
	}
	text := strings.TrimSpace(e.fetcher.Fetch(ctx, link))
	if text == "" {
		e.logger.Debug("source produced no text", zap.String("url", link))
	}
	return text
}

func (e *Enricher) summarize(ctx context.Context, kind records.ContextKind, sources []string) (*records.Context, error) {
	system, file := personSystem, "prompts/person.md"
	if kind == records.KindCompany {
		system, file = companySystem, "prompts/company.md"
	}

	template, err := prompts.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}

	combined := utils.Truncate(strings.Join(sources, "\n\n"), e.cfg.MaxSourceChars)
	raw, err := e.summarizer.Complete(ctx, ai.Request{
		System:          system,
		User:            ai.RenderPrompt(string(template), map[string]string{"SOURCES": combined}),
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
		JSON:            true,
	})
	if err != nil {
		return nil, err
	}

	return ParseContext(kind, raw), nil
}

// ParseContext turns model output into a context of the requested kind, or
// the raw variant when the output has no usable JSON object.
func ParseContext(kind records.ContextKind, raw string) *records.Context {
	raw = strings.TrimSpace(raw)

	data, ok := ai.ExtractJSON(raw)
	if !ok {
		return records.RawContext(raw)
	}

	switch kind {
	case records.KindCompany:
		var company records.CompanyContext
		if err := ai.Decode(data, &company); err != nil || (company.Summary == "" && len(company.Highlights) == 0) {
			return records.RawContext(raw)
		}
		company.Products = nonNil(company.Products)
		company.Highlights = nonNil(company.Highlights)
		return records.NewCompanyContext(company)
	default:
		var person records.PersonContext
		if err := ai.Decode(data, &person); err != nil || (person.Bio == "" && len(person.Bullets) == 0) {
			return records.RawContext(raw)
		}
		person.Bullets = nonNil(person.Bullets)
		return records.NewPersonContext(person)
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
