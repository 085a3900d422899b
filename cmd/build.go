package cmd

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/ai/gemini"
	"github.com/spigell/chat-applier/internal/ai/openai"
	"github.com/spigell/chat-applier/internal/enrichment"
	"github.com/spigell/chat-applier/internal/mailer"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/scraper"
	"github.com/spigell/chat-applier/internal/secrets"
	"github.com/spigell/chat-applier/internal/storage"

	"go.uber.org/zap"
)

func newSummarizer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Summarizer, error) {
	if cfg == nil {
		return nil, errors.New("ai section is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", gemini.ProviderName:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		return gemini.NewGenerator(ctx, gemini.Config{
			APIKey:     apiKey,
			Model:      gc.Model,
			MaxRetries: gc.MaxRetries,
			MaxLogLen:  gc.MaxLogLength,
		}, logger)
	case openai.ProviderName:
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: oc.APIKey,
			File:  oc.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}

		return openai.NewClient(openai.Config{
			APIKey:    apiKey,
			BaseURL:   oc.BaseURL,
			Model:     oc.Model,
			JSONMode:  oc.JSONMode,
			MaxLogLen: oc.MaxLogLength,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newFetcher(cfg *ScraperConfig, logger *zap.Logger) (*scraper.Fetcher, error) {
	if cfg == nil {
		cfg = &ScraperConfig{}
	}

	apiKey, err := secrets.LoadOptional(secrets.Source{
		Name:  "firecrawl api key",
		Value: cfg.FirecrawlAPIKey,
		File:  cfg.FirecrawlAPIKeyFile,
		Env:   "FIRECRAWL_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	return scraper.New(scraper.Config{
		FirecrawlAPIKey:  apiKey,
		FirecrawlBaseURL: cfg.FirecrawlBaseURL,
		Timeout:          cfg.Timeout,
		MaxChars:         cfg.MaxChars,
		RateLimit:        cfg.RateLimit,
		UserAgent:        cfg.UserAgent,
	}, logger), nil
}

func newEnricher(config *Config, fetcher enrichment.Fetcher, summarizer ai.Summarizer, force bool, logger *zap.Logger) *enrichment.Enricher {
	cfg := enrichment.Config{Force: force}
	if config.Enrichment != nil {
		cfg.MaxResumeChars = config.Enrichment.MaxResumeChars
		cfg.MaxSourceChars = config.Enrichment.MaxSourceChars
	}
	return enrichment.New(fetcher, summarizer, cfg, logger)
}

// newMailer returns nil when smtp is not configured.
func newMailer(cfg *SMTPConfig, logger *zap.Logger) (*mailer.Mailer, error) {
	if cfg == nil || strings.TrimSpace(cfg.Host) == "" {
		return nil, nil
	}

	password, err := secrets.Load(secrets.Source{
		Name:  "smtp password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
		Env:   "SMTP_PASSWORD",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set smtp.password-file or SMTP_PASSWORD_FILE)", err)
	}

	return mailer.New(mailer.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: password,
		From:     cfg.From,
		Timeout:  cfg.Timeout,
	}, logger)
}

func openStore(config *Config, logger *zap.Logger) (*storage.DB, error) {
	path := storage.DefaultPath
	if config.Database != nil && strings.TrimSpace(config.Database.Path) != "" {
		path = config.Database.Path
	}
	return storage.Open(path, logger)
}

// syncProfile writes the configured identity into the stored profile. The
// cached context survives unless the resume or links changed.
func syncProfile(ctx context.Context, store storage.ProfileStore, cfg *ProfileConfig) (*records.Profile, error) {
	if cfg == nil || strings.TrimSpace(cfg.ID) == "" {
		return nil, errors.New("profile.id is required")
	}

	resume, err := loadResume(cfg.ResumeFile)
	if err != nil {
		return nil, err
	}

	profile, err := store.GetProfile(ctx, cfg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		profile = &records.Profile{ID: cfg.ID}
	} else if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if sourcesChanged(profile, cfg, resume) {
		profile.Context = nil
	}

	profile.Name = cfg.Name
	profile.Email = cfg.Email
	profile.GitHub = cfg.GitHub
	profile.LinkedIn = cfg.LinkedIn
	profile.Twitter = cfg.Twitter
	profile.ResumeLink = cfg.ResumeLink
	profile.PastWorkLinks = cfg.PastWorkLinks
	if resume != nil {
		profile.Resume = resume
	}

	if err := store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

func sourcesChanged(profile *records.Profile, cfg *ProfileConfig, resume *records.Document) bool {
	if profile.GitHub != cfg.GitHub || profile.LinkedIn != cfg.LinkedIn || profile.Twitter != cfg.Twitter ||
		profile.ResumeLink != cfg.ResumeLink || strings.Join(profile.PastWorkLinks, "\n") != strings.Join(cfg.PastWorkLinks, "\n") {
		return true
	}
	if resume == nil {
		return false
	}
	return profile.Resume == nil || string(profile.Resume.Data) != string(resume.Data)
}

func loadResume(path string) (*records.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume file: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &records.Document{Filename: filepath.Base(path), MIME: mimeType, Data: data}, nil
}
