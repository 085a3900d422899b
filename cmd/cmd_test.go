package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/enrichment"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, url string) string {
	return f[url]
}

func TestSyncProfile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	resumePath := filepath.Join(t.TempDir(), "cv.txt")
	if err := os.WriteFile(resumePath, []byte("Go developer"), 0o600); err != nil {
		t.Fatalf("write resume: %v", err)
	}

	cfg := &ProfileConfig{ID: "me", Name: "Jane", Email: "jane@example.com", GitHub: "https://github.com/jane", ResumeFile: resumePath}

	profile, err := syncProfile(ctx, store, cfg)
	if err != nil {
		t.Fatalf("sync profile: %v", err)
	}
	if profile.Resume == nil || profile.Resume.Filename != "cv.txt" || string(profile.Resume.Data) != "Go developer" {
		t.Fatalf("unexpected resume %+v", profile.Resume)
	}

	profile.Context = records.RawContext("cached")
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	cfg.Name = "Jane Doe"
	profile, err = syncProfile(ctx, store, cfg)
	if err != nil {
		t.Fatalf("sync profile: %v", err)
	}
	if profile.Name != "Jane Doe" || profile.Context == nil {
		t.Fatalf("expected name update to keep cached context, got %+v", profile)
	}

	cfg.GitHub = "https://github.com/jane-doe"
	profile, err = syncProfile(ctx, store, cfg)
	if err != nil {
		t.Fatalf("sync profile: %v", err)
	}
	if profile.Context != nil {
		t.Fatalf("expected changed links to reset the cached context")
	}
}

func TestSyncProfileRequiresID(t *testing.T) {
	if _, err := syncProfile(context.Background(), storage.NewMemory(), &ProfileConfig{}); err == nil {
		t.Fatalf("expected error for missing profile id")
	}
}

func TestEnrichOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	if err := store.SaveProfile(ctx, &records.Profile{ID: "me", GitHub: "https://github.com/jane"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	companies := []*records.Company{
		{ID: records.CompanyID("Acme"), Name: "Acme", Website: "https://acme.io"},
		{ID: records.CompanyID("Quiet"), Name: "Quiet"},
	}
	for _, company := range companies {
		if err := store.SaveCompany(ctx, company); err != nil {
			t.Fatalf("save company: %v", err)
		}
	}

	fetcher := staticFetcher{
		"https://github.com/jane": "Jane writes Go",
		"https://acme.io":         "Acme builds rockets",
	}
	calls := 0
	summarizer := ai.SummarizerFunc(func(_ context.Context, _ ai.Request) (string, error) {
		calls++
		return `{"bio": "Go developer", "bullets": ["Go"], "summary": "Rockets", "highlights": ["Space"]}`, nil
	})

	core, logs := observer.New(zap.InfoLevel)
	enricher := enrichment.New(fetcher, summarizer, enrichment.Config{}, zap.New(core))

	if err := enrichOnce(ctx, store, enricher, "me", zap.New(core)); err != nil {
		t.Fatalf("enrich once: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected profile and one company summarized, got %d calls", calls)
	}

	profile, err := store.GetProfile(ctx, "me")
	if err != nil || profile.Context == nil {
		t.Fatalf("expected enriched profile, got %+v, %v", profile, err)
	}
	acme, err := store.GetCompany(ctx, records.CompanyID("Acme"))
	if err != nil || acme.Context == nil {
		t.Fatalf("expected enriched company, got %+v, %v", acme, err)
	}

	if err := enrichOnce(ctx, store, enricher, "me", zap.New(core)); err != nil {
		t.Fatalf("second enrich: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected cached contexts to skip summarizer, got %d calls", calls)
	}
	if n := logs.FilterMessage("enrichment completed").Len(); n != 2 {
		t.Fatalf("expected 2 completion entries, got %d", n)
	}
}
