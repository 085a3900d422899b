package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/chat-applier/internal/chatlog"
	"github.com/spigell/chat-applier/internal/dispatch"
	"github.com/spigell/chat-applier/internal/filtering"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const chat = `24/08/25, 09:00 - Bob: Good morning all
24/08/25, 10:15 - Jane Doe: Hiring!
Role: Go Engineer
Company: Acme
Send your CV to jobs@acme.io, details at https://acme.io/careers
24/08/25, 11:30 - Max: We have an opening for a designer, DM me`

type fakeEnricher struct {
	profileCalls int
	companyCalls int
	err          error
}

func (f *fakeEnricher) EnrichProfile(_ context.Context, profile *records.Profile) (bool, error) {
	f.profileCalls++
	if f.err != nil {
		return false, f.err
	}
	if profile.Context != nil {
		return false, nil
	}
	profile.Context = records.NewPersonContext(records.PersonContext{Bio: "Go developer"})
	return true, nil
}

func (f *fakeEnricher) EnrichCompany(_ context.Context, company *records.Company) (bool, error) {
	f.companyCalls++
	if f.err != nil {
		return false, f.err
	}
	if company.Context != nil {
		return false, nil
	}
	company.Context = records.NewCompanyContext(records.CompanyContext{Summary: "Builds rockets"})
	return true, nil
}

type fakeScorer struct {
	score        int
	descriptions []string
	contexts     []*records.Context
}

func (f *fakeScorer) Score(_ context.Context, profile *records.Context, description string) records.FitResult {
	f.contexts = append(f.contexts, profile)
	f.descriptions = append(f.descriptions, description)
	return records.FitResult{Score: f.score, Chance: records.ChanceHigh, RecommendedStyle: records.StyleBrief}
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) Send(_ context.Context, to, _, _ string, _ []records.Document) error {
	f.sent = append(f.sent, to)
	return nil
}

type failingJobs struct {
	*storage.Memory
}

func (failingJobs) SaveJob(context.Context, *records.Job) error {
	return errors.New("database is locked")
}

type harness struct {
	store    *storage.Memory
	enricher *fakeEnricher
	scorer   *fakeScorer
	mailer   *fakeMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := storage.NewMemory()
	profile := &records.Profile{ID: "me", Name: "Jane Roe", Email: "jane@example.com"}
	if err := store.SaveProfile(context.Background(), profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	return &harness{
		store:    store,
		enricher: &fakeEnricher{},
		scorer:   &fakeScorer{score: 85},
		mailer:   &fakeMailer{},
	}
}

func (h *harness) deps(filter Filter) Deps {
	return Deps{
		Store:      h.store,
		Enricher:   h.enricher,
		Scorer:     h.scorer,
		Dispatcher: dispatch.New(dispatch.Options{Mailer: h.mailer}, nil),
		Filter:     filter,
	}
}

func parse(t *testing.T, raw string) *chatlog.Log {
	t.Helper()
	log, err := chatlog.ParseString(raw)
	if err != nil {
		t.Fatalf("parse chat: %v", err)
	}
	return log
}

func TestRun(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t)

	p, err := New(h.deps(nil), "me", zap.New(core))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stats, err := p.Run(context.Background(), parse(t, chat).All())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Stats{Total: 3, Detected: 2, Applied: 1, Skipped: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}

	if len(h.mailer.sent) != 1 || h.mailer.sent[0] != "jobs@acme.io" {
		t.Fatalf("unexpected emails sent: %v", h.mailer.sent)
	}

	if h.enricher.profileCalls != 1 {
		t.Fatalf("expected profile enriched once, got %d", h.enricher.profileCalls)
	}

	jobs := h.store.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 stored jobs, got %d", len(jobs))
	}
	statuses := map[string]records.Job{}
	for _, job := range jobs {
		statuses[job.Sender] = *job
	}
	if job := statuses["Jane Doe"]; job.Status != records.JobApplied || job.Score != 85 || job.Company != "Acme" {
		t.Fatalf("unexpected applied job %+v", job)
	}
	if job := statuses["Max"]; job.Status != records.JobSkipped || job.SkipReason != dispatch.ReasonNoChannel {
		t.Fatalf("unexpected skipped job %+v", job)
	}

	profile, err := h.store.GetProfile(context.Background(), "me")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Context == nil || profile.Context.AsPerson().Bio != "Go developer" {
		t.Fatalf("expected enriched profile to be saved, got %+v", profile.Context)
	}

	company, err := h.store.GetCompany(context.Background(), records.CompanyID("acme"))
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if company.Website != "https://acme.io" || company.Context == nil {
		t.Fatalf("unexpected company %+v", company)
	}
	if !strings.Contains(h.scorer.descriptions[0], "Builds rockets") {
		t.Fatalf("expected company context in job description, got %q", h.scorer.descriptions[0])
	}

	entries := logs.FilterMessage("run completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one run completed entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["applied"]; got != int64(1) {
		t.Fatalf("expected applied=1 in log, got %v", got)
	}
}

func TestRunDoesNotReapply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	chain := filtering.NewChain(nil, filtering.NewAppliedHistory(h.store))
	p, err := New(h.deps(chain), "me", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := p.Run(ctx, parse(t, chat).All()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := p.Run(ctx, parse(t, chat).All())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if stats.Applied != 0 || stats.Skipped != 2 {
		t.Fatalf("expected everything skipped on rerun, got %+v", stats)
	}
	if len(h.mailer.sent) != 1 {
		t.Fatalf("expected a single email over both runs, got %v", h.mailer.sent)
	}
	for _, job := range h.store.Jobs() {
		if job.Sender == "Jane Doe" && job.Status != records.JobApplied {
			t.Fatalf("expected applied record to survive the rerun, got %+v", job)
		}
	}
	if h.enricher.profileCalls != 2 {
		t.Fatalf("expected one profile enrichment attempt per run, got %d", h.enricher.profileCalls)
	}
}

func TestRunEnrichesCompanyOncePerRun(t *testing.T) {
	h := newHarness(t)
	raw := `24/08/25, 10:15 - Jane: Hiring
Company: Acme
jobs@acme.io
24/08/25, 10:20 - John: Another opening
Company: ACME
hr@acme.io`

	p, err := New(h.deps(nil), "me", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Run(context.Background(), parse(t, raw).All()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if h.enricher.companyCalls != 1 {
		t.Fatalf("expected company enriched once, got %d", h.enricher.companyCalls)
	}
	for _, desc := range h.scorer.descriptions {
		if !strings.Contains(desc, "Builds rockets") {
			t.Fatalf("expected company context in %q", desc)
		}
	}
}

func TestRunEnrichmentFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(t)
	h.enricher.err = errors.New("summarizer unavailable")

	p, err := New(h.deps(nil), "me", zap.New(core))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stats, err := p.Run(context.Background(), parse(t, chat).All())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Applied != 1 {
		t.Fatalf("expected run to apply despite enrichment failure, got %+v", stats)
	}
	if h.scorer.contexts[0] != nil {
		t.Fatalf("expected scorer to receive no profile context")
	}
	if logs.FilterMessage("profile enrichment failed").Len() != 1 {
		t.Fatalf("expected profile enrichment warning")
	}
}

func TestRunMissingProfile(t *testing.T) {
	h := newHarness(t)
	p, err := New(h.deps(nil), "someone-else", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := p.Run(context.Background(), parse(t, chat).All()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRunStoreFailureAborts(t *testing.T) {
	h := newHarness(t)
	deps := h.deps(nil)
	deps.Store = failingJobs{Memory: h.store}

	p, err := New(deps, "me", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stats, err := p.Run(context.Background(), parse(t, chat).All())
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("expected store error, got %v", err)
	}
	if stats.Total != 2 || stats.Applied != 0 {
		t.Fatalf("unexpected stats after abort %+v", stats)
	}
	if len(h.mailer.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", h.mailer.sent)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	h := newHarness(t)

	deps := h.deps(nil)
	deps.Scorer = nil
	if _, err := New(deps, "me", nil); err == nil {
		t.Fatalf("expected error for missing scorer")
	}
	if _, err := New(h.deps(nil), " ", nil); err == nil {
		t.Fatalf("expected error for empty profile id")
	}
}

func TestCompanyWebsite(t *testing.T) {
	tests := []struct {
		name  string
		links []string
		want  string
	}{
		{name: "Acme", links: []string{"https://forms.gle/x", "https://www.acme.io/jobs"}, want: "https://www.acme.io"},
		{name: "Big Rocket Co", links: []string{"https://big-rocket.co/about"}, want: ""},
		{name: "Big Rocket", links: []string{"http://big-rocket.dev/about"}, want: "http://big-rocket.dev"},
		{name: "AI", links: []string{"https://ai.com"}, want: ""},
		{name: "Acme", links: nil, want: ""},
	}

	for _, tc := range tests {
		if got := companyWebsite(tc.name, tc.links); got != tc.want {
			t.Fatalf("companyWebsite(%q, %v) = %q, want %q", tc.name, tc.links, got, tc.want)
		}
	}
}

func TestRunSameMinutePostsFromOneSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	raw := `24/08/25, 10:15 - Recruiter: Hiring a Go engineer, write to go@acme.io
24/08/25, 10:15 - Recruiter: Also hiring a designer, write to design@acme.io`

	chain := filtering.NewChain(nil, filtering.NewAppliedHistory(h.store))
	p, err := New(h.deps(chain), "me", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stats, err := p.Run(ctx, parse(t, raw).All())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Applied != 2 || stats.Skipped != 0 {
		t.Fatalf("expected both posts applied, got %+v", stats)
	}
	if len(h.mailer.sent) != 2 || h.mailer.sent[1] != "design@acme.io" {
		t.Fatalf("expected both posts dispatched, got %v", h.mailer.sent)
	}

	// The shared key keeps the last post.
	jobs := h.store.Jobs()
	if len(jobs) != 1 || !strings.Contains(jobs[0].Message, "designer") {
		t.Fatalf("expected the later post to overwrite the record, got %+v", jobs)
	}
}

func TestRunRecordsFilteredJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	chain := filtering.NewChain(nil, filtering.NewExcludedCompanies([]string{"Acme"}))
	p, err := New(h.deps(chain), "me", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stats, err := p.Run(ctx, parse(t, chat).All())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Applied != 0 || stats.Skipped != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	var found bool
	for _, job := range h.store.Jobs() {
		if job.Sender != "Jane Doe" {
			continue
		}
		found = true
		if job.Status != records.JobSkipped || job.SkipReason != "company excluded: Acme" {
			t.Fatalf("unexpected filtered record %+v", job)
		}
	}
	if !found {
		t.Fatalf("expected filtered job to be recorded")
	}
	if len(h.scorer.descriptions) != 1 || strings.Contains(h.scorer.descriptions[0], "Acme") {
		t.Fatalf("expected only the unfiltered job to be scored, got %v", h.scorer.descriptions)
	}
}
