package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/records"
	"go.uber.org/zap"
)

type stubFetcher struct {
	pages   map[string]string
	fetched []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) string {
	s.fetched = append(s.fetched, url)
	return s.pages[url]
}

type stubSummarizer struct {
	response string
	err      error
	calls    int
	last     ai.Request
}

func (s *stubSummarizer) Complete(_ context.Context, req ai.Request) (string, error) {
	s.calls++
	s.last = req
	return s.response, s.err
}

func TestEnrichProfileGathersLabeledSources(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://cv.jane.dev":     "resume page",
		"https://github.com/jane": "42 repositories",
		"https://jane.dev/talk":   "conference talk",
	}}
	summarizer := &stubSummarizer{response: `{"bio": "Go engineer.", "bullets": ["Built pipelines", "Speaks at meetups", "OSS"]}`}
	e := New(fetcher, summarizer, Config{}, zap.NewNop())

	profile := &records.Profile{
		ID:            "me",
		Resume:        &records.Document{Filename: "cv.txt", MIME: "text/plain", Data: []byte("Jane Doe\nGo, SQL")},
		ResumeLink:    "https://cv.jane.dev",
		GitHub:        "https://github.com/jane",
		LinkedIn:      "https://linkedin.com/in/jane",
		PastWorkLinks: []string{"https://jane.dev/talk"},
	}

	changed, err := e.EnrichProfile(context.Background(), profile)
	if err != nil || !changed {
		t.Fatalf("expected enrichment, got changed=%v err=%v", changed, err)
	}

	if profile.Context == nil || profile.Context.Kind != records.KindPerson || profile.Context.Person.Bio != "Go engineer." {
		t.Fatalf("unexpected context: %+v", profile.Context)
	}

	prompt := summarizer.last.User
	want := []string{
		"[resume]\nJane Doe\nGo, SQL",
		"[resume_link] resume page",
		"[social:https://github.com/jane] 42 repositories",
		"[past_work:https://jane.dev/talk] conference talk",
	}
	last := -1
	for _, w := range want {
		idx := strings.Index(prompt, w)
		if idx == -1 {
			t.Fatalf("prompt missing %q:\n%s", w, prompt)
		}
		if idx < last {
			t.Fatalf("source %q out of order", w)
		}
		last = idx
	}
	if strings.Contains(prompt, "linkedin.com") {
		t.Fatal("empty sources must not be included")
	}
	if summarizer.last.Temperature != 0.2 || summarizer.last.MaxOutputTokens != 800 {
		t.Fatalf("unexpected request settings: %+v", summarizer.last)
	}
}

func TestEnrichProfileShortCircuits(t *testing.T) {
	cached := records.NewPersonContext(records.PersonContext{Bio: "cached"})

	cases := []struct {
		name    string
		profile *records.Profile
	}{
		{name: "already enriched", profile: &records.Profile{ID: "a", GitHub: "https://github.com/a", Context: cached}},
		{name: "no sources", profile: &records.Profile{ID: "b"}},
		{name: "sources empty", profile: &records.Profile{ID: "c", GitHub: "https://github.com/empty"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &stubFetcher{}
			summarizer := &stubSummarizer{response: `{"bio": "new"}`}
			e := New(fetcher, summarizer, Config{}, nil)

			before := tc.profile.Context
			changed, err := e.EnrichProfile(context.Background(), tc.profile)
			if err != nil || changed {
				t.Fatalf("expected no change, got changed=%v err=%v", changed, err)
			}
			if summarizer.calls != 0 {
				t.Fatalf("expected no summarizer calls, got %d", summarizer.calls)
			}
			if tc.profile.Context != before {
				t.Fatal("context must be untouched")
			}
			if tc.profile.Context == cached && len(fetcher.fetched) != 0 {
				t.Fatalf("cached profile must not fetch, fetched %v", fetcher.fetched)
			}
		})
	}
}

func TestEnrichProfileForce(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{"https://github.com/a": "repos"}}
	summarizer := &stubSummarizer{response: `{"bio": "fresh"}`}
	e := New(fetcher, summarizer, Config{Force: true}, nil)

	profile := &records.Profile{ID: "a", GitHub: "https://github.com/a", Context: records.RawContext("old")}
	changed, err := e.EnrichProfile(context.Background(), profile)
	if err != nil || !changed {
		t.Fatalf("expected forced enrichment, got changed=%v err=%v", changed, err)
	}
	if profile.Context.Person == nil || profile.Context.Person.Bio != "fresh" || profile.Context.Person.Bullets == nil {
		t.Fatalf("unexpected context: %+v", profile.Context)
	}
}

func TestEnrichProfileSummarizerFailure(t *testing.T) {
	boom := errors.New("quota")
	fetcher := &stubFetcher{pages: map[string]string{"https://github.com/a": "repos"}}
	e := New(fetcher, &stubSummarizer{err: boom}, Config{}, nil)

	profile := &records.Profile{ID: "a", GitHub: "https://github.com/a"}
	changed, err := e.EnrichProfile(context.Background(), profile)
	if !errors.Is(err, boom) || changed {
		t.Fatalf("expected wrapped error, got changed=%v err=%v", changed, err)
	}
	if profile.Context != nil {
		t.Fatal("context must stay nil on failure")
	}
}

func TestEnrichCompany(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://acme.io":          "We build rockets",
		"https://x.com/acme":       "",
		"https://linkedin.com/acm": "500 employees",
	}}
	summarizer := &stubSummarizer{response: "Here is the result: " +
		`{"summary": "Rocket maker", "culture": "Fast", "products": ["Falcon"], "highlights": ["500 staff"]}`}
	e := New(fetcher, summarizer, Config{}, nil)

	company := &records.Company{Name: "Acme", Website: "https://acme.io", LinkedIn: "https://linkedin.com/acm", Twitter: "https://x.com/acme"}
	changed, err := e.EnrichCompany(context.Background(), company)
	if err != nil || !changed {
		t.Fatalf("expected enrichment, got changed=%v err=%v", changed, err)
	}
	if company.Context.Kind != records.KindCompany || company.Context.Company.Summary != "Rocket maker" {
		t.Fatalf("unexpected context: %+v", company.Context)
	}
	if !strings.Contains(summarizer.last.User, "[website:https://acme.io] We build rockets") ||
		!strings.Contains(summarizer.last.User, "[social:https://linkedin.com/acm] 500 employees") {
		t.Fatalf("unexpected prompt: %s", summarizer.last.User)
	}
	if summarizer.last.System != companySystem {
		t.Fatalf("unexpected system prompt: %q", summarizer.last.System)
	}
}

func TestParseContext(t *testing.T) {
	cases := []struct {
		name string
		kind records.ContextKind
		raw  string
		want records.ContextKind
	}{
		{name: "person", kind: records.KindPerson, raw: `{"bio": "x", "bullets": ["a"]}`, want: records.KindPerson},
		{name: "fenced company", kind: records.KindCompany, raw: "```json\n{\"summary\": \"s\"}\n```", want: records.KindCompany},
		{name: "prose", kind: records.KindPerson, raw: "Sorry, I cannot help with that.", want: records.KindRaw},
		{name: "wrong schema", kind: records.KindPerson, raw: `{"name": "Jane"}`, want: records.KindRaw},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseContext(tc.kind, tc.raw)
			if got.Kind != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, got)
			}
			if got.Kind == records.KindRaw && got.Raw != strings.TrimSpace(tc.raw) {
				t.Fatalf("raw text not preserved: %q", got.Raw)
			}
		})
	}
}

func TestSourcesAreTruncated(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{"https://acme.io": strings.Repeat("Q", 500)}}
	summarizer := &stubSummarizer{response: `{"summary": "s"}`}
	e := New(fetcher, summarizer, Config{MaxSourceChars: 100}, nil)

	if _, err := e.EnrichCompany(context.Background(), &records.Company{Name: "Acme", Website: "https://acme.io"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(summarizer.last.User, "Q"); n > 100 {
		t.Fatalf("expected at most 100 source chars, got %d", n)
	}
}
