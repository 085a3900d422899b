package detector

import (
	"strings"
	"testing"
)

func TestDetectNonJobMessages(t *testing.T) {
	for _, body := range []string{
		"Let's catch up tomorrow!",
		"Happy birthday Sam",
		"see https://example.org and write me at sam@example.org",
		"",
	} {
		if job, ok := Detect(body); ok || job != nil {
			t.Fatalf("expected %q to be ignored, got %+v", body, job)
		}
	}
}

func TestDetectExtractsLabeledFields(t *testing.T) {
	body := "Hiring: Software Engineer\nRole: Backend Engineer\nCompany: OpenAI\nLocation: Remote\nSalary: $120k"

	job, ok := Detect(body)
	if !ok {
		t.Fatal("expected job post")
	}

	checks := map[string]*string{
		"Backend Engineer": job.Role,
		"OpenAI":           job.Company,
		"Remote":           job.Location,
		"$120k":            job.Salary,
	}
	for want, got := range checks {
		if got == nil || *got != want {
			t.Fatalf("expected %q, got %v", want, got)
		}
	}
	if job.RawText != body {
		t.Fatalf("unexpected raw text: %q", job.RawText)
	}
}

func TestDetectMissingFieldsAreNil(t *testing.T) {
	job, ok := Detect("New VACANCY, ping me")
	if !ok {
		t.Fatal("expected keyword match to be case-insensitive")
	}
	if job.Role != nil || job.Company != nil || job.Location != nil || job.Salary != nil {
		t.Fatalf("expected nil fields, got %+v", job)
	}
	if len(job.Links) != 0 || len(job.Emails) != 0 {
		t.Fatalf("expected no links or emails, got %v %v", job.Links, job.Emails)
	}
}

func TestDetectLinksAndEmailsAnywhere(t *testing.T) {
	body := "Internship opening at Acme https://acme.io/careers?id=7 apply hr@acme.io or " +
		"jobs.team@acme.co.uk\nalso https://forms.gle/abc123 and again hr@acme.io"

	job, ok := Detect(body)
	if !ok {
		t.Fatal("expected job post")
	}

	wantLinks := []string{"https://acme.io/careers?id=7", "https://forms.gle/abc123"}
	if strings.Join(job.Links, " ") != strings.Join(wantLinks, " ") {
		t.Fatalf("unexpected links: %v", job.Links)
	}

	wantEmails := []string{"hr@acme.io", "jobs.team@acme.co.uk"}
	if strings.Join(job.Emails, " ") != strings.Join(wantEmails, " ") {
		t.Fatalf("unexpected emails: %v", job.Emails)
	}

	for _, token := range append(job.Links, job.Emails...) {
		if !strings.Contains(body, token) {
			t.Fatalf("token %q not found verbatim in body", token)
		}
	}

	if job.FormURL() != "https://forms.gle/abc123" {
		t.Fatalf("unexpected form url: %q", job.FormURL())
	}
	if job.FirstLink() != "https://acme.io/careers?id=7" {
		t.Fatalf("unexpected first link: %q", job.FirstLink())
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	body := "Job: Data Analyst\nEmail a@b.io, c@d.io https://x.io/1 https://y.io/2"

	first, _ := Detect(body)
	for i := 0; i < 20; i++ {
		next, _ := Detect(body)
		if strings.Join(next.Links, ",") != strings.Join(first.Links, ",") ||
			strings.Join(next.Emails, ",") != strings.Join(first.Emails, ",") ||
			Value(next.Role) != Value(first.Role) {
			t.Fatalf("detection is not deterministic: %+v vs %+v", first, next)
		}
	}
}

func TestFormURLRequiresKnownHost(t *testing.T) {
	job, _ := Detect("Opening! details https://acme.io/apply")
	if job.FormURL() != "" {
		t.Fatalf("expected no form url, got %q", job.FormURL())
	}

	job, _ = Detect("Opening! apply https://docs.google.com/forms/d/e/xyz/viewform")
	if job.FormURL() == "" {
		t.Fatal("expected google form to be recognized")
	}
}
