package filtering

import (
	"context"
	"slices"
	"strings"

	"github.com/spigell/chat-applier/internal/records"
)

type excludedCompaniesFilter struct {
	companies map[string]string
	disabled  bool
	reason    string
}

// NewExcludedCompanies creates a filter that drops jobs posted for the configured companies.
// Names are compared case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	set := make(map[string]string, len(companies))
	for _, name := range companies {
		if key := companyKey(name); key != "" {
			set[key] = strings.TrimSpace(name)
		}
	}
	return &excludedCompaniesFilter{companies: set}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludedCompaniesFilter) IsEnabled() bool { return !f.disabled && len(f.companies) > 0 }

func (f *excludedCompaniesFilter) Apply(_ context.Context, job *records.Job) (Verdict, error) {
	if name, ok := f.companies[companyKey(job.Company)]; ok {
		return Verdict{Reason: "company excluded: " + name}, nil
	}
	return Keep, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	names := make([]string, 0, len(f.companies))
	for _, name := range f.companies {
		names = append(names, name)
	}
	slices.Sort(names)
	details := map[string]string{}
	if len(names) > 0 {
		details["companies"] = strings.Join(names, ",")
	}
	reason := f.reason
	if reason == "" && len(f.companies) == 0 {
		reason = "no companies configured"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: reason, Details: details}
}

func companyKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
