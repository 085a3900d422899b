// Package detector recognizes job posts in chat messages and extracts labeled
// fields from them.
//
// Classification is a keyword heuristic, not a trained model: any message that
// mentions one of Keywords is treated as a job post, so chatter such as "great
// opportunity to meet" is a false positive by design.
package detector

import (
	"net/url"
	"regexp"
	"strings"
)

// Keywords that mark a message as job related, matched case-insensitively as substrings.
var Keywords = []string{
	"hiring", "job", "vacancy", "opening", "position",
	"career", "opportunity", "internship",
}

var (
	rolePattern     = regexp.MustCompile(`(?i)(?:role|position|job)\s*[:\-]\s*(.+)`)
	companyPattern  = regexp.MustCompile(`(?i)(?:company|org|organization)\s*[:\-]\s*(.+)`)
	locationPattern = regexp.MustCompile(`(?i)(?:location|based in)\s*[:\-]\s*(.+)`)
	salaryPattern   = regexp.MustCompile(`(?i)(?:salary|ctc|stipend)\s*[:\-]\s*(.+)`)
	linkPattern     = regexp.MustCompile(`(?i)https?://\S+`)
	emailPattern    = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
)

// formHosts are hosts whose links are treated as application forms.
var formHosts = []string{
	"docs.google.com/forms",
	"forms.gle",
	"forms.office.com",
	"typeform.com",
	"jotform.com",
	"tally.so",
	"airtable.com/shr",
}

// JobCandidate is a message classified as a job post plus its extracted fields.
// Absent fields are nil.
type JobCandidate struct {
	Role     *string
	Company  *string
	Location *string
	Salary   *string
	Links    []string
	Emails   []string
	RawText  string
}

// IsJobPost reports whether text contains at least one job keyword.
func IsJobPost(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range Keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Detect classifies body and, for job posts, extracts the labeled fields and
// every link and email address found anywhere in it.
func Detect(body string) (*JobCandidate, bool) {
	if !IsJobPost(body) {
		return nil, false
	}

	return &JobCandidate{
		Role:     field(rolePattern, body),
		Company:  field(companyPattern, body),
		Location: field(locationPattern, body),
		Salary:   field(salaryPattern, body),
		Links:    unique(linkPattern.FindAllString(body, -1)),
		Emails:   unique(emailPattern.FindAllString(body, -1)),
		RawText:  strings.TrimSpace(body),
	}, true
}

// FormURL returns the first link pointing at a known form host, or "".
func (j *JobCandidate) FormURL() string {
	if j == nil {
		return ""
	}
	for _, link := range j.Links {
		if isFormLink(link) {
			return link
		}
	}
	return ""
}

// FirstLink returns the first extracted link, or "".
func (j *JobCandidate) FirstLink() string {
	if j == nil || len(j.Links) == 0 {
		return ""
	}
	return j.Links[0]
}

func isFormLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	target := strings.ToLower(strings.TrimPrefix(u.Host, "www.") + u.Path)
	for _, host := range formHosts {
		if strings.HasPrefix(target, host) {
			return true
		}
	}
	return false
}

func field(pattern *regexp.Regexp, text string) *string {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value := strings.TrimSpace(match[1])
	if value == "" {
		return nil
	}
	return &value
}

func unique(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Value dereferences an optional field.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
