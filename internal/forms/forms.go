// Package forms fills and submits plain HTML application forms.
//
// Only controls rendered in the page markup are matched, by label, name,
// aria-label, placeholder or id. Script-rendered forms such as Google Forms,
// whose answers are hidden "entry.N" inputs with no markup label, end in
// ErrNoMatchingFields and are reported as failed submissions.
package forms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spigell/chat-applier/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 30 * time.Second

	multipartEnctype = "multipart/form-data"
	maxPageBytes     = 5 << 20
)

// ErrNoForm is returned when the page has no <form> element.
var ErrNoForm = errors.New("no form found on page")

// ErrNoMatchingFields is returned when none of the requested labels matched a form control.
var ErrNoMatchingFields = errors.New("no matching form fields")

type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Submitter locates form controls by their visible label, name, placeholder or
// aria-label and posts the filled form.
type Submitter struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Submitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Submitter{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		logger:    logger.OrNop(log),
	}
}

type form struct {
	action  string
	method  string
	enctype string
	values  url.Values
}

// Submit fills the first form found at formURL with fields, keyed by label.
func (s *Submitter) Submit(ctx context.Context, formURL string, fields map[string]string) error {
	page, err := url.Parse(strings.TrimSpace(formURL))
	if err != nil || page.Host == "" {
		return fmt.Errorf("invalid form url %q", formURL)
	}

	doc, err := s.load(ctx, page)
	if err != nil {
		return err
	}

	f, err := parseForm(doc, page)
	if err != nil {
		return err
	}

	matched := 0
	for label, value := range fields {
		name, ok := findControl(doc, label)
		if !ok {
			s.logger.Warn("form field not found", zap.String("form", formURL), zap.String("label", label))
			continue
		}
		f.values.Set(name, value)
		matched++
	}
	if matched == 0 {
		return ErrNoMatchingFields
	}

	s.logger.Debug("submitting form",
		zap.String("action", f.action),
		zap.String("method", f.method),
		zap.Int("matched", matched),
		zap.Int("requested", len(fields)),
	)

	return s.post(ctx, f)
}

func (s *Submitter) load(ctx context.Context, page *url.URL) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load form: bad status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse form page: %w", err)
	}
	return doc, nil
}

func parseForm(doc *goquery.Document, page *url.URL) (*form, error) {
	sel := doc.Find("form").First()
	if sel.Length() == 0 {
		return nil, ErrNoForm
	}

	action := page
	if raw, ok := sel.Attr("action"); ok && strings.TrimSpace(raw) != "" {
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid form action %q: %w", raw, err)
		}
		action = page.ResolveReference(ref)
	}

	method := strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", http.MethodPost)))
	if method != http.MethodGet {
		method = http.MethodPost
	}

	f := &form{
		action:  action.String(),
		method:  method,
		enctype: strings.ToLower(strings.TrimSpace(sel.AttrOr("enctype", ""))),
		values:  url.Values{},
	}

	// preserve prefilled values such as CSRF tokens
	sel.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		kind := strings.ToLower(input.AttrOr("type", "text"))
		switch kind {
		case "submit", "button", "image", "file", "reset":
			return
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); !checked {
				return
			}
		}
		if value, ok := input.Attr("value"); ok {
			f.values.Add(input.AttrOr("name", ""), value)
		}
	})

	return f, nil
}

// findControl returns the name of the control best matching label. Exact
// matches win over partial ones.
func findControl(doc *goquery.Document, label string) (string, bool) {
	want := normalize(label)
	if want == "" {
		return "", false
	}

	for _, exact := range []bool{true, false} {
		if name := matchControl(doc, want, exact); name != "" {
			return name, true
		}
	}
	return "", false
}

func matchControl(doc *goquery.Document, want string, exact bool) string {
	root := doc.Find("form").First()
	controls := root.Find("input[name], textarea[name], select[name]")

	var found string
	// label text, resolved through for= or nesting
	root.Find("label").EachWithBreak(func(_ int, l *goquery.Selection) bool {
		if !matches(l.Text(), want, exact) {
			return true
		}
		if id := l.AttrOr("for", ""); id != "" {
			controls.EachWithBreak(func(_ int, c *goquery.Selection) bool {
				if c.AttrOr("id", "") == id {
					found = c.AttrOr("name", "")
					return false
				}
				return true
			})
		}
		if found == "" {
			if nested := l.Find("input[name], textarea[name], select[name]").First(); nested.Length() > 0 {
				found = nested.AttrOr("name", "")
			}
		}
		return found == ""
	})
	if found != "" {
		return found
	}

	for _, attr := range []string{"name", "aria-label", "placeholder", "id"} {
		controls.EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if kind := strings.ToLower(c.AttrOr("type", "")); kind == "hidden" || kind == "submit" {
				return true
			}
			if matches(c.AttrOr(attr, ""), want, exact) {
				found = c.AttrOr("name", "")
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func matches(text, want string, exact bool) bool {
	value := normalize(text)
	if value == "" {
		return false
	}
	if exact {
		return value == want
	}
	return strings.Contains(value, want)
}

func (s *Submitter) post(ctx context.Context, f *form) error {
	var (
		body        io.Reader
		contentType string
		target      = f.action
	)

	switch {
	case f.method == http.MethodGet:
		u, err := url.Parse(f.action)
		if err != nil {
			return err
		}
		u.RawQuery = f.values.Encode()
		target = u.String()
	case f.enctype == multipartEnctype:
		var b bytes.Buffer
		w := multipart.NewWriter(&b)
		for key, values := range f.values {
			for _, val := range values {
				field, err := w.CreateFormField(key)
				if err != nil {
					return err
				}
				if _, err := io.Copy(field, strings.NewReader(val)); err != nil {
					return err
				}
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		body = &b
		contentType = w.FormDataContentType()
	default:
		body = strings.NewReader(f.values.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, f.method, target, body)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("submit form: bad status: %s", resp.Status)
	}

	s.logger.Info("form submitted", zap.String("action", f.action), zap.Int("status", resp.StatusCode))
	return nil
}

func (s *Submitter) setHeaders(req *http.Request) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.Trim(s, " :*")
}
