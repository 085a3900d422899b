// Package scraper fetches web pages as plain text, through Firecrawl when an
// API key is configured and with a direct HTTP request otherwise.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultFirecrawlBaseURL = "https://api.firecrawl.dev/v2"
	DefaultMaxChars         = 5000
	DefaultTimeout          = 15 * time.Second
	DefaultUserAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	firecrawlTimeout = 30 * time.Second
	maxBodyBytes     = 5 << 20
)

// Firecrawl refuses these, so they go straight to the direct fetch.
var firecrawlBlocked = []string{"linkedin.com", "x.com", "twitter.com", "facebook.com", "instagram.com"}

// Placeholder links that show up in templates and are never worth fetching.
var placeholderURLs = []string{"example.com", "forms.gle/example", "company.com/apply"}

type Config struct {
	FirecrawlAPIKey  string
	FirecrawlBaseURL string
	Timeout          time.Duration
	MaxChars         int
	// RateLimit is the number of fetches per second; zero disables limiting.
	RateLimit float64
	UserAgent string
}

// Fetcher retrieves page text. It never returns an error: failures are logged
// and produce an empty string.
type Fetcher struct {
	client    *http.Client
	cfg       Config
	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	cfg.FirecrawlBaseURL = strings.TrimRight(strings.TrimSpace(cfg.FirecrawlBaseURL), "/")
	if cfg.FirecrawlBaseURL == "" {
		cfg.FirecrawlBaseURL = DefaultFirecrawlBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Fetcher{
		client:    &http.Client{},
		cfg:       cfg,
		limiter:   limiter,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.OrNop(log),
	}
}

// Fetch returns up to MaxChars of visible text from rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	target, ok := validURL(rawURL)
	if !ok {
		f.logger.Debug("skip invalid or placeholder url", zap.String("url", rawURL))
		return ""
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			f.logger.Warn("fetch cancelled", zap.String("url", rawURL), zap.Error(err))
			return ""
		}
	}

	var text string
	if f.useFirecrawl(target) {
		markdown, err := f.firecrawl(ctx, rawURL)
		if err != nil {
			f.logger.Warn("firecrawl scrape failed, falling back to direct fetch", zap.String("url", rawURL), zap.Error(err))
		}
		text = f.cleanMarkdown(markdown)
	}

	if text == "" {
		direct, err := f.direct(ctx, rawURL)
		if err != nil {
			f.logger.Warn("direct fetch failed", zap.String("url", rawURL), zap.Error(err))
			return ""
		}
		text = direct
	}

	text = utils.Truncate(text, f.cfg.MaxChars)
	f.logger.Debug("fetched page", zap.String("url", rawURL), zap.Int("chars", len([]rune(text))))

	return text
}

func (f *Fetcher) useFirecrawl(target *url.URL) bool {
	if strings.TrimSpace(f.cfg.FirecrawlAPIKey) == "" {
		return false
	}
	host := strings.ToLower(target.Hostname())
	for _, domain := range firecrawlBlocked {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return false
		}
	}
	return true
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	Timeout int      `json:"timeout"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

func (f *Fetcher) firecrawl(ctx context.Context, target string) (string, error) {
	payload, err := json.Marshal(firecrawlRequest{
		URL:     target,
		Formats: []string{"markdown"},
		Timeout: int(firecrawlTimeout / time.Millisecond),
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, firecrawlTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.FirecrawlBaseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", f.cfg.FirecrawlAPIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	var response firecrawlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&response); err != nil {
		return "", fmt.Errorf("decode firecrawl response: %w", err)
	}
	if !response.Success || response.Data == nil {
		return "", fmt.Errorf("unexpected firecrawl response: %s", response.Error)
	}

	return response.Data.Markdown, nil
}

func (f *Fetcher) direct(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	switch {
	case mediaType == "" || strings.Contains(mediaType, "html") || strings.HasSuffix(mediaType, "xml"):
		return HTMLText(body)
	case strings.HasPrefix(mediaType, "text/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// HTMLText returns the visible text of an HTML document with whitespace collapsed.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	collectText(doc.Selection, &parts)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

// collectText appends text nodes in document order so adjacent blocks stay separated.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if text := strings.TrimSpace(child.Text()); text != "" {
				*parts = append(*parts, text)
			}
			return
		}
		collectText(child, parts)
	})
}

func (f *Fetcher) cleanMarkdown(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(markdown)))
}

func validURL(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, false
	}
	lower := strings.ToLower(raw)
	for _, pattern := range placeholderURLs {
		if strings.Contains(lower, pattern) {
			return nil, false
		}
	}
	return parsed, true
}
