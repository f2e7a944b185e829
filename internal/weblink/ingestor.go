package weblink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// maxLinkChars bounds the extracted body of one link.
const maxLinkChars = 4000

// Config carries the ingestor's operating parameters, passed in once at
// construction rather than read from ambient state.
type Config struct {
	AllowedDomains []string
	UserAgent      string
	FetchTimeout   time.Duration
	RefreshTTL     time.Duration
	GlobalRate     float64
}

// DefaultConfig returns production defaults; the allow-list stays empty,
// which blocks everything until configured.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "CourseMind-Bot/1.0 (+https://coursemind.example.com/bot)",
		FetchTimeout: 30 * time.Second,
		RefreshTTL:   24 * time.Hour,
		GlobalRate:   10.0,
	}
}

// pageFetcher lets tests substitute the HTTP client.
type pageFetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Ingestor fetches allow-listed external URLs and stores readable extracts
// as link records.
type Ingestor struct {
	cfg     Config
	store   *LinkStore
	fetcher pageFetcher
	robots  *RobotsChecker
	limiter *RateLimiter
	now     func() time.Time
}

// NewIngestor wires the ingestor with its own fetcher, robots checker and
// rate limiter.
func NewIngestor(cfg Config, store *LinkStore) *Ingestor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = 10.0
	}
	return &Ingestor{
		cfg:     cfg,
		store:   store,
		fetcher: NewFetcher(cfg.UserAgent, cfg.FetchTimeout),
		robots:  NewRobotsChecker(cfg.UserAgent),
		limiter: NewRateLimiter(cfg.GlobalRate),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (in *Ingestor) SetClock(now func() time.Time) {
	in.now = now
}

// EnsureFresh re-ingests the record when it is stale or empty. Records in a
// permanently hopeless state (blocked, unsupported) are left alone.
func (in *Ingestor) EnsureFresh(ctx context.Context, record *models.LinkRecord) error {
	switch record.Status {
	case models.LinkBlocked, models.LinkUnsupported:
		return nil
	}
	if record.Status == models.LinkOK && record.Content != "" &&
		in.now().Sub(record.LastFetch) <= in.cfg.RefreshTTL {
		return nil
	}
	return in.Ingest(ctx, record)
}

// Ingest fetches the record's URL, extracts readable text, and saves the
// outcome. Fetch or extraction failures land in the record's status and
// LastError rather than propagating; only storage errors return.
func (in *Ingestor) Ingest(ctx context.Context, record *models.LinkRecord) error {
	if !in.domainAllowed(record.URL) {
		log.Printf("🚫 [WEBLINK] domain not allow-listed: %s", record.URL)
		return in.finish(ctx, record, models.LinkBlocked, "domain not in allow-list")
	}

	parsed, err := url.Parse(record.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return in.finish(ctx, record, models.LinkError, "invalid URL")
	}

	// PDFs go through the document pipeline, not this one.
	if strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return in.finish(ctx, record, models.LinkUnsupported, "PDF links are not supported")
	}

	allowed, crawlDelay, err := in.robots.CanFetch(ctx, record.URL)
	if err != nil {
		log.Printf("⚠️  [WEBLINK] robots.txt check failed for %s: %v", record.URL, err)
		crawlDelay = 1 * time.Second
		allowed = true
	}
	if !allowed {
		return in.finish(ctx, record, models.LinkBlocked, "disallowed by robots.txt")
	}

	if err := in.limiter.Wait(ctx, record.OwnerID, parsed.Host, crawlDelay); err != nil {
		return in.finish(ctx, record, models.LinkError, fmt.Sprintf("rate limit wait aborted: %v", err))
	}

	resp, err := in.fetcher.Get(ctx, record.URL)
	if err != nil {
		log.Printf("❌ [WEBLINK] fetch failed for %s: %v", record.URL, err)
		return in.finish(ctx, record, models.LinkError, fmt.Sprintf("fetch failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return in.finish(ctx, record, models.LinkError, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return in.finish(ctx, record, models.LinkError, fmt.Sprintf("read failed: %v", err))
	}

	title, text := in.extract(parsed, body)
	if text == "" {
		return in.finish(ctx, record, models.LinkError, "no readable content extracted")
	}
	if title == "" {
		title = record.URL
	}

	snippet := fmt.Sprintf("### %s\n*Source:* %s\n\n---\n\n%s", title, record.URL, text)
	sum := sha256.Sum256([]byte(snippet))

	record.Title = title
	record.Content = snippet
	record.ContentHash = hex.EncodeToString(sum[:])
	record.Status = models.LinkOK
	record.LastError = ""
	record.LastFetch = in.now()

	if err := in.store.Save(ctx, record); err != nil {
		return err
	}
	log.Printf("✅ [WEBLINK] ingested %s (%d chars)", record.URL, len(snippet))
	return nil
}

// extract pulls the title and main readable text, falling back to naive
// tag stripping when readability extraction finds nothing.
func (in *Ingestor) extract(pageURL *url.URL, body []byte) (title, text string) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: pageURL})
	if err == nil && result != nil && result.ContentText != "" {
		title = result.Metadata.Title
		text = result.ContentText
	} else {
		text = textutil.StripHTML(string(body))
		title = htmlTitle(string(body))
	}

	text = strings.TrimSpace(textutil.CollapseBlankLines(textutil.NormalizeWhitespace(text)))
	text = textutil.Truncate(text, maxLinkChars)
	return title, text
}

// htmlTitle pulls the contents of the first title tag.
func htmlTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open < 0 {
		return ""
	}
	rest := html[start+open+1:]
	end := strings.Index(strings.ToLower(rest), "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(textutil.StripHTML(rest[:end]))
}

// domainAllowed reports whether the URL's host equals or is a subdomain of
// an allow-listed host.
func (in *Ingestor) domainAllowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range in.cfg.AllowedDomains {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// finish records a terminal-for-this-attempt status.
func (in *Ingestor) finish(ctx context.Context, record *models.LinkRecord, status models.LinkStatus, reason string) error {
	record.Status = status
	record.LastError = reason
	record.LastFetch = in.now()
	if status != models.LinkOK {
		record.Content = ""
		record.ContentHash = ""
	}
	return in.store.Save(ctx, record)
}
