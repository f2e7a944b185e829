// Package assembler orchestrates the source extractors into one bounded
// aggregate context string per owner and configuration, cached with
// structural policy metadata.
package assembler

import (
	"context"
	"log"
	"strings"
	"time"

	"coursemind/internal/contentcache"
	"coursemind/internal/extract"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// GlobalContextCap is the hard character budget for one aggregate context.
const GlobalContextCap = 60000

// Policy instruction blocks appended after the content sections. The
// strict block includes the one canned refusal the model may use for
// out-of-scope questions.
const (
	StrictPolicyInstruction = "Answer using only the course content above. You may paraphrase, " +
		"summarize, and synthesize that content freely, but do not bring in outside knowledge. " +
		"If the question cannot be answered from the course content, reply exactly: " +
		"\"I can only help with questions about this course's content.\""

	InternetPolicyInstruction = "Prefer the course content above. When it does not cover the " +
		"question, you may draw on your general knowledge, and you must say clearly that the " +
		"answer goes beyond the course materials."
)

// LinkSource supplies an owner's external link snippets.
type LinkSource interface {
	Records(ctx context.Context, ownerID string) ([]models.LinkRecord, error)
	EnsureFresh(ctx context.Context, record *models.LinkRecord) error
}

// Result carries the assembled context plus any documents registered for
// provider upload during the build.
type Result struct {
	Context string
	Uploads []extract.UploadCandidate
}

// Assembler builds and caches aggregate contexts.
type Assembler struct {
	extractors []extract.Extractor
	cache      *contentcache.Manager
	links      LinkSource
}

// New creates an assembler. links may be nil when external link ingestion
// is not wired.
func New(extractors []extract.Extractor, cache *contentcache.Manager, links LinkSource) *Assembler {
	return &Assembler{extractors: extractors, cache: cache, links: links}
}

func aggregateKey(ownerID string, cfg models.SourceConfig) string {
	return ownerID + ":" + cfg.Hash()
}

// BuildContext assembles the context for one owner. A failing source is
// logged and contributes nothing; only total configuration-level refusal
// (sharing disabled) yields an empty result.
func (a *Assembler) BuildContext(ctx context.Context, ownerID string, courseID int64, cfg models.SourceConfig) (Result, error) {
	if !cfg.ShareContext {
		return Result{}, nil
	}

	start := time.Now()
	key := aggregateKey(ownerID, cfg)

	// The cached aggregate is reused only when its stored policy metadata
	// matches the current configuration structurally.
	if entry, ok := a.cache.GetValid(models.KindAggregate, key, time.Time{}); ok {
		if entry.PolicyMode == cfg.PolicyMode() && entry.Selective == cfg.Selective {
			log.Printf("✅ [CONTEXT] cache hit for %s (%d chars)", ownerID, len(entry.Payload))
			return Result{Context: entry.Payload}, nil
		}
		log.Printf("🔁 [CONTEXT] policy metadata changed for %s, rebuilding", ownerID)
	}

	var uploads []extract.UploadCandidate
	req := extract.Request{CourseID: courseID, Config: cfg}
	if cfg.FileUploadMode {
		req.Uploads = &uploads
	}

	var sections []string
	for _, extractor := range a.extractors {
		if !cfg.KindEnabled(extractor.Kind()) {
			continue
		}
		section, err := extractor.Extract(ctx, req)
		if err != nil {
			log.Printf("⚠️  [CONTEXT] %s extraction failed, skipping source: %v", extractor.Kind(), err)
			continue
		}
		if section.Empty() {
			continue
		}
		sections = append(sections, "# "+section.Title+"\n\n"+section.Body)
	}

	if cfg.KindEnabled(models.KindLink) && a.links != nil {
		if body := a.linkSection(ctx, ownerID); body != "" {
			sections = append(sections, "# External Resources\n\n"+body)
		}
	}

	policy := StrictPolicyInstruction
	if cfg.PolicyMode() == models.PolicyInternetAllowed {
		policy = InternetPolicyInstruction
	}

	assembled := strings.Join(sections, "\n\n---\n\n")
	if assembled != "" {
		assembled += "\n\n---\n\n"
	}
	assembled += policy
	assembled = textutil.Truncate(assembled, GlobalContextCap)

	a.cache.Set(contentcache.Entry{
		Kind:       models.KindAggregate,
		Key:        key,
		Payload:    assembled,
		PolicyMode: cfg.PolicyMode(),
		Selective:  cfg.Selective,
	})

	log.Printf("✅ [CONTEXT] built context for %s (%d sections, %d chars, %dms)",
		ownerID, len(sections), len(assembled), time.Since(start).Milliseconds())
	return Result{Context: assembled, Uploads: uploads}, nil
}

// linkSection collects successfully fetched link snippets, refreshing stale
// records first. Fetch failures are absorbed per link.
func (a *Assembler) linkSection(ctx context.Context, ownerID string) string {
	records, err := a.links.Records(ctx, ownerID)
	if err != nil {
		log.Printf("⚠️  [CONTEXT] link records unreadable for %s: %v", ownerID, err)
		return ""
	}

	var b strings.Builder
	for i := range records {
		record := &records[i]
		if err := a.links.EnsureFresh(ctx, record); err != nil {
			log.Printf("⚠️  [CONTEXT] link refresh failed for %s: %v", record.URL, err)
		}
		if record.Status != models.LinkOK || record.Content == "" {
			continue
		}
		b.WriteString(record.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// Invalidate drops the cached aggregate for one owner and configuration,
// used when an owner edits their block settings or links.
func (a *Assembler) Invalidate(ownerID string, cfg models.SourceConfig) {
	a.cache.Invalidate(models.KindAggregate, aggregateKey(ownerID, cfg))
}

// InvalidateAll drops every cached aggregate, e.g. after a bulk content
// import.
func (a *Assembler) InvalidateAll() {
	a.cache.Purge(models.KindAggregate)
}
