package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coursemind/internal/contentcache"
	"coursemind/internal/extract"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// stubExtractor returns a fixed section and counts invocations.
type stubExtractor struct {
	kind    models.SourceKind
	section extract.Section
	err     error
	calls   int
}

func (s *stubExtractor) Kind() models.SourceKind { return s.kind }

func (s *stubExtractor) Extract(ctx context.Context, req extract.Request) (extract.Section, error) {
	s.calls++
	return s.section, s.err
}

// stubLinks serves canned records without touching the network.
type stubLinks struct {
	records  []models.LinkRecord
	freshErr error
}

func (s *stubLinks) Records(ctx context.Context, ownerID string) ([]models.LinkRecord, error) {
	return s.records, nil
}

func (s *stubLinks) EnsureFresh(ctx context.Context, record *models.LinkRecord) error {
	return s.freshErr
}

func newTestAssembler(extractors []extract.Extractor, links LinkSource) *Assembler {
	return New(extractors, contentcache.NewManager(contentcache.NewMemoryStore()), links)
}

func strictConfig() models.SourceConfig {
	return models.DefaultSourceConfig()
}

// TestShareContextOffYieldsEmpty verifies the sharing toggle short-circuits
// the whole build.
func TestShareContextOffYieldsEmpty(t *testing.T) {
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "body"}}
	a := newTestAssembler([]extract.Extractor{page}, nil)

	cfg := strictConfig()
	cfg.ShareContext = false
	result, err := a.BuildContext(context.Background(), "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if result.Context != "" {
		t.Errorf("context not empty: %q", result.Context)
	}
	if page.calls != 0 {
		t.Errorf("extractor invoked %d times with sharing off", page.calls)
	}
}

// TestPolicyBlockSelection verifies the right instruction block is appended
// for each policy mode.
func TestPolicyBlockSelection(t *testing.T) {
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{page}, nil)
	ctx := context.Background()

	strict, err := a.BuildContext(ctx, "owner-1", 1, strictConfig())
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if !strings.Contains(strict.Context, StrictPolicyInstruction) {
		t.Error("strict instruction missing")
	}
	if strings.Contains(strict.Context, InternetPolicyInstruction) {
		t.Error("internet instruction present in strict mode")
	}

	cfg := strictConfig()
	cfg.InternetFallback = true
	open, err := a.BuildContext(ctx, "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if !strings.Contains(open.Context, InternetPolicyInstruction) {
		t.Error("internet instruction missing")
	}
	if strings.Contains(open.Context, StrictPolicyInstruction) {
		t.Error("strict instruction present in internet mode")
	}
}

// TestGlobalCapEnforced verifies an oversized build is cut at the global
// budget with the truncation marker.
func TestGlobalCapEnforced(t *testing.T) {
	huge := &stubExtractor{
		kind:    models.KindPage,
		section: extract.Section{Title: "Course Pages", Body: strings.Repeat("x", GlobalContextCap+10000)},
	}
	a := newTestAssembler([]extract.Extractor{huge}, nil)

	result, err := a.BuildContext(context.Background(), "owner-1", 1, strictConfig())
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if len(result.Context) > GlobalContextCap {
		t.Errorf("context length %d exceeds cap", len(result.Context))
	}
	if !strings.HasSuffix(result.Context, textutil.TruncationMarker) {
		t.Error("truncation marker missing")
	}
}

// TestCachedAggregateReused verifies the second build with an unchanged
// configuration is served from cache without re-running extractors.
func TestCachedAggregateReused(t *testing.T) {
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{page}, nil)
	ctx := context.Background()
	cfg := strictConfig()

	first, err := a.BuildContext(ctx, "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := a.BuildContext(ctx, "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if page.calls != 1 {
		t.Errorf("extractor ran %d times, want 1", page.calls)
	}
	if first.Context != second.Context {
		t.Error("cached context differs from built one")
	}
}

// TestStalePolicyMetadataForcesRebuild verifies a cached aggregate whose
// stored policy metadata disagrees with the configuration is never served,
// independent of the cache key.
func TestStalePolicyMetadataForcesRebuild(t *testing.T) {
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	cache := contentcache.NewManager(contentcache.NewMemoryStore())
	a := New([]extract.Extractor{page}, cache, nil)

	cfg := strictConfig()
	cfg.InternetFallback = true

	// Poison the exact key with a strict-mode leftover.
	cache.Set(contentcache.Entry{
		Kind:       models.KindAggregate,
		Key:        aggregateKey("owner-1", cfg),
		Payload:    "stale strict context",
		PolicyMode: models.PolicyStrict,
		Selective:  false,
	})

	result, err := a.BuildContext(context.Background(), "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if result.Context == "stale strict context" {
		t.Fatal("stale aggregate served despite policy mismatch")
	}
	if page.calls != 1 {
		t.Errorf("extractor ran %d times, want 1", page.calls)
	}
	if !strings.Contains(result.Context, InternetPolicyInstruction) {
		t.Error("rebuilt context carries wrong policy block")
	}
}

// TestPolicyFlipRebuildsAndSwapsBlocks verifies flipping the fallback
// toggle never leaks the old instruction block through the cache.
func TestPolicyFlipRebuildsAndSwapsBlocks(t *testing.T) {
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	glossary := &stubExtractor{kind: models.KindGlossary, section: extract.Section{Title: "Glossaries", Body: "**Moodle**: A VLE"}}
	a := newTestAssembler([]extract.Extractor{page, glossary}, nil)
	ctx := context.Background()

	cfg := strictConfig()
	if _, err := a.BuildContext(ctx, "owner-1", 1, cfg); err != nil {
		t.Fatalf("strict build failed: %v", err)
	}

	cfg.InternetFallback = true
	open, err := a.BuildContext(ctx, "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("internet build failed: %v", err)
	}
	if strings.Contains(open.Context, StrictPolicyInstruction) {
		t.Error("strict block leaked into internet-mode context")
	}
	if !strings.Contains(open.Context, "Hello world") || !strings.Contains(open.Context, "**Moodle**: A VLE") {
		t.Error("content sections missing after rebuild")
	}
}

// TestFailingExtractorAbsorbed verifies one broken source never fails the
// build or suppresses the others.
func TestFailingExtractorAbsorbed(t *testing.T) {
	broken := &stubExtractor{kind: models.KindForum, err: errors.New("store unreachable")}
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{broken, page}, nil)

	result, err := a.BuildContext(context.Background(), "owner-1", 1, strictConfig())
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if !strings.Contains(result.Context, "Hello world") {
		t.Error("healthy section missing")
	}
	if strings.Contains(result.Context, "Forums") {
		t.Error("broken source contributed a section")
	}
}

// TestDisabledKindSkipped verifies a switched-off kind's extractor never
// runs.
func TestDisabledKindSkipped(t *testing.T) {
	quiz := &stubExtractor{kind: models.KindQuiz, section: extract.Section{Title: "Quizzes", Body: "Q1: ?"}}
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{quiz, page}, nil)

	cfg := strictConfig()
	cfg.Enabled[models.KindQuiz] = false
	result, err := a.BuildContext(context.Background(), "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if quiz.calls != 0 {
		t.Errorf("disabled extractor ran %d times", quiz.calls)
	}
	if strings.Contains(result.Context, "Q1") {
		t.Error("disabled section present")
	}
}

// TestLinkSectionFiltersByStatus verifies only successfully fetched links
// contribute, and refresh errors are absorbed.
func TestLinkSectionFiltersByStatus(t *testing.T) {
	links := &stubLinks{records: []models.LinkRecord{
		{URL: "https://example.com/a", Status: models.LinkOK, Content: "### A\n*Source:* https://example.com/a\n\n---\n\nbody a"},
		{URL: "https://example.com/b", Status: models.LinkError, Content: ""},
		{URL: "https://example.com/c", Status: models.LinkBlocked, Content: ""},
	}}
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{page}, links)

	result, err := a.BuildContext(context.Background(), "owner-1", 1, strictConfig())
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if !strings.Contains(result.Context, "# External Resources") {
		t.Error("link section missing")
	}
	if !strings.Contains(result.Context, "body a") {
		t.Error("ok link content missing")
	}
}

// TestLinksDisabledSkipsSource verifies the weblink kind toggle gates the
// link section.
func TestLinksDisabledSkipsSource(t *testing.T) {
	links := &stubLinks{records: []models.LinkRecord{
		{URL: "https://example.com/a", Status: models.LinkOK, Content: "body a"},
	}}
	page := &stubExtractor{kind: models.KindPage, section: extract.Section{Title: "Course Pages", Body: "Hello world"}}
	a := newTestAssembler([]extract.Extractor{page}, links)

	cfg := strictConfig()
	cfg.Enabled[models.KindLink] = false
	result, err := a.BuildContext(context.Background(), "owner-1", 1, cfg)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if strings.Contains(result.Context, "External Resources") {
		t.Error("link section present with weblinks disabled")
	}
}
