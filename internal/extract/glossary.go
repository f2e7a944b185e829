package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"coursemind/internal/contentcache"
	"coursemind/internal/coursestore"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// GlossaryExtractor renders glossaries as term/definition lists.
type GlossaryExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewGlossaryExtractor(store Store, cache *contentcache.Manager) *GlossaryExtractor {
	return &GlossaryExtractor{store: store, cache: cache}
}

func (e *GlossaryExtractor) Kind() models.SourceKind { return models.KindGlossary }

func (e *GlossaryExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindGlossary)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list glossaries: %w", err)
	}

	var b strings.Builder
	for _, m := range mods {
		if !wantModule(req.Config, m) {
			continue
		}
		if text := e.activityText(ctx, m); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return Section{Title: "Glossaries", Body: strings.TrimSpace(b.String())}, nil
}

func (e *GlossaryExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	glossary, err := e.store.GlossaryByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] glossary %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	entries, err := e.store.GlossaryEntries(ctx, glossary.ID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] glossary %d entries unreadable, skipping: %v", glossary.ID, err)
		return ""
	}
	if len(entries) == 0 {
		return ""
	}

	// Entries carry their own timemodified; the newest one governs cache
	// validity for the whole glossary.
	latest := glossary.TimeModified
	for _, entry := range entries {
		if entry.TimeModified.After(latest) {
			latest = entry.TimeModified
		}
	}

	key := activityKey(glossary.ID)
	if entry, ok := e.cache.GetValid(models.KindGlossary, key, latest); ok {
		return entry.Payload
	}

	var b strings.Builder
	b.WriteString("## " + glossary.Name + "\n")
	for _, entry := range entries {
		definition := strings.TrimSpace(textutil.StripHTML(entry.Definition))
		if definition == "" {
			continue
		}
		b.WriteString("**" + entry.Concept + "**: " + textutil.Clamp(definition, fieldClamp) + "\n")
	}
	text := strings.TrimSpace(b.String())
	if text == "## "+glossary.Name {
		return ""
	}

	e.cache.Set(contentcache.Entry{
		Kind:         models.KindGlossary,
		Key:          key,
		Payload:      text,
		TimeModified: latest,
	})
	return text
}
