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

// PageExtractor renders text page activities.
type PageExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewPageExtractor(store Store, cache *contentcache.Manager) *PageExtractor {
	return &PageExtractor{store: store, cache: cache}
}

func (e *PageExtractor) Kind() models.SourceKind { return models.KindPage }

func (e *PageExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindPage)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list pages: %w", err)
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
	return Section{Title: "Course Pages", Body: strings.TrimSpace(b.String())}, nil
}

func (e *PageExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	page, err := e.store.PageByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] page %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(page.ID)
	if entry, ok := e.cache.GetValid(models.KindPage, key, page.TimeModified); ok {
		return entry.Payload
	}

	body := strings.TrimSpace(textutil.CollapseBlankLines(textutil.StripHTML(page.Content)))
	if body == "" {
		return ""
	}
	text := "## " + page.Name + "\n" + body

	e.cache.Set(contentcache.Entry{
		Kind:         models.KindPage,
		Key:          key,
		Payload:      text,
		TimeModified: page.TimeModified,
	})
	return text
}
