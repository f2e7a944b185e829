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

// BookExtractor renders books as chapters in page order, skipping hidden
// chapters.
type BookExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewBookExtractor(store Store, cache *contentcache.Manager) *BookExtractor {
	return &BookExtractor{store: store, cache: cache}
}

func (e *BookExtractor) Kind() models.SourceKind { return models.KindBook }

func (e *BookExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindBook)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list books: %w", err)
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
	return Section{Title: "Books", Body: strings.TrimSpace(b.String())}, nil
}

func (e *BookExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	book, err := e.store.BookByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] book %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(book.ID)
	if entry, ok := e.cache.GetValid(models.KindBook, key, book.TimeModified); ok {
		return entry.Payload
	}

	chapters, err := e.store.BookChapters(ctx, book.ID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] book %d chapters unreadable, skipping: %v", book.ID, err)
		return ""
	}

	var b strings.Builder
	b.WriteString("## " + book.Name + "\n")
	wroteChapter := false
	for _, chapter := range chapters {
		if chapter.Hidden {
			continue
		}
		content := strings.TrimSpace(textutil.CollapseBlankLines(textutil.StripHTML(chapter.Content)))
		if content == "" {
			continue
		}
		b.WriteString("### " + chapter.Title + "\n" + content + "\n")
		wroteChapter = true
	}
	if !wroteChapter {
		return ""
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindBook,
		Key:          key,
		Payload:      text,
		TimeModified: book.TimeModified,
	})
	return text
}
