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

// LessonExtractor renders lessons as ordered pages with their answer
// options and responses.
type LessonExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewLessonExtractor(store Store, cache *contentcache.Manager) *LessonExtractor {
	return &LessonExtractor{store: store, cache: cache}
}

func (e *LessonExtractor) Kind() models.SourceKind { return models.KindLesson }

func (e *LessonExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindLesson)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list lessons: %w", err)
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
	return Section{Title: "Lessons", Body: strings.TrimSpace(b.String())}, nil
}

func (e *LessonExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	lesson, err := e.store.LessonByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] lesson %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(lesson.ID)
	if entry, ok := e.cache.GetValid(models.KindLesson, key, lesson.TimeModified); ok {
		return entry.Payload
	}

	pages, err := e.store.LessonPages(ctx, lesson.ID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] lesson %d pages unreadable, skipping: %v", lesson.ID, err)
		return ""
	}

	var b strings.Builder
	b.WriteString("## " + lesson.Name + "\n")
	wrotePage := false
	for _, page := range pages {
		contents := strings.TrimSpace(textutil.CollapseBlankLines(textutil.StripHTML(page.Contents)))
		if contents == "" {
			continue
		}
		b.WriteString("### " + page.Title + "\n" + contents + "\n")
		wrotePage = true

		answers, err := e.store.LessonAnswers(ctx, page.ID)
		if err != nil {
			log.Printf("⚠️  [EXTRACT] lesson page %d answers unreadable: %v", page.ID, err)
			continue
		}
		for _, answer := range answers {
			option := strings.TrimSpace(textutil.StripHTML(answer.Answer))
			if option == "" {
				continue
			}
			line := "- " + textutil.Clamp(option, fieldClamp)
			if response := strings.TrimSpace(textutil.StripHTML(answer.Response)); response != "" {
				line += " -> " + textutil.Clamp(response, fieldClamp)
			}
			b.WriteString(line + "\n")
		}
	}
	if !wrotePage {
		return ""
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindLesson,
		Key:          key,
		Payload:      text,
		TimeModified: lesson.TimeModified,
	})
	return text
}
