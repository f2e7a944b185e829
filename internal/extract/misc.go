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

// AssignmentExtractor renders assignment descriptions with their due dates.
type AssignmentExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewAssignmentExtractor(store Store, cache *contentcache.Manager) *AssignmentExtractor {
	return &AssignmentExtractor{store: store, cache: cache}
}

func (e *AssignmentExtractor) Kind() models.SourceKind { return models.KindAssignment }

func (e *AssignmentExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindAssignment)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list assignments: %w", err)
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
	return Section{Title: "Assignments", Body: strings.TrimSpace(b.String())}, nil
}

func (e *AssignmentExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	assignment, err := e.store.AssignmentByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] assignment %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(assignment.ID)
	if entry, ok := e.cache.GetValid(models.KindAssignment, key, assignment.TimeModified); ok {
		return entry.Payload
	}

	intro := strings.TrimSpace(textutil.StripHTML(assignment.Intro))
	if intro == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("## " + assignment.Name + "\n")
	b.WriteString(textutil.Clamp(intro, fieldClamp) + "\n")
	if !assignment.DueDate.IsZero() {
		b.WriteString("Due: " + assignment.DueDate.UTC().Format("2006-01-02") + "\n")
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindAssignment,
		Key:          key,
		Payload:      text,
		TimeModified: assignment.TimeModified,
	})
	return text
}

// LabelExtractor renders labels, the free-standing text blocks placed
// directly on the course page.
type LabelExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewLabelExtractor(store Store, cache *contentcache.Manager) *LabelExtractor {
	return &LabelExtractor{store: store, cache: cache}
}

func (e *LabelExtractor) Kind() models.SourceKind { return models.KindLabel }

func (e *LabelExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindLabel)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list labels: %w", err)
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
	return Section{Title: "Course Notes", Body: strings.TrimSpace(b.String())}, nil
}

func (e *LabelExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	label, err := e.store.LabelByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] label %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(label.ID)
	if entry, ok := e.cache.GetValid(models.KindLabel, key, label.TimeModified); ok {
		return entry.Payload
	}

	text := strings.TrimSpace(textutil.StripHTML(label.Intro))
	if text == "" {
		return ""
	}
	text = textutil.Clamp(text, fieldClamp)

	e.cache.Set(contentcache.Entry{
		Kind:         models.KindLabel,
		Key:          key,
		Payload:      text,
		TimeModified: label.TimeModified,
	})
	return text
}

// URLExtractor renders URL activities: the configured address plus its
// description. Fetching the target itself is the link ingestor's job.
type URLExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewURLExtractor(store Store, cache *contentcache.Manager) *URLExtractor {
	return &URLExtractor{store: store, cache: cache}
}

func (e *URLExtractor) Kind() models.SourceKind { return models.KindURL }

func (e *URLExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindURL)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list url activities: %w", err)
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
	return Section{Title: "Linked Resources", Body: strings.TrimSpace(b.String())}, nil
}

func (e *URLExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	activity, err := e.store.URLByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] url %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(activity.ID)
	if entry, ok := e.cache.GetValid(models.KindURL, key, activity.TimeModified); ok {
		return entry.Payload
	}

	if activity.ExternalURL == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\nURL: %s\n", activity.Name, activity.ExternalURL)
	if intro := strings.TrimSpace(textutil.StripHTML(activity.Intro)); intro != "" {
		b.WriteString(textutil.Clamp(intro, fieldClamp) + "\n")
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindURL,
		Key:          key,
		Payload:      text,
		TimeModified: activity.TimeModified,
	})
	return text
}
