package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"coursemind/internal/contentcache"
	"coursemind/internal/coursestore"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// h5pTextKeys are the JSON fields that carry author-written text across
// H5P content types, in emission order. Everything else (layout,
// behaviour, media params) is noise for context purposes.
var h5pTextKeys = []string{
	"title", "introPage", "text", "content", "description",
	"question", "answer", "label", "feedback", "tip", "summary",
}

func isH5PTextKey(key string) bool {
	for _, k := range h5pTextKeys {
		if k == key {
			return true
		}
	}
	return false
}

// H5PExtractor salvages readable text from H5P interactive content blobs.
type H5PExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewH5PExtractor(store Store, cache *contentcache.Manager) *H5PExtractor {
	return &H5PExtractor{store: store, cache: cache}
}

func (e *H5PExtractor) Kind() models.SourceKind { return models.KindH5P }

func (e *H5PExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindH5P)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list h5p activities: %w", err)
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
	return Section{Title: "Interactive Content", Body: strings.TrimSpace(b.String())}, nil
}

func (e *H5PExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	h5p, err := e.store.H5PByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] h5p %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(h5p.ID)
	if entry, ok := e.cache.GetValid(models.KindH5P, key, h5p.TimeModified); ok {
		return entry.Payload
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(h5p.JSONContent), &parsed); err != nil {
		log.Printf("⚠️  [EXTRACT] h5p %d content is not valid JSON, skipping: %v", h5p.ID, err)
		return ""
	}

	seen := make(map[string]bool)
	var lines []string
	collectH5PText(parsed, seen, &lines)
	if len(lines) == 0 {
		return ""
	}

	text := "## " + h5p.Name + "\n" + strings.Join(lines, "\n")
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindH5P,
		Key:          key,
		Payload:      text,
		TimeModified: h5p.TimeModified,
	})
	return text
}

// collectH5PText walks the decoded JSON in document order, picking string
// values under known text keys. Duplicate strings are emitted once.
func collectH5PText(v interface{}, seen map[string]bool, out *[]string) {
	switch node := v.(type) {
	case map[string]interface{}:
		// Map iteration order is not stable, so text keys are visited from
		// a fixed list, then the remaining keys recurse in sorted order.
		for _, key := range h5pTextKeys {
			value, ok := node[key]
			if !ok {
				continue
			}
			if s, ok := value.(string); ok {
				clean := strings.TrimSpace(textutil.StripHTML(s))
				if clean != "" && !seen[clean] {
					seen[clean] = true
					*out = append(*out, textutil.Clamp(clean, fieldClamp))
				}
			}
		}
		rest := make([]string, 0, len(node))
		for key := range node {
			if !isH5PTextKey(key) {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			collectH5PText(node[key], seen, out)
		}
	case []interface{}:
		for _, item := range node {
			collectH5PText(item, seen, out)
		}
	}
}
