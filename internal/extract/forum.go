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

// ForumExtractor renders forums as discussion threads with their posts in
// creation order.
type ForumExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewForumExtractor(store Store, cache *contentcache.Manager) *ForumExtractor {
	return &ForumExtractor{store: store, cache: cache}
}

func (e *ForumExtractor) Kind() models.SourceKind { return models.KindForum }

func (e *ForumExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindForum)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list forums: %w", err)
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
	return Section{Title: "Forums", Body: strings.TrimSpace(b.String())}, nil
}

func (e *ForumExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	forum, err := e.store.ForumByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] forum %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(forum.ID)
	if entry, ok := e.cache.GetValid(models.KindForum, key, forum.TimeModified); ok {
		return entry.Payload
	}

	var b strings.Builder
	b.WriteString("## " + forum.Name + "\n")
	if intro := strings.TrimSpace(textutil.StripHTML(forum.Intro)); intro != "" {
		b.WriteString(textutil.Clamp(intro, fieldClamp) + "\n")
	}

	discussions, err := e.store.ForumDiscussions(ctx, forum.ID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] forum %d discussions unreadable, skipping: %v", forum.ID, err)
		return ""
	}

	wrotePosts := false
	for _, discussion := range discussions {
		posts, err := e.store.ForumPosts(ctx, discussion.ID)
		if err != nil {
			log.Printf("⚠️  [EXTRACT] discussion %d posts unreadable, skipping: %v", discussion.ID, err)
			continue
		}
		if len(posts) == 0 {
			continue
		}

		b.WriteString("### " + discussion.Name + "\n")
		for _, post := range posts {
			message := strings.TrimSpace(textutil.StripHTML(post.Message))
			if message == "" {
				continue
			}
			line := "- "
			if post.Subject != "" {
				line += post.Subject + ": "
			}
			b.WriteString(line + textutil.Clamp(message, fieldClamp) + "\n")
			wrotePosts = true
		}
	}
	if !wrotePosts {
		return ""
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindForum,
		Key:          key,
		Payload:      text,
		TimeModified: forum.TimeModified,
	})
	return text
}
