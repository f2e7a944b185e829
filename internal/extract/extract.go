// Package extract turns course activities into bounded plain-text sections,
// one extractor per source kind. Extractors read the domain store, write
// through the content cache, and never fail the caller: the assembler
// absorbs their errors per source.
package extract

import (
	"context"
	"strconv"

	"coursemind/internal/contentcache"
	"coursemind/internal/coursestore"
	"coursemind/internal/models"
)

// fieldClamp bounds secondary free-text fields (intros, definitions, answer
// feedback) so one verbose activity cannot crowd out the rest.
const fieldClamp = 2000

// Store is the slice of the domain read interface extractors consume.
// *coursestore.Store satisfies it; tests substitute fakes.
type Store interface {
	Modules(ctx context.Context, courseID int64, kind models.SourceKind) ([]coursestore.Module, error)
	PageByID(ctx context.Context, id int64) (*coursestore.Page, error)
	GlossaryByID(ctx context.Context, id int64) (*coursestore.Glossary, error)
	GlossaryEntries(ctx context.Context, glossaryID int64) ([]coursestore.GlossaryEntry, error)
	H5PByID(ctx context.Context, id int64) (*coursestore.H5PActivity, error)
	ForumByID(ctx context.Context, id int64) (*coursestore.Forum, error)
	ForumDiscussions(ctx context.Context, forumID int64) ([]coursestore.Discussion, error)
	ForumPosts(ctx context.Context, discussionID int64) ([]coursestore.Post, error)
	QuizByID(ctx context.Context, id int64) (*coursestore.Quiz, error)
	QuizQuestions(ctx context.Context, quizID int64) ([]coursestore.Question, error)
	QuizAnswers(ctx context.Context, questionID int64) ([]coursestore.Answer, error)
	BookByID(ctx context.Context, id int64) (*coursestore.Book, error)
	BookChapters(ctx context.Context, bookID int64) ([]coursestore.Chapter, error)
	AssignmentByID(ctx context.Context, id int64) (*coursestore.Assignment, error)
	LabelByID(ctx context.Context, id int64) (*coursestore.Label, error)
	URLByID(ctx context.Context, id int64) (*coursestore.URLActivity, error)
	LessonByID(ctx context.Context, id int64) (*coursestore.Lesson, error)
	LessonPages(ctx context.Context, lessonID int64) ([]coursestore.LessonPage, error)
	LessonAnswers(ctx context.Context, pageID int64) ([]coursestore.LessonAnswer, error)
	FilesByModule(ctx context.Context, moduleID int64) ([]coursestore.StoredFile, error)
}

// UploadCandidate is a document registered for potential upload to a
// provider when file-upload mode is on.
type UploadCandidate struct {
	Filename    string
	MimeType    string
	ContentHash string
	Text        string
	Data        []byte
}

// Request carries the per-build inputs shared by every extractor. Uploads
// is non-nil only when the caller wants documents registered for upload.
type Request struct {
	CourseID int64
	Config   models.SourceConfig
	Uploads  *[]UploadCandidate
}

// Section is one titled block of assembled context.
type Section struct {
	Title string
	Body  string
}

// Empty reports whether the section carries no content.
func (s Section) Empty() bool {
	return s.Body == ""
}

// Extractor produces the section for one source kind.
type Extractor interface {
	Kind() models.SourceKind
	Extract(ctx context.Context, req Request) (Section, error)
}

// Deps is everything the built-in extractors share.
type Deps struct {
	Store    Store
	Cache    *contentcache.Manager
	DocCache DocCache
	DocChain DocChain
}

// All returns the course-content extractors in canonical section order.
// External links and the aggregate are handled by the assembler itself.
func All(deps Deps) []Extractor {
	return []Extractor{
		NewPageExtractor(deps.Store, deps.Cache),
		NewGlossaryExtractor(deps.Store, deps.Cache),
		NewH5PExtractor(deps.Store, deps.Cache),
		NewDocumentExtractor(deps.Store, deps.DocCache, deps.DocChain),
		NewForumExtractor(deps.Store, deps.Cache),
		NewQuizExtractor(deps.Store, deps.Cache),
		NewBookExtractor(deps.Store, deps.Cache),
		NewAssignmentExtractor(deps.Store, deps.Cache),
		NewLabelExtractor(deps.Store, deps.Cache),
		NewURLExtractor(deps.Store, deps.Cache),
		NewLessonExtractor(deps.Store, deps.Cache),
	}
}

// activityKey is the cache key for one activity instance.
func activityKey(instanceID int64) string {
	return strconv.FormatInt(instanceID, 10)
}

// wantModule applies visibility and the inclusion predicate.
func wantModule(cfg models.SourceConfig, m coursestore.Module) bool {
	if !m.Visible {
		return false
	}
	return cfg.Includes(m.Kind, m.ID)
}
