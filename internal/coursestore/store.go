// Package coursestore reads course structure and activity content from the
// row store. It is the domain-content collaborator: extractors consume it,
// nothing in it knows about caching or providers.
package coursestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursemind/internal/models"
)

// Store is the SQL-backed implementation of the domain read interface.
type Store struct {
	db *sql.DB
}

// New creates a store over an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Course is the top-level container activities belong to.
type Course struct {
	ID           int64
	FullName     string
	TimeModified time.Time
}

// Module is one activity slot in a course, in course order.
type Module struct {
	ID         int64
	CourseID   int64
	Kind       models.SourceKind
	InstanceID int64
	Visible    bool
	SortOrder  int
}

// Page is a text page activity.
type Page struct {
	ID           int64
	Name         string
	Content      string
	TimeModified time.Time
}

// Glossary is a glossary activity; entries are fetched separately.
type Glossary struct {
	ID           int64
	Name         string
	TimeModified time.Time
}

// GlossaryEntry is one concept/definition pair.
type GlossaryEntry struct {
	ID           int64
	Concept      string
	Definition   string
	TimeModified time.Time
}

// H5PActivity stores interactive content as a JSON blob.
type H5PActivity struct {
	ID           int64
	Name         string
	JSONContent  string
	TimeModified time.Time
}

// Forum groups discussions; Discussion groups posts.
type Forum struct {
	ID           int64
	Name         string
	Intro        string
	TimeModified time.Time
}

type Discussion struct {
	ID   int64
	Name string
}

type Post struct {
	ID      int64
	Subject string
	Message string
}

// Quiz groups questions; each question carries its answers.
type Quiz struct {
	ID           int64
	Name         string
	Intro        string
	TimeModified time.Time
}

type Question struct {
	ID           int64
	Name         string
	QuestionText string
}

type Answer struct {
	ID       int64
	Answer   string
	Feedback string
	Fraction float64
}

// Book groups ordered chapters.
type Book struct {
	ID           int64
	Name         string
	TimeModified time.Time
}

type Chapter struct {
	ID      int64
	Title   string
	Content string
	PageNum int
	Hidden  bool
}

// Assignment is a task description with a due date.
type Assignment struct {
	ID           int64
	Name         string
	Intro        string
	DueDate      time.Time
	TimeModified time.Time
}

// Label is free-standing text placed on the course page.
type Label struct {
	ID           int64
	Intro        string
	TimeModified time.Time
}

// URLActivity is a configured external URL with a description.
type URLActivity struct {
	ID           int64
	Name         string
	ExternalURL  string
	Intro        string
	TimeModified time.Time
}

// Lesson groups ordered pages; each page carries its answer options.
type Lesson struct {
	ID           int64
	Name         string
	TimeModified time.Time
}

type LessonPage struct {
	ID       int64
	Title    string
	Contents string
}

type LessonAnswer struct {
	ID       int64
	Answer   string
	Response string
}

// StoredFile is one binary file attached to an activity. Data is loaded
// lazily via ReadBytes so listing attachments stays cheap.
type StoredFile struct {
	ID           int64
	Filename     string
	MimeType     string
	ContentHash  string
	TimeModified time.Time
	read         func() ([]byte, error)
}

// ReadBytes loads the file payload.
func (f *StoredFile) ReadBytes() ([]byte, error) {
	if f.read == nil {
		return nil, fmt.Errorf("file %s has no reader", f.Filename)
	}
	return f.read()
}

// Course returns one course by ID.
func (s *Store) Course(ctx context.Context, id int64) (*Course, error) {
	var c Course
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fullname, timemodified FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.FullName, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course %d: %w", id, err)
	}
	c.TimeModified = time.Unix(tm, 0)
	return &c, nil
}

// Modules returns the activities of one kind in stable course order,
// including hidden ones; callers apply visibility.
func (s *Store) Modules(ctx context.Context, courseID int64, kind models.SourceKind) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, kind, instance_id, visible, sort_order
		 FROM course_modules WHERE course_id = ? AND kind = ? ORDER BY sort_order, id`,
		courseID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s modules: %w", kind, err)
	}
	defer rows.Close()

	var mods []Module
	for rows.Next() {
		var m Module
		var visible int
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Kind, &m.InstanceID, &visible, &m.SortOrder); err != nil {
			return nil, err
		}
		m.Visible = visible != 0
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// PageByID returns one page activity.
func (s *Store) PageByID(ctx context.Context, id int64) (*Page, error) {
	var p Page
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, timemodified FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Content, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page %d: %w", id, err)
	}
	p.TimeModified = time.Unix(tm, 0)
	return &p, nil
}

// GlossaryByID returns one glossary activity.
func (s *Store) GlossaryByID(ctx context.Context, id int64) (*Glossary, error) {
	var g Glossary
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timemodified FROM glossaries WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load glossary %d: %w", id, err)
	}
	g.TimeModified = time.Unix(tm, 0)
	return &g, nil
}

// GlossaryEntries returns a glossary's entries in stored order.
func (s *Store) GlossaryEntries(ctx context.Context, glossaryID int64) ([]GlossaryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, concept, definition, timemodified FROM glossary_entries WHERE glossary_id = ? ORDER BY id`,
		glossaryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list glossary entries: %w", err)
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		var tm int64
		if err := rows.Scan(&e.ID, &e.Concept, &e.Definition, &tm); err != nil {
			return nil, err
		}
		e.TimeModified = time.Unix(tm, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// H5PByID returns one H5P activity.
func (s *Store) H5PByID(ctx context.Context, id int64) (*H5PActivity, error) {
	var h H5PActivity
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, json_content, timemodified FROM h5p_activities WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.JSONContent, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load h5p %d: %w", id, err)
	}
	h.TimeModified = time.Unix(tm, 0)
	return &h, nil
}

// ForumByID returns one forum activity.
func (s *Store) ForumByID(ctx context.Context, id int64) (*Forum, error) {
	var f Forum
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, intro, timemodified FROM forums WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Intro, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load forum %d: %w", id, err)
	}
	f.TimeModified = time.Unix(tm, 0)
	return &f, nil
}

// ForumDiscussions returns a forum's discussions in stored order.
func (s *Store) ForumDiscussions(ctx context.Context, forumID int64) ([]Discussion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM forum_discussions WHERE forum_id = ? ORDER BY id`, forumID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}
	defer rows.Close()

	var discussions []Discussion
	for rows.Next() {
		var d Discussion
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		discussions = append(discussions, d)
	}
	return discussions, rows.Err()
}

// ForumPosts returns a discussion's posts in creation order.
func (s *Store) ForumPosts(ctx context.Context, discussionID int64) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, message FROM forum_posts WHERE discussion_id = ? ORDER BY created, id`, discussionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Subject, &p.Message); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// QuizByID returns one quiz activity.
func (s *Store) QuizByID(ctx context.Context, id int64) (*Quiz, error) {
	var q Quiz
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, intro, timemodified FROM quizzes WHERE id = ?`, id,
	).Scan(&q.ID, &q.Name, &q.Intro, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz %d: %w", id, err)
	}
	q.TimeModified = time.Unix(tm, 0)
	return &q, nil
}

// QuizQuestions returns a quiz's questions in their stored order.
func (s *Store) QuizQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, questiontext FROM quiz_questions WHERE quiz_id = ? ORDER BY sort_order, id`, quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Name, &q.QuestionText); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuizAnswers returns a question's answers in stored order.
func (s *Store) QuizAnswers(ctx context.Context, questionID int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, answer, feedback, fraction FROM quiz_answers WHERE question_id = ? ORDER BY id`, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.Answer, &a.Feedback, &a.Fraction); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// BookByID returns one book activity.
func (s *Store) BookByID(ctx context.Context, id int64) (*Book, error) {
	var b Book
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timemodified FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", id, err)
	}
	b.TimeModified = time.Unix(tm, 0)
	return &b, nil
}

// BookChapters returns a book's chapters in page order, hidden included;
// callers decide whether hidden chapters are skipped.
func (s *Store) BookChapters(ctx context.Context, bookID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, pagenum, hidden FROM book_chapters WHERE book_id = ? ORDER BY pagenum, id`, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var c Chapter
		var hidden int
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &c.PageNum, &hidden); err != nil {
			return nil, err
		}
		c.Hidden = hidden != 0
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// AssignmentByID returns one assignment activity.
func (s *Store) AssignmentByID(ctx context.Context, id int64) (*Assignment, error) {
	var a Assignment
	var due, tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, intro, duedate, timemodified FROM assignments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Intro, &due, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment %d: %w", id, err)
	}
	if due > 0 {
		a.DueDate = time.Unix(due, 0)
	}
	a.TimeModified = time.Unix(tm, 0)
	return &a, nil
}

// LabelByID returns one label activity.
func (s *Store) LabelByID(ctx context.Context, id int64) (*Label, error) {
	var l Label
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, intro, timemodified FROM labels WHERE id = ?`, id,
	).Scan(&l.ID, &l.Intro, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load label %d: %w", id, err)
	}
	l.TimeModified = time.Unix(tm, 0)
	return &l, nil
}

// URLByID returns one URL activity.
func (s *Store) URLByID(ctx context.Context, id int64) (*URLActivity, error) {
	var u URLActivity
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, externalurl, intro, timemodified FROM url_activities WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.ExternalURL, &u.Intro, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load url %d: %w", id, err)
	}
	u.TimeModified = time.Unix(tm, 0)
	return &u, nil
}

// LessonByID returns one lesson activity.
func (s *Store) LessonByID(ctx context.Context, id int64) (*Lesson, error) {
	var l Lesson
	var tm int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timemodified FROM lessons WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &tm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson %d: %w", id, err)
	}
	l.TimeModified = time.Unix(tm, 0)
	return &l, nil
}

// LessonPages returns a lesson's pages in their stored order.
func (s *Store) LessonPages(ctx context.Context, lessonID int64) ([]LessonPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, contents FROM lesson_pages WHERE lesson_id = ? ORDER BY sort_order, id`, lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson pages: %w", err)
	}
	defer rows.Close()

	var pages []LessonPage
	for rows.Next() {
		var p LessonPage
		if err := rows.Scan(&p.ID, &p.Title, &p.Contents); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// LessonAnswers returns a lesson page's answer options in stored order.
func (s *Store) LessonAnswers(ctx context.Context, pageID int64) ([]LessonAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, answer, response FROM lesson_answers WHERE page_id = ? ORDER BY id`, pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson answers: %w", err)
	}
	defer rows.Close()

	var answers []LessonAnswer
	for rows.Next() {
		var a LessonAnswer
		if err := rows.Scan(&a.ID, &a.Answer, &a.Response); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// FilesByModule returns the binary files attached to an activity. Payloads
// load lazily through ReadBytes.
func (s *Store) FilesByModule(ctx context.Context, moduleID int64) ([]StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, mime_type, content_hash, timemodified FROM stored_files WHERE module_id = ? ORDER BY id`,
		moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []StoredFile
	for rows.Next() {
		var f StoredFile
		var tm int64
		if err := rows.Scan(&f.ID, &f.Filename, &f.MimeType, &f.ContentHash, &tm); err != nil {
			return nil, err
		}
		f.TimeModified = time.Unix(tm, 0)
		fileID := f.ID
		f.read = func() ([]byte, error) {
			var data []byte
			err := s.db.QueryRowContext(ctx, `SELECT data FROM stored_files WHERE id = ?`, fileID).Scan(&data)
			if err != nil {
				return nil, fmt.Errorf("failed to read file %d: %w", fileID, err)
			}
			return data, nil
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
