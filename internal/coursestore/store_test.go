package coursestore

import (
	"context"
	"errors"
	"testing"

	"coursemind/internal/database"
	"coursemind/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO courses (id, fullname, timemodified) VALUES (?, ?, ?)`, []any{1, "Intro Course", 1000}},
		// Deliberately inserted out of course order to exercise sort_order.
		{`INSERT INTO course_modules (id, course_id, kind, instance_id, visible, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{11, 1, "page", 101, 1, 2}},
		{`INSERT INTO course_modules (id, course_id, kind, instance_id, visible, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{10, 1, "page", 100, 1, 1}},
		{`INSERT INTO course_modules (id, course_id, kind, instance_id, visible, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{12, 1, "page", 102, 0, 3}},
		{`INSERT INTO course_modules (id, course_id, kind, instance_id, visible, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{20, 1, "quiz", 200, 1, 4}},
		{`INSERT INTO pages (id, name, content, timemodified) VALUES (?, ?, ?, ?)`,
			[]any{100, "Intro", "<p>Hello world</p>", 1100}},
		{`INSERT INTO quiz_questions (id, quiz_id, name, questiontext, sort_order) VALUES (?, ?, ?, ?, ?)`,
			[]any{2, 200, "Q2", "Second question", 2}},
		{`INSERT INTO quiz_questions (id, quiz_id, name, questiontext, sort_order) VALUES (?, ?, ?, ?, ?)`,
			[]any{1, 200, "Q1", "First question", 1}},
		{`INSERT INTO book_chapters (id, book_id, title, content, pagenum, hidden) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{2, 300, "Chapter Two", "body two", 2, 1}},
		{`INSERT INTO book_chapters (id, book_id, title, content, pagenum, hidden) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{1, 300, "Chapter One", "body one", 1, 0}},
		{`INSERT INTO stored_files (id, module_id, filename, mime_type, content_hash, timemodified, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{1, 10, "notes.pdf", "application/pdf", "hash-1", 1200, []byte("%PDF-bytes")}},
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt.query, stmt.args...); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	return New(db.DB)
}

// TestModulesOrderedBySortOrder verifies modules come back in course order
// with hidden ones included for the caller to filter.
func TestModulesOrderedBySortOrder(t *testing.T) {
	store := newTestStore(t)

	mods, err := store.Modules(context.Background(), 1, models.KindPage)
	if err != nil {
		t.Fatalf("Modules failed: %v", err)
	}
	if len(mods) != 3 {
		t.Fatalf("got %d modules, want 3", len(mods))
	}
	if mods[0].ID != 10 || mods[1].ID != 11 || mods[2].ID != 12 {
		t.Errorf("order = %d,%d,%d", mods[0].ID, mods[1].ID, mods[2].ID)
	}
	if !mods[0].Visible || mods[2].Visible {
		t.Error("visibility flags wrong")
	}
	if mods[0].InstanceID != 100 {
		t.Errorf("instance = %d", mods[0].InstanceID)
	}
}

// TestPageByID verifies the single-row load and the not-found sentinel.
func TestPageByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	page, err := store.PageByID(ctx, 100)
	if err != nil {
		t.Fatalf("PageByID failed: %v", err)
	}
	if page.Name != "Intro" || page.Content != "<p>Hello world</p>" {
		t.Errorf("page = %+v", page)
	}
	if page.TimeModified.Unix() != 1100 {
		t.Errorf("timemodified = %v", page.TimeModified)
	}

	if _, err := store.PageByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing page err = %v, want ErrNotFound", err)
	}
}

// TestQuizQuestionsOrdered verifies question ordering by sort_order, not
// insertion or id order alone.
func TestQuizQuestionsOrdered(t *testing.T) {
	store := newTestStore(t)

	questions, err := store.QuizQuestions(context.Background(), 200)
	if err != nil {
		t.Fatalf("QuizQuestions failed: %v", err)
	}
	if len(questions) != 2 || questions[0].Name != "Q1" || questions[1].Name != "Q2" {
		t.Errorf("questions = %+v", questions)
	}
}

// TestBookChaptersPageOrder verifies chapter ordering and the hidden flag.
func TestBookChaptersPageOrder(t *testing.T) {
	store := newTestStore(t)

	chapters, err := store.BookChapters(context.Background(), 300)
	if err != nil {
		t.Fatalf("BookChapters failed: %v", err)
	}
	if len(chapters) != 2 || chapters[0].Title != "Chapter One" {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[0].Hidden || !chapters[1].Hidden {
		t.Error("hidden flags wrong")
	}
}

// TestFilesByModuleLazyRead verifies listing stays metadata-only and bytes
// load on demand.
func TestFilesByModuleLazyRead(t *testing.T) {
	store := newTestStore(t)

	files, err := store.FilesByModule(context.Background(), 10)
	if err != nil {
		t.Fatalf("FilesByModule failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	file := files[0]
	if file.Filename != "notes.pdf" || file.ContentHash != "hash-1" {
		t.Errorf("file = %+v", file)
	}

	data, err := file.ReadBytes()
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if string(data) != "%PDF-bytes" {
		t.Errorf("data = %q", data)
	}
}
