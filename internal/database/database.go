// Package database opens the durable row store and owns its schema.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
}

// New opens (or creates) the SQLite database at the given path.
// ":memory:" is accepted for tests.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; keep the pool small and long-lived.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ SQLite database connected")

	return &DB{db}, nil
}

// Initialize creates all required tables.
func (db *DB) Initialize() error {
	log.Println("🔍 Checking database schema...")

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Println("✅ Database initialized successfully")
	return nil
}

var schema = []string{
	// Course structure. course_modules is the ordered spine: one row per
	// activity, pointing at the kind-specific instance table.
	`CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY,
		fullname TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS course_modules (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		instance_id INTEGER NOT NULL,
		visible INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_course_modules_course ON course_modules(course_id, kind, sort_order)`,

	// Kind-specific instance tables.
	`CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS glossaries (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS glossary_entries (
		id INTEGER PRIMARY KEY,
		glossary_id INTEGER NOT NULL,
		concept TEXT NOT NULL,
		definition TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS h5p_activities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		json_content TEXT NOT NULL DEFAULT '{}',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS forums (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		intro TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS forum_discussions (
		id INTEGER PRIMARY KEY,
		forum_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS forum_posts (
		id INTEGER PRIMARY KEY,
		discussion_id INTEGER NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		intro TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_questions (
		id INTEGER PRIMARY KEY,
		quiz_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		questiontext TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_answers (
		id INTEGER PRIMARY KEY,
		question_id INTEGER NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL DEFAULT '',
		fraction REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS book_chapters (
		id INTEGER PRIMARY KEY,
		book_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		pagenum INTEGER NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		intro TEXT NOT NULL DEFAULT '',
		duedate INTEGER NOT NULL DEFAULT 0,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY,
		intro TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS url_activities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		externalurl TEXT NOT NULL DEFAULT '',
		intro TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_pages (
		id INTEGER PRIMARY KEY,
		lesson_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		contents TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_answers (
		id INTEGER PRIMARY KEY,
		page_id INTEGER NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT ''
	)`,

	// Files attached to activities (the file-storage collaborator).
	`CREATE TABLE IF NOT EXISTS stored_files (
		id INTEGER PRIMARY KEY,
		module_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		timemodified INTEGER NOT NULL DEFAULT 0,
		data BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_files_module ON stored_files(module_id)`,

	// This system's own tables.
	`CREATE TABLE IF NOT EXISTS document_cache (
		content_hash TEXT PRIMARY KEY,
		extracted_text TEXT NOT NULL,
		stored_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS link_records (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		url_hash TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		last_fetch INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		timemodified INTEGER NOT NULL DEFAULT 0,
		UNIQUE(owner_id, url_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS uploaded_files (
		content_hash TEXT NOT NULL,
		provider TEXT NOT NULL,
		remote_file_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (content_hash, provider)
	)`,
}
