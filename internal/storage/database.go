package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
// The binary must be built with -tags sqlite_fts5 for the chunk search index.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
//
// projects, project_members, action_items and action_item_assignees belong to
// the surrounding application; only the columns the permission filter reads
// are declared here.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_by TEXT NOT NULL,
			deleted_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (project_id, user_id),
			FOREIGN KEY (project_id) REFERENCES projects(id)
		);`,
		`CREATE TABLE IF NOT EXISTS action_items (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			assigned_to TEXT,
			deleted_at DATETIME,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		);`,
		`CREATE TABLE IF NOT EXISTS action_item_assignees (
			action_item_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (action_item_id, user_id),
			FOREIGN KEY (action_item_id) REFERENCES action_items(id)
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			file_type TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			indexing_status TEXT,
			indexing_error TEXT,
			indexed_at DATETIME,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			deleted_at DATETIME,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		);`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE (file_id, chunk_index),
			FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_file ON document_chunks(file_id);`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_project ON document_chunks(project_id);`,
		// External-content FTS5 index over chunk content, kept in sync by
		// triggers so the repositories never touch it directly.
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
			content,
			content='document_chunks',
			content_rowid='rowid'
		);`,
		`CREATE TRIGGER IF NOT EXISTS chunk_fts_after_insert AFTER INSERT ON document_chunks BEGIN
			INSERT INTO chunk_fts(rowid, content) VALUES (new.rowid, new.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS chunk_fts_after_delete AFTER DELETE ON document_chunks BEGIN
			INSERT INTO chunk_fts(chunk_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS chunk_fts_after_update AFTER UPDATE ON document_chunks BEGIN
			INSERT INTO chunk_fts(chunk_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			INSERT INTO chunk_fts(rowid, content) VALUES (new.rowid, new.content);
		END;`,
		`CREATE TABLE IF NOT EXISTS ai_conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS ai_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			citations TEXT,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES ai_conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ai_messages_conversation ON ai_messages(conversation_id, created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
