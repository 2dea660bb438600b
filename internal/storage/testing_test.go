package storage

import (
	"database/sql"
	"testing"
)

// newTestDB opens a migrated database in a temp directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *sql.DB, id, title, createdBy string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO projects (id, title, created_by) VALUES (?, ?, ?)",
		id, title, createdBy,
	)
	if err != nil {
		t.Fatalf("seedProject(%s) error = %v", id, err)
	}
}

func seedMember(t *testing.T, db *sql.DB, projectID, userID string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO project_members (project_id, user_id) VALUES (?, ?)",
		projectID, userID,
	)
	if err != nil {
		t.Fatalf("seedMember(%s, %s) error = %v", projectID, userID, err)
	}
}

func seedActionItem(t *testing.T, db *sql.DB, id, projectID, assignedTo string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO action_items (id, project_id, assigned_to) VALUES (?, ?, ?)",
		id, projectID, assignedTo,
	)
	if err != nil {
		t.Fatalf("seedActionItem(%s) error = %v", id, err)
	}
}

func seedFile(t *testing.T, db *sql.DB, id, projectID, status string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO files (id, project_id, storage_path, file_type, original_filename, indexing_status)
		 VALUES (?, ?, ?, 'text/plain', ?, ?)`,
		id, projectID, "/data/"+id, id+".txt", nullable(status),
	)
	if err != nil {
		t.Fatalf("seedFile(%s) error = %v", id, err)
	}
}

func seedChunk(t *testing.T, db *sql.DB, id, fileID, projectID string, index int, content string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO document_chunks (id, file_id, project_id, chunk_index, content, token_count, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, '{"filename":"doc.txt","fileType":"text/plain"}')`,
		id, fileID, projectID, index, content, len(content)/4,
	)
	if err != nil {
		t.Fatalf("seedChunk(%s) error = %v", id, err)
	}
}
