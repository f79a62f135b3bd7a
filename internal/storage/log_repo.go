// internal/storage/log_repo.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// AppendLog writes one append-only audit entry. projectID may be nil for
// account-level events. Metadata is any JSON-serializable object.
func AppendLog(ctx context.Context, db *sql.DB, projectID *int64, level, message string, metadata any) error {
	var metaCol any
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("Storage: dropping unserializable log metadata: %v", err)
		} else {
			metaCol = string(encoded)
		}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO logs (project_id, level, message, metadata) VALUES (?, ?, ?, ?)`,
		projectID, level, message, metaCol)
	if err != nil {
		log.Printf("Storage: Failed to append log entry '%s': %v", message, err)
		return fmt.Errorf("database error appending log: %w", err)
	}
	return nil
}

// ListLogsByProject retrieves a page of a project's audit trail in reverse
// chronological order.
func ListLogsByProject(ctx context.Context, db *sql.DB, projectID int64, limit, offset int) ([]*domain.Log, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, level, message, metadata, created_at
		 FROM logs WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database error listing logs: %w", err)
	}
	defer rows.Close()

	entries := []*domain.Log{}
	for rows.Next() {
		var entry domain.Log
		var metadata sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.Level, &entry.Message, &metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("database error scanning log: %w", err)
		}
		if metadata.Valid {
			entry.Metadata = json.RawMessage(metadata.String)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CountLogsByLevel returns how many entries a project has at one level.
func CountLogsByLevel(ctx context.Context, db *sql.DB, projectID int64, level string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM logs WHERE project_id = ? AND level = ?`, projectID, level).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting logs: %w", err)
	}
	return count, nil
}
