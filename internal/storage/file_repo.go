// internal/storage/file_repo.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// CreateProjectFile persists one uploaded file tuple.
func CreateProjectFile(ctx context.Context, db *sql.DB, projectID int64, filename, content, path, fileType string) (*domain.ProjectFile, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO project_files (project_id, filename, content, path, file_type) VALUES (?, ?, ?, ?, ?)`,
		projectID, filename, content, path, fileType)
	if err != nil {
		log.Printf("Storage: Failed to insert file '%s' for project %d: %v", filename, projectID, err)
		return nil, fmt.Errorf("database error creating project file: %w", err)
	}
	fileID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve file ID after creation: %w", err)
	}

	var f domain.ProjectFile
	row := db.QueryRowContext(ctx,
		`SELECT id, project_id, filename, content, path, file_type, created_at FROM project_files WHERE id = ?`, fileID)
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.Content, &f.Path, &f.FileType, &f.CreatedAt); err != nil {
		return nil, fmt.Errorf("database error reading back project file: %w", err)
	}
	return &f, nil
}

// ListProjectFiles retrieves all files for a project in upload order.
func ListProjectFiles(ctx context.Context, db *sql.DB, projectID int64) ([]*domain.ProjectFile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, filename, content, path, file_type, created_at
		 FROM project_files WHERE project_id = ? ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("database error listing project files: %w", err)
	}
	defer rows.Close()

	files := []*domain.ProjectFile{}
	for rows.Next() {
		var f domain.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.Content, &f.Path, &f.FileType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("database error scanning project file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// CountProjectFiles returns the number of files stored for a project.
func CountProjectFiles(ctx context.Context, db *sql.DB, projectID int64) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_files WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting project files: %w", err)
	}
	return count, nil
}
