// internal/storage/project_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

const projectColumns = `id, user_id, name, description, status, created_at, updated_at`

func scanProject(scanner interface{ Scan(...any) error }) (*domain.Project, error) {
	var p domain.Project
	err := scanner.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("database error finding project: %w", err)
	}
	return &p, nil
}

// CreateProjectWithQuota creates a project for the given user, enforcing the
// credit/tier gate inside one transaction: pro tier always passes; free tier
// passes only with a positive credit balance, and exactly one credit is
// deducted as part of the same creation. On a failed gate no project row is
// written and ErrInsufficientCredits is returned.
func CreateProjectWithQuota(ctx context.Context, db *sql.DB, userID int64, name, description string) (*domain.Project, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin project creation: %w", err)
	}
	defer tx.Rollback()

	var tier string
	var credits *int64
	err = tx.QueryRowContext(ctx, `SELECT account_tier, credits FROM users WHERE id = ?`, userID).
		Scan(&tier, &credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error reading user quota: %w", err)
	}

	if tier != domain.TierPro {
		// nil credits on a free user means zero remaining
		if credits == nil || *credits <= 0 {
			return nil, ErrInsufficientCredits
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET credits = credits - 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, userID)
		if err != nil {
			return nil, fmt.Errorf("database error deducting credit: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO projects (user_id, name, description, status) VALUES (?, ?, ?, 'pending')`,
		userID, name, description)
	if err != nil {
		log.Printf("Storage: Failed to insert project '%s' for user %d: %v", name, userID, err)
		return nil, fmt.Errorf("database error creating project: %w", err)
	}
	projectID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve project ID after creation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project creation: %w", err)
	}

	return FindProjectByID(ctx, db, projectID)
}

// FindProjectByID retrieves a single project.
func FindProjectByID(ctx context.Context, db *sql.DB, projectID int64) (*domain.Project, error) {
	row := db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? LIMIT 1`, projectID)
	return scanProject(row)
}

// ListProjectsByUser retrieves all projects owned by a user, newest first.
func ListProjectsByUser(ctx context.Context, db *sql.DB, userID int64) ([]*domain.Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database error listing projects: %w", err)
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus sets the project's processing status.
func UpdateProjectStatus(ctx context.Context, db *sql.DB, projectID int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, projectID)
	if err != nil {
		log.Printf("Storage: Failed to update status for project %d: %v", projectID, err)
		return fmt.Errorf("database error updating project status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check project status update: %w", err)
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject removes a project. Files, analysis results and logs cascade.
func DeleteProject(ctx context.Context, db *sql.DB, projectID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("database error deleting project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check project deletion: %w", err)
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}
