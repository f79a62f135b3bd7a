// internal/storage/analysis_repo.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

func marshalStringList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalStringList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("Storage: ignoring malformed string list column: %v", err)
		return []string{}
	}
	return list
}

// UpsertAnalysisResult creates the analysis result for a project, or replaces
// its contents in place if one already exists. Results are never versioned.
func UpsertAnalysisResult(ctx context.Context, db *sql.DB, projectID int64, astData json.RawMessage, hooks, imports, dependencies []string, schema json.RawMessage) (*domain.AnalysisResult, error) {
	var astCol, schemaCol any
	if len(astData) > 0 {
		astCol = string(astData)
	}
	if len(schema) > 0 {
		schemaCol = string(schema)
	}

	sqlStatement := `
	INSERT INTO analysis_results (project_id, ast_data, hooks, imports, dependencies, schema_data)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_id) DO UPDATE SET
		ast_data = excluded.ast_data,
		hooks = excluded.hooks,
		imports = excluded.imports,
		dependencies = excluded.dependencies,
		schema_data = excluded.schema_data,
		updated_at = CURRENT_TIMESTAMP`
	_, err := db.ExecContext(ctx, sqlStatement, projectID, astCol,
		marshalStringList(hooks), marshalStringList(imports), marshalStringList(dependencies), schemaCol)
	if err != nil {
		log.Printf("Storage: Failed to upsert analysis result for project %d: %v", projectID, err)
		return nil, fmt.Errorf("database error saving analysis result: %w", err)
	}
	return FindAnalysisResult(ctx, db, projectID)
}

// FindAnalysisResult retrieves the analysis result for a project.
// Returns ErrNoAnalysis when none has been created yet.
func FindAnalysisResult(ctx context.Context, db *sql.DB, projectID int64) (*domain.AnalysisResult, error) {
	var r domain.AnalysisResult
	var astData, schema sql.NullString
	var hooks, imports, dependencies string

	row := db.QueryRowContext(ctx,
		`SELECT id, project_id, ast_data, hooks, imports, dependencies, schema_data, created_at, updated_at
		 FROM analysis_results WHERE project_id = ? LIMIT 1`, projectID)
	err := row.Scan(&r.ID, &r.ProjectID, &astData, &hooks, &imports, &dependencies, &schema, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAnalysis
		}
		return nil, fmt.Errorf("database error finding analysis result: %w", err)
	}

	if astData.Valid {
		r.ASTData = json.RawMessage(astData.String)
	}
	if schema.Valid {
		r.Schema = json.RawMessage(schema.String)
	}
	r.Hooks = unmarshalStringList(hooks)
	r.Imports = unmarshalStringList(imports)
	r.Dependencies = unmarshalStringList(dependencies)
	return &r, nil
}

// UpdateAnalysisSchema replaces only the stored schema object.
func UpdateAnalysisSchema(ctx context.Context, db *sql.DB, projectID int64, schema json.RawMessage) error {
	result, err := db.ExecContext(ctx,
		`UPDATE analysis_results SET schema_data = ?, updated_at = CURRENT_TIMESTAMP WHERE project_id = ?`,
		string(schema), projectID)
	if err != nil {
		return fmt.Errorf("database error updating schema: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check schema update: %w", err)
	}
	if rows == 0 {
		return ErrNoAnalysis
	}
	return nil
}
