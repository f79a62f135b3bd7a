// api/models/project_models.go
package models

import "encoding/json"

// --- Project/File Request Structs ---

// CreateProjectRequest defines the structure for the project creation body
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// FileUpload represents a single uploaded source file tuple
type FileUpload struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Path     string `json:"path"`
	Type     string `json:"type" binding:"required"` // js | jsx | ts | tsx
}

// UploadFilesRequest defines the structure for the file ingestion body
type UploadFilesRequest struct {
	Files []FileUpload `json:"files" binding:"required,min=1,dive"`
}

// --- AI Request Structs ---

// ModifySchemaRequest defines the structure for the schema-mutation command body
type ModifySchemaRequest struct {
	ProjectID   int64           `json:"projectId" binding:"required"`
	Instruction string          `json:"instruction" binding:"required"`
	Schema      json.RawMessage `json:"schema"`
	RunPipeline bool            `json:"runPipeline"`
}
