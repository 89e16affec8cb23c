package dto

import (
	"time"

	"ai-sqlnotebook-be/internal/entity"

	"github.com/google/uuid"
)

type SubmitQueryRequest struct {
	NotebookId *uuid.UUID `json:"notebook_id"`
	ProjectId  uuid.UUID  `json:"project_id" validate:"required"`
	Prompt     string     `json:"prompt" validate:"required,max=8000"`
}

type ChunkResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type OutputResponse struct {
	Version int             `json:"version"`
	Chunks  []ChunkResponse `json:"chunks"`
}

// NotebookEntryResponse is the persisted entry shape, also pushed over the websocket.
type NotebookEntryResponse struct {
	Id         uuid.UUID        `json:"id"`
	CreatedAt  time.Time        `json:"createdAt"`
	NotebookId uuid.UUID        `json:"notebookId"`
	UserPrompt string           `json:"userPrompt"`
	SqlQueries []string         `json:"sqlQueries"`
	Outputs    []OutputResponse `json:"outputs"`
}

func NewNotebookEntryResponse(e *entity.NotebookEntry) *NotebookEntryResponse {
	if e == nil {
		return nil
	}
	sqlQueries := make([]string, len(e.SqlQueries))
	copy(sqlQueries, e.SqlQueries)

	outputs := make([]OutputResponse, len(e.Outputs))
	for i, o := range e.Outputs {
		chunks := make([]ChunkResponse, len(o.Chunks))
		for j, c := range o.Chunks {
			chunks[j] = ChunkResponse{Type: c.Type, Content: c.Content}
		}
		outputs[i] = OutputResponse{Version: o.Version, Chunks: chunks}
	}

	return &NotebookEntryResponse{
		Id:         e.Id,
		CreatedAt:  e.CreatedAt,
		NotebookId: e.NotebookId,
		UserPrompt: e.UserPrompt,
		SqlQueries: sqlQueries,
		Outputs:    outputs,
	}
}

// Notice is a user-visible notification about a failed operation.
type Notice struct {
	Level      string     `json:"level"` // "error" | "warning" | "info"
	Message    string     `json:"message"`
	NotebookId *uuid.UUID `json:"notebook_id,omitempty"`
	EntryId    *uuid.UUID `json:"entry_id,omitempty"`
}

type NotebookTitleUpdate struct {
	NotebookId uuid.UUID `json:"notebook_id"`
	Title      string    `json:"title"`
}
