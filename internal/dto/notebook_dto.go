package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateNotebookRequest struct {
	Title     string    `json:"title" validate:"max=255"`
	ProjectId uuid.UUID `json:"project_id" validate:"required"`
}

type CreateNotebookResponse struct {
	Id uuid.UUID `json:"id"`
}

type RenameNotebookRequest struct {
	Id    uuid.UUID `json:"-"`
	Title string    `json:"title" validate:"required,max=255"`
}

type RenameNotebookResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type NotebookResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	ProjectId uuid.UUID  `json:"project_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// GenerateTitleMessage is published after a notebook's entry completes.
type GenerateTitleMessage struct {
	NotebookId uuid.UUID `json:"notebook_id"`
	UserId     uuid.UUID `json:"user_id"`
	Prompt     string    `json:"prompt"`
}
