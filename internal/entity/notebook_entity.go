package entity

import (
	"time"

	"github.com/google/uuid"
)

const DefaultNotebookTitle = "Untitled notebook"

type Notebook struct {
	Id        uuid.UUID
	Title     string
	ProjectId uuid.UUID
	UserId    uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

func (n *Notebook) HasDefaultTitle() bool {
	return n.Title == "" || n.Title == DefaultNotebookTitle
}
