package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutputDocument is the persisted JSON shape of one output version.
type OutputDocument struct {
	Version int             `json:"version"`
	Chunks  []ChunkDocument `json:"chunks"`
}

type ChunkDocument struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type NotebookEntry struct {
	Id         uuid.UUID                           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NotebookId uuid.UUID                           `gorm:"type:uuid;not null;index:idx_notebook_entries_notebook_created,priority:1"`
	UserId     uuid.UUID                           `gorm:"type:uuid;not null;index"`
	UserPrompt string                              `gorm:"type:text;not null"`
	SqlQueries datatypes.JSONSlice[string]         `gorm:"type:jsonb;not null;default:'[]'"`
	Outputs    datatypes.JSONSlice[OutputDocument] `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt  time.Time                           `gorm:"autoCreateTime;index:idx_notebook_entries_notebook_created,priority:2"`
	UpdatedAt  time.Time                           `gorm:"autoUpdateTime"`
}

func (NotebookEntry) TableName() string {
	return "notebook_entries"
}
