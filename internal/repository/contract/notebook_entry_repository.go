package contract

import (
	"context"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/repository/specification"

	"github.com/google/uuid"
)

type NotebookEntryRepository interface {
	Create(ctx context.Context, entry *entity.NotebookEntry) error
	Update(ctx context.Context, entry *entity.NotebookEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByNotebookId(ctx context.Context, notebookId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.NotebookEntry, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.NotebookEntry, error)
	// FindRecent returns at most limit entries of a notebook, newest first.
	FindRecent(ctx context.Context, notebookId uuid.UUID, limit int, specs ...specification.Specification) ([]*entity.NotebookEntry, error)
}
