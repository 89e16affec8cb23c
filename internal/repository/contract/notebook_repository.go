package contract

import (
	"context"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/repository/specification"

	"github.com/google/uuid"
)

type NotebookRepository interface {
	Create(ctx context.Context, notebook *entity.Notebook) error
	// UpdateTitle changes only the title column of rows matching id and specs
	// and reports how many rows changed.
	UpdateTitle(ctx context.Context, id uuid.UUID, title string, specs ...specification.Specification) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Notebook, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Notebook, error)
}
