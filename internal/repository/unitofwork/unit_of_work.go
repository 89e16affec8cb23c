package unitofwork

import (
	"context"

	"ai-sqlnotebook-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	NotebookRepository() contract.NotebookRepository
	NotebookEntryRepository() contract.NotebookEntryRepository
}
