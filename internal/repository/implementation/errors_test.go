package implementation

import (
	"errors"
	"testing"

	"ai-sqlnotebook-be/internal/repository/contract"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "fk_notebook_entries_notebook"}
	assert.ErrorIs(t, translateError(fk), contract.ErrNotebookMissing)

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, unique, translateError(unique))

	plain := errors.New("boom")
	assert.Equal(t, plain, translateError(plain))
}
