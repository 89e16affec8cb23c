package implementation

import (
	"context"
	"errors"
	"fmt"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/mapper"
	"ai-sqlnotebook-be/internal/model"
	"ai-sqlnotebook-be/internal/repository/contract"
	"ai-sqlnotebook-be/internal/repository/scope"
	"ai-sqlnotebook-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgForeignKeyViolation = "23503"

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", contract.ErrNotebookMissing, pgErr.ConstraintName)
	}
	return err
}

type NotebookEntryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NotebookEntryMapper
}

func NewNotebookEntryRepository(db *gorm.DB) contract.NotebookEntryRepository {
	return &NotebookEntryRepositoryImpl{
		db:     db,
		mapper: mapper.NewNotebookEntryMapper(),
	}
}

func (r *NotebookEntryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *NotebookEntryRepositoryImpl) Create(ctx context.Context, entry *entity.NotebookEntry) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translateError(err)
	}
	*entry = *r.mapper.ToEntity(m)
	return nil
}

// Update rewrites the sql and output columns only; the prompt and ownership are
// fixed at creation.
func (r *NotebookEntryRepositoryImpl) Update(ctx context.Context, entry *entity.NotebookEntry) error {
	m := r.mapper.ToModel(entry)
	res := r.db.WithContext(ctx).
		Model(&model.NotebookEntry{Id: m.Id}).
		Select("sql_queries", "outputs", "updated_at").
		Updates(m)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if !m.UpdatedAt.IsZero() {
		t := m.UpdatedAt
		entry.UpdatedAt = &t
	}
	return nil
}

func (r *NotebookEntryRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.NotebookEntry{}).Error
}

func (r *NotebookEntryRepositoryImpl) DeleteByNotebookId(ctx context.Context, notebookId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("notebook_id = ?", notebookId).Delete(&model.NotebookEntry{}).Error
}

func (r *NotebookEntryRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.NotebookEntry, error) {
	var m model.NotebookEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *NotebookEntryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.NotebookEntry, error) {
	var models []*model.NotebookEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *NotebookEntryRepositoryImpl) FindRecent(ctx context.Context, notebookId uuid.UUID, limit int, specs ...specification.Specification) ([]*entity.NotebookEntry, error) {
	var models []*model.NotebookEntry
	query := r.applySpecifications(
		r.db.WithContext(ctx).Scopes(scope.OrderByCreatedDesc).Where("notebook_id = ?", notebookId),
		specs...,
	)
	if err := query.Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
