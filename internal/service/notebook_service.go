package service

import (
	"context"
	"strings"
	"time"

	"ai-sqlnotebook-be/internal/constant"
	"ai-sqlnotebook-be/internal/dto"
	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/repository/specification"
	"ai-sqlnotebook-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type INotebookService interface {
	GetAll(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID) ([]*dto.NotebookResponse, error)
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNotebookRequest) (*dto.CreateNotebookResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.NotebookResponse, error)
	Rename(ctx context.Context, userId uuid.UUID, req *dto.RenameNotebookRequest) (*dto.RenameNotebookResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type notebookService struct {
	uowFactory unitofwork.RepositoryFactory
	delivery   RenderingDelivery
}

func NewNotebookService(uowFactory unitofwork.RepositoryFactory, delivery RenderingDelivery) INotebookService {
	return &notebookService{
		uowFactory: uowFactory,
		delivery:   delivery,
	}
}

func toNotebookResponse(n *entity.Notebook) *dto.NotebookResponse {
	return &dto.NotebookResponse{
		Id:        n.Id,
		Title:     n.Title,
		ProjectId: n.ProjectId,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (c *notebookService) GetAll(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID) ([]*dto.NotebookResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if projectId != nil {
		specs = append(specs, specification.ByProjectID{ProjectID: *projectId})
	}

	notebooks, err := uow.NotebookRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.NotebookResponse, 0, len(notebooks))
	for _, n := range notebooks {
		result = append(result, toNotebookResponse(n))
	}
	return result, nil
}

func (c *notebookService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNotebookRequest) (*dto.CreateNotebookResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = entity.DefaultNotebookTitle
	}

	notebook := entity.Notebook{
		Id:        uuid.New(),
		Title:     title,
		ProjectId: req.ProjectId,
		UserId:    userId,
		CreatedAt: time.Now(),
	}
	if err := uow.NotebookRepository().Create(ctx, &notebook); err != nil {
		return nil, err
	}

	return &dto.CreateNotebookResponse{
		Id: notebook.Id,
	}, nil
}

func (c *notebookService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.NotebookResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	notebook, err := uow.NotebookRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if notebook == nil {
		return nil, ErrNotebookNotFound
	}

	return toNotebookResponse(notebook), nil
}

// Rename touches only the title column, so it can run while an entry of the
// same notebook is still streaming.
func (c *notebookService) Rename(ctx context.Context, userId uuid.UUID, req *dto.RenameNotebookRequest) (*dto.RenameNotebookResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	affected, err := uow.NotebookRepository().UpdateTitle(ctx, req.Id, title,
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotebookNotFound
	}

	// other devices of the same user
	c.delivery.Send(userId, constant.WsEventNotebookTitle, dto.NotebookTitleUpdate{
		NotebookId: req.Id,
		Title:      title,
	})

	return &dto.RenameNotebookResponse{
		Id:    req.Id,
		Title: title,
	}, nil
}

func (c *notebookService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	notebook, err := uow.NotebookRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if notebook == nil {
		return ErrNotebookNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.NotebookEntryRepository().DeleteByNotebookId(ctx, id); err != nil {
		return err
	}
	if err := uow.NotebookRepository().Delete(ctx, id); err != nil {
		return err
	}

	return uow.Commit()
}
