package controller

import (
	"ai-sqlnotebook-be/internal/dto"
	"ai-sqlnotebook-be/internal/pkg/serverutils"
	"ai-sqlnotebook-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type INotebookEntryController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
}

type notebookEntryController struct {
	service service.INotebookEntryService
}

func NewNotebookEntryController(service service.INotebookEntryService) INotebookEntryController {
	return &notebookEntryController{service: service}
}

func (c *notebookEntryController) RegisterRoutes(r fiber.Router) {
	q := r.Group("/query/v1")
	q.Use(serverutils.JwtMiddleware)
	q.Post("", c.Submit)

	r.Get("/notebook/v1/:id/entries", serverutils.JwtMiddleware, c.GetAll)
}

// Submit blocks until the stream is finished. Live progress is pushed over
// the websocket; the response carries the final entry.
func (c *notebookEntryController) Submit(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Submit(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit query", res))
}

func (c *notebookEntryController) GetAll(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}
	id, err := parseIDParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetAll(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get notebook entries", res))
}
