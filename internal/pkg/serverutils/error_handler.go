package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// StatusCoder is implemented by domain errors that know their HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// PublicMessager is implemented by errors whose Error() text must not reach the client.
type PublicMessager interface {
	PublicMessage() string
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

func WriteError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	var coder StatusCoder
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		return ctx.Status(fiber.StatusBadRequest).JSON(&Response[map[string]string]{
			Success: false,
			Code:    fiber.StatusBadRequest,
			Message: "Validation failed",
			Data:    validationErr.Fields,
		})
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.As(err, &coder):
		code = coder.StatusCode()
		message = err.Error()
		if pm, ok := coder.(PublicMessager); ok {
			message = pm.PublicMessage()
		}
	}

	return ctx.Status(code).JSON(ErrorResponse(code, message))
}
