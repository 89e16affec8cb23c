package handler

import (
	"time"

	"ai-sqlnotebook-be/internal/pkg/logger"
	"ai-sqlnotebook-be/internal/pkg/serverutils"
	"ai-sqlnotebook-be/internal/repository/memory"
	internalWS "ai-sqlnotebook-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const streamModule = "StreamHandler"

// StreamHandler serves the websocket that carries live entry updates, and a
// status probe so a reconnecting client can tell whether its query is still running.
type StreamHandler struct {
	hub         *internalWS.Hub
	submissions *memory.SubmissionRepository
	logger      logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, submissions *memory.SubmissionRepository, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		hub:         hub,
		submissions: submissions,
		logger:      log,
	}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.ServeWs)
	r.Get("/query/v1/status", serverutils.JwtMiddleware, h.Status)
}

type StreamStatusResponse struct {
	Busy             bool       `json:"busy"`
	NotebookId       *uuid.UUID `json:"notebook_id,omitempty"`
	EntryId          *uuid.UUID `json:"entry_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ConnectedClients int        `json:"connected_clients"`
}

// ServeWs authenticates the handshake and upgrades. Browsers cannot set headers
// on a websocket request, so the token may also come from the query string.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := serverutils.ParseUserToken(tokenStr)
	if err != nil {
		h.logger.Warn(streamModule, "Invalid token in websocket handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(streamModule, "Starting websocket session", map[string]interface{}{"user_id": userID.String()})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info(streamModule, "Websocket session ended", map[string]interface{}{"user_id": userID.String()})
	})(c)
}

func (h *StreamHandler) Status(c *fiber.Ctx) error {
	userID, err := serverutils.UserID(c)
	if err != nil {
		return err
	}

	res := StreamStatusResponse{ConnectedClients: h.hub.ConnectedClients(userID)}
	if s, ok := h.submissions.Get(userID); ok {
		res.Busy = true
		startedAt := s.StartedAt
		res.StartedAt = &startedAt
		if s.NotebookID != uuid.Nil {
			notebookID, entryID := s.NotebookID, s.EntryID
			res.NotebookId = &notebookID
			res.EntryId = &entryID
		}
	}

	return c.JSON(serverutils.SuccessResponse("Success get stream status", res))
}
