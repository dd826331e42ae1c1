package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/middleware"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// RealtimeHandler upgrades /ws connections and ties each session to presence.
type RealtimeHandler struct {
	verifier middleware.IdentityVerifier
	hub      *realtime.Hub
	presence *services.Presence
	logger   *slog.Logger
}

func NewRealtimeHandler(verifier middleware.IdentityVerifier, hub *realtime.Hub, presence *services.Presence, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{verifier: verifier, hub: hub, presence: presence, logger: logger}
}

func (h *RealtimeHandler) RegisterRealtimeRoutes(e *echo.Echo) {
	e.GET("/ws", h.Connect)
}

// Connect takes the token from ?token= or the Authorization header. Without
// a token the session is anonymous: it relays typing and meeting events but
// does not count towards presence.
func (h *RealtimeHandler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.Request())
	}

	var userID uint
	if token != "" {
		id, err := h.verifier.Verify(c.Request().Context(), token)
		if errors.Is(err, middleware.ErrInvalidToken) {
			return apperr.Unauthorized("invalid or expired token")
		}
		if err != nil {
			return apperr.Internal("failed to verify token", err)
		}
		userID = id
	}

	conn, err := realtime.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	client := realtime.NewClient(h.hub, conn, userID)
	if userID != 0 {
		if err := h.presence.Connect(context.Background(), userID, client.ID); err != nil {
			h.logger.Error("failed to mark user online", "user_id", userID, "session", client.ID, "error", err)
		}
		defer func() {
			if err := h.presence.Disconnect(context.Background(), userID, client.ID); err != nil {
				h.logger.Error("failed to mark user offline", "user_id", userID, "session", client.ID, "error", err)
			}
		}()
	}

	client.Run()
	return nil
}
