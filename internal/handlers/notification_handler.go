package handlers

import (
	"strconv"
	"strings"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.Notifications
}

func NewNotificationHandler(notifications *services.Notifications) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// parseServerIDs reads "?servers=1,2,3". Empty means every membership.
func parseServerIDs(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil || id == 0 {
			return nil, apperr.Validation("Invalid server id: " + p)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// GetNotifications returns the caller's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	serverIDs, err := parseServerIDs(c.QueryParam("servers"))
	if err != nil {
		return err
	}
	notes, err := h.notifications.FetchNotifications(c.Request().Context(), me, serverIDs)
	if err != nil {
		return err
	}
	return ok(c, "", notes)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.Request().Context(), me)
	if err != nil {
		return err
	}
	return ok(c, "", echo.Map{"unread_count": count})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAsRead(c.Request().Context(), me, id); err != nil {
		return err
	}
	return ok(c, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAllAsRead(c.Request().Context(), me); err != nil {
		return err
	}
	return ok(c, "All notifications marked as read", nil)
}
