package handlers

import (
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MessageHandler serves channel messages, conversations and direct messages.
type MessageHandler struct {
	messaging *services.Messaging
}

func NewMessageHandler(messaging *services.Messaging) *MessageHandler {
	return &MessageHandler{messaging: messaging}
}

// RegisterMessageRoutes registers message routes. :kind is "group" or
// "direct".
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/servers/:serverId/channels/:channelId/messages", h.SendGroupMessage)
	g.GET("/servers/:serverId/channels/:channelId/messages", h.FetchMessages)

	g.POST("/conversations", h.CreateConversation)
	g.GET("/conversations", h.FetchConversations)
	g.POST("/conversations/:conversationId/messages", h.SendDirectMessage)
	g.GET("/conversations/:conversationId/messages", h.FetchConversationMessages)

	g.PUT("/messages/:kind/:messageId", h.EditMessage)
	g.DELETE("/messages/:kind/:messageId", h.DeleteMessage)
	g.POST("/messages/:kind/:messageId/reply", h.ReplyToMessage)
}

func (h *MessageHandler) channelScope(c echo.Context) (me, serverID, channelID uint, err error) {
	if me, serverID, err = serverScope(c); err != nil {
		return
	}
	channelID, err = paramID(c, "channelId")
	return
}

func (h *MessageHandler) SendGroupMessage(c echo.Context) error {
	me, serverID, channelID, err := h.channelScope(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.messaging.SendGroupMessage(c.Request().Context(), serverID, channelID, me, req)
	if err != nil {
		return err
	}
	return created(c, "Message sent", msg)
}

func (h *MessageHandler) FetchMessages(c echo.Context) error {
	me, serverID, channelID, err := h.channelScope(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	result, err := h.messaging.FetchMessages(c.Request().Context(), serverID, channelID, me, page, limit)
	if err != nil {
		return err
	}
	return ok(c, "", result)
}

func (h *MessageHandler) CreateConversation(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateConversationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	conv, err := h.messaging.CreateConversation(c.Request().Context(), me, req.ReceiverID)
	if err != nil {
		return err
	}
	return ok(c, "", conv)
}

func (h *MessageHandler) FetchConversations(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	convs, err := h.messaging.FetchConversations(c.Request().Context(), me)
	if err != nil {
		return err
	}
	return ok(c, "", convs)
}

func (h *MessageHandler) conversationScope(c echo.Context) (uint, uint, error) {
	me, err := currentUser(c)
	if err != nil {
		return 0, 0, err
	}
	convID, err := paramID(c, "conversationId")
	if err != nil {
		return 0, 0, err
	}
	return me, convID, nil
}

func (h *MessageHandler) SendDirectMessage(c echo.Context) error {
	me, convID, err := h.conversationScope(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.messaging.SendDirectMessage(c.Request().Context(), convID, me, req)
	if err != nil {
		return err
	}
	return created(c, "Message sent", msg)
}

func (h *MessageHandler) FetchConversationMessages(c echo.Context) error {
	me, convID, err := h.conversationScope(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	result, err := h.messaging.FetchConversationMessages(c.Request().Context(), convID, me, page, limit)
	if err != nil {
		return err
	}
	return ok(c, "", result)
}

func (h *MessageHandler) EditMessage(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.EditMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.messaging.EditMessage(c.Request().Context(), models.MessageKind(c.Param("kind")), c.Param("messageId"), me, req.Content)
	if err != nil {
		return err
	}
	return ok(c, "Message edited", msg)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	msg, err := h.messaging.DeleteMessage(c.Request().Context(), models.MessageKind(c.Param("kind")), c.Param("messageId"), me)
	if err != nil {
		return err
	}
	return ok(c, "Message deleted", msg)
}

func (h *MessageHandler) ReplyToMessage(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.messaging.ReplyToMessage(c.Request().Context(), models.MessageKind(c.Param("kind")), c.Param("messageId"), me, req)
	if err != nil {
		return err
	}
	return created(c, "Reply sent", msg)
}
