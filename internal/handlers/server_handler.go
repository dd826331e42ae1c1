package handlers

import (
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ServerHandler handles servers, their members and channels.
type ServerHandler struct {
	servers *services.Servers
}

func NewServerHandler(servers *services.Servers) *ServerHandler {
	return &ServerHandler{servers: servers}
}

func (h *ServerHandler) RegisterServerRoutes(g *echo.Group) {
	s := g.Group("/servers")
	s.POST("", h.CreateServer)
	s.GET("", h.ListServers)
	s.POST("/join", h.JoinWithInviteCode)
	s.GET("/:serverId", h.GetServerInfo)
	s.PUT("/:serverId", h.UpdateServer)
	s.DELETE("/:serverId", h.DeleteServer)
	s.PUT("/:serverId/invite-code", h.RegenerateInviteCode)
	s.DELETE("/:serverId/leave", h.LeaveServer)
	s.PUT("/:serverId/members/role", h.ChangeMemberRole)
	s.DELETE("/:serverId/members/:memberId", h.KickMember)
	s.POST("/:serverId/channels", h.CreateChannel)
	s.GET("/:serverId/channels", h.FetchChannels)
	s.PUT("/:serverId/channels/:channelId", h.UpdateChannel)
	s.DELETE("/:serverId/channels/:channelId", h.DeleteChannel)
}

// serverScope resolves the caller and :serverId.
func serverScope(c echo.Context) (uint, uint, error) {
	me, err := currentUser(c)
	if err != nil {
		return 0, 0, err
	}
	serverID, err := paramID(c, "serverId")
	if err != nil {
		return 0, 0, err
	}
	return me, serverID, nil
}

func (h *ServerHandler) CreateServer(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateServerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	server, err := h.servers.CreateServer(c.Request().Context(), me, req)
	if err != nil {
		return err
	}
	return created(c, "Server created", server)
}

func (h *ServerHandler) ListServers(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	servers, err := h.servers.ListServers(c.Request().Context(), me)
	if err != nil {
		return err
	}
	return ok(c, "", servers)
}

func (h *ServerHandler) GetServerInfo(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	server, err := h.servers.GetServerInfo(c.Request().Context(), serverID, me)
	if err != nil {
		return err
	}
	return ok(c, "", server)
}

func (h *ServerHandler) JoinWithInviteCode(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.JoinServerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.servers.JoinWithInviteCode(c.Request().Context(), me, req.InviteCode)
	if err != nil {
		return err
	}
	message := "Joined the server"
	if result.AlreadyInServer {
		message = "You are already a member of this server"
	}
	return ok(c, message, result)
}

func (h *ServerHandler) RegenerateInviteCode(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	server, err := h.servers.RegenerateInviteCode(c.Request().Context(), serverID, me)
	if err != nil {
		return err
	}
	return ok(c, "Invite code regenerated", echo.Map{"invite_code": server.InviteCode})
}

func (h *ServerHandler) UpdateServer(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	var req models.UpdateServerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	server, err := h.servers.UpdateServer(c.Request().Context(), serverID, me, req)
	if err != nil {
		return err
	}
	return ok(c, "Server updated", server)
}

func (h *ServerHandler) DeleteServer(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	if err := h.servers.DeleteServer(c.Request().Context(), serverID, me); err != nil {
		return err
	}
	return ok(c, "Server deleted", nil)
}

func (h *ServerHandler) LeaveServer(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	if err := h.servers.LeaveServer(c.Request().Context(), serverID, me); err != nil {
		return err
	}
	return ok(c, "You left the server", nil)
}

func (h *ServerHandler) ChangeMemberRole(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	var req models.MemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.servers.ChangeMemberRole(c.Request().Context(), serverID, me, req.MemberID)
	if err != nil {
		return err
	}
	return ok(c, "Member role changed", member)
}

func (h *ServerHandler) KickMember(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return err
	}
	if err := h.servers.KickMember(c.Request().Context(), serverID, me, memberID); err != nil {
		return err
	}
	return ok(c, "Member removed", nil)
}

func (h *ServerHandler) CreateChannel(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	var req models.CreateChannelRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	channel, err := h.servers.CreateChannel(c.Request().Context(), serverID, me, req)
	if err != nil {
		return err
	}
	return created(c, "Channel created", channel)
}

func (h *ServerHandler) FetchChannels(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	channelType := models.ChannelType(c.QueryParam("type"))
	if channelType == "" {
		channelType = models.ChannelText
	}
	channels, err := h.servers.FetchChannels(c.Request().Context(), serverID, me, channelType)
	if err != nil {
		return err
	}
	return ok(c, "", channels)
}

func (h *ServerHandler) UpdateChannel(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	channelID, err := paramID(c, "channelId")
	if err != nil {
		return err
	}
	var req models.UpdateChannelRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	channel, err := h.servers.UpdateChannel(c.Request().Context(), serverID, channelID, me, req)
	if err != nil {
		return err
	}
	return ok(c, "Channel updated", channel)
}

func (h *ServerHandler) DeleteChannel(c echo.Context) error {
	me, serverID, err := serverScope(c)
	if err != nil {
		return err
	}
	channelID, err := paramID(c, "channelId")
	if err != nil {
		return err
	}
	if err := h.servers.DeleteChannel(c.Request().Context(), serverID, channelID, me); err != nil {
		return err
	}
	return ok(c, "Channel deleted", nil)
}
