package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/google/uuid"
)

const defaultChannelName = "general"

var bannerColors = []string{
	"#FF5733", "#33FF57", "#3357FF", "#F0A500", "#FF33A8",
	"#33FFF0", "#8E44AD", "#E74C3C", "#2ECC71", "#3498DB",
	"#F39C12", "#1ABC9C", "#D35400", "#C0392B", "#16A085",
	"#9B59B6", "#E67E22", "#F1C40F",
}

func randomBannerColor() string {
	return bannerColors[rand.IntN(len(bannerColors))]
}

// Servers manages servers, their members and channels.
type Servers struct {
	users    repositories.UserRepository
	servers  repositories.ServerRepository
	messages repositories.MessageRepository
	cache    *CacheCoordinator
	bus      realtime.Broadcaster
	logger   *slog.Logger
}

func NewServers(d Deps) *Servers {
	return &Servers{
		users:    d.Users,
		servers:  d.Servers,
		messages: d.GroupMessages,
		cache:    d.Cache,
		bus:      d.Bus,
		logger:   d.Logger,
	}
}

type serverPayload struct {
	ServerID   uint   `json:"server_id"`
	ServerName string `json:"server_name,omitempty"`
	ActorID    uint   `json:"actor_id"`
	UserID     uint   `json:"user_id,omitempty"`
	MemberID   uint   `json:"member_id,omitempty"`
}

type channelPayload struct {
	ServerID uint            `json:"server_id"`
	ActorID  uint            `json:"actor_id"`
	Channel  *models.Channel `json:"channel"`
}

func (s *Servers) loadServer(ctx context.Context, serverID uint) (*models.Server, error) {
	server, err := s.servers.GetServerByID(ctx, serverID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("server not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load server", err)
	}
	return server, nil
}

// ownedServer loads the server and checks that userID owns it.
func (s *Servers) ownedServer(ctx context.Context, serverID, userID uint) (*models.Server, error) {
	server, err := s.loadServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID != userID {
		return nil, apperr.Forbidden("only the server owner can do this")
	}
	return server, nil
}

func (s *Servers) membership(ctx context.Context, serverID, userID uint) (*models.Member, error) {
	member, err := s.servers.GetMember(ctx, serverID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.Forbidden("you are not a member of this server")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load membership", err)
	}
	return member, nil
}

func (s *Servers) serverMember(ctx context.Context, serverID, memberID uint) (*models.Member, error) {
	member, err := s.servers.GetMemberByID(ctx, memberID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && member.ServerID != serverID) {
		return nil, apperr.NotFound("member not found in this server")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load member", err)
	}
	return member, nil
}

// invalidateServer drops the server's info and the server list of every
// listed user.
func (s *Servers) invalidateServer(ctx context.Context, server *models.Server, extraUsers ...uint) {
	keys := []string{cache.ServerKey(server.ID)}
	for _, m := range server.Members {
		keys = append(keys, cache.ServerListKey(m.UserID))
	}
	for _, id := range extraUsers {
		keys = append(keys, cache.ServerListKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
}

// membershipChanged drops the notification listings of users who joined or
// lost a server, since those listings are scoped by membership.
func (s *Servers) membershipChanged(ctx context.Context, userIDs ...uint) {
	patterns := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		patterns = append(patterns, cache.NotificationsPattern(id))
	}
	s.cache.InvalidatePattern(ctx, patterns...)
}

// CreateServer creates a server owned by ownerID with a "general" text
// channel and the owner as its ADMIN member.
func (s *Servers) CreateServer(ctx context.Context, ownerID uint, req models.CreateServerRequest) (*models.Server, error) {
	if _, err := lookupUser(ctx, s.users, ownerID); err != nil {
		return nil, err
	}
	server := &models.Server{
		Name:        strings.TrimSpace(req.Name),
		ImageURL:    req.ImageURL,
		BannerColor: randomBannerColor(),
		InviteCode:  uuid.NewString(),
		OwnerID:     ownerID,
		Channels:    []models.Channel{{Name: defaultChannelName, Type: models.ChannelText, CreatorID: ownerID}},
		Members:     []models.Member{{UserID: ownerID, Role: models.RoleAdmin}},
	}
	if server.Name == "" {
		return nil, apperr.Validation("server name is required")
	}
	if err := s.servers.CreateServer(ctx, server); err != nil {
		return nil, apperr.Internal("failed to create server", err)
	}

	s.cache.Invalidate(ctx, cache.ServerListKey(ownerID))
	publish(ctx, s.bus, realtime.EventServerCreated, serverPayload{ServerID: server.ID, ServerName: server.Name, ActorID: ownerID})
	return server, nil
}

// ListServers returns the servers userID is a member of.
func (s *Servers) ListServers(ctx context.Context, userID uint) ([]models.Server, error) {
	return Remember(ctx, s.cache, cache.ServerListKey(userID), func(ctx context.Context) ([]models.Server, error) {
		servers, err := s.servers.ListServersForUser(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to list servers", err)
		}
		return servers, nil
	})
}

// GetServerInfo returns the server with its channels and members. Only
// members may read it.
func (s *Servers) GetServerInfo(ctx context.Context, serverID, userID uint) (*models.Server, error) {
	server, err := Remember(ctx, s.cache, cache.ServerKey(serverID), func(ctx context.Context) (*models.Server, error) {
		return s.loadServer(ctx, serverID)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range server.Members {
		if m.UserID == userID {
			return server, nil
		}
	}
	return nil, apperr.Forbidden("you are not a member of this server")
}

func (s *Servers) RegenerateInviteCode(ctx context.Context, serverID, userID uint) (*models.Server, error) {
	server, err := s.ownedServer(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	server.InviteCode = uuid.NewString()
	if err := s.servers.UpdateServer(ctx, server); err != nil {
		return nil, apperr.Internal("failed to update invite code", err)
	}

	s.invalidateServer(ctx, server)
	return server, nil
}

// JoinWithInviteCode adds userID to the server behind code. Joining a server
// the user is already in reports AlreadyInServer instead of failing.
func (s *Servers) JoinWithInviteCode(ctx context.Context, userID uint, code string) (*models.JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("invite code is required")
	}
	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	server, err := s.servers.GetServerByInviteCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("invalid invite code")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load server", err)
	}

	result := &models.JoinResult{ServerID: server.ID, User: user.ToCompact()}
	for _, m := range server.Members {
		if m.UserID == userID {
			result.AlreadyInServer = true
			return result, nil
		}
	}

	member := &models.Member{UserID: userID, ServerID: server.ID, Role: models.RoleGuest}
	if err := s.servers.AddMember(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			result.AlreadyInServer = true
			return result, nil
		}
		return nil, apperr.Internal("failed to join server", err)
	}

	s.invalidateServer(ctx, server, userID)
	s.membershipChanged(ctx, userID)
	publish(ctx, s.bus, realtime.EventMemberJoined, serverPayload{ServerID: server.ID, ServerName: server.Name, ActorID: userID, MemberID: member.ID})
	return result, nil
}

func (s *Servers) UpdateServer(ctx context.Context, serverID, userID uint, req models.UpdateServerRequest) (*models.Server, error) {
	server, err := s.ownedServer(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("server name is required")
	}
	server.Name = name
	if req.ImageURL != "" {
		server.ImageURL = req.ImageURL
	}
	if err := s.servers.UpdateServer(ctx, server); err != nil {
		return nil, apperr.Internal("failed to update server", err)
	}

	s.invalidateServer(ctx, server)
	publish(ctx, s.bus, realtime.EventServerInfoUpdated, serverPayload{ServerID: server.ID, ServerName: server.Name, ActorID: userID})
	return server, nil
}

// ChangeMemberRole toggles a member between GUEST and MODERATOR.
func (s *Servers) ChangeMemberRole(ctx context.Context, serverID, actorID, memberID uint) (*models.Member, error) {
	server, err := s.ownedServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	member, err := s.serverMember(ctx, serverID, memberID)
	if err != nil {
		return nil, err
	}

	switch member.Role {
	case models.RoleGuest:
		member.Role = models.RoleModerator
	case models.RoleModerator:
		member.Role = models.RoleGuest
	default:
		return nil, apperr.Conflict("the server admin's role cannot be changed")
	}
	if err := s.servers.UpdateMemberRole(ctx, member.ID, member.Role); err != nil {
		return nil, apperr.Internal("failed to change member role", err)
	}

	s.invalidateServer(ctx, server)
	publish(ctx, s.bus, realtime.EventServerInfoUpdated, serverPayload{ServerID: serverID, ServerName: server.Name, ActorID: actorID, MemberID: member.ID, UserID: member.UserID})
	return member, nil
}

func (s *Servers) KickMember(ctx context.Context, serverID, actorID, memberID uint) error {
	server, err := s.ownedServer(ctx, serverID, actorID)
	if err != nil {
		return err
	}
	member, err := s.serverMember(ctx, serverID, memberID)
	if err != nil {
		return err
	}
	if member.UserID == server.OwnerID {
		return apperr.Conflict("the server owner cannot be removed")
	}
	if err := s.servers.RemoveMember(ctx, member.ID); err != nil {
		return apperr.Internal("failed to remove member", err)
	}

	s.invalidateServer(ctx, server)
	s.membershipChanged(ctx, member.UserID)
	publish(ctx, s.bus, realtime.EventMemberRemoved, serverPayload{ServerID: serverID, ServerName: server.Name, ActorID: actorID, MemberID: member.ID, UserID: member.UserID})
	return nil
}

// LeaveServer removes userID's own membership. The owner has to delete the
// server instead.
func (s *Servers) LeaveServer(ctx context.Context, serverID, userID uint) error {
	server, err := s.loadServer(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == userID {
		return apperr.Conflict("the server owner cannot leave the server")
	}
	member, err := s.membership(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if err := s.servers.RemoveMember(ctx, member.ID); err != nil {
		return apperr.Internal("failed to leave server", err)
	}

	s.invalidateServer(ctx, server)
	s.membershipChanged(ctx, userID)
	publish(ctx, s.bus, realtime.EventMemberRemoved, serverPayload{ServerID: serverID, ServerName: server.Name, ActorID: userID, MemberID: member.ID, UserID: userID})
	return nil
}

// DeleteServer removes the server, its channels, members and messages.
func (s *Servers) DeleteServer(ctx context.Context, serverID, userID uint) error {
	server, err := s.ownedServer(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if err := s.servers.DeleteServer(ctx, serverID); err != nil {
		return apperr.Internal("failed to delete server", err)
	}

	patterns := []string{cache.ChannelsPattern(serverID)}
	for _, ch := range server.Channels {
		if err := s.messages.DeleteByScope(ctx, ch.ID); err != nil {
			s.logger.Warn("failed to delete channel messages", "channel_id", ch.ID, "error", err)
		}
		patterns = append(patterns, cache.ChannelMessagesPattern(ch.ID))
	}
	s.invalidateServer(ctx, server)
	for _, m := range server.Members {
		patterns = append(patterns, cache.NotificationsPattern(m.UserID))
	}
	s.cache.InvalidatePattern(ctx, patterns...)
	publish(ctx, s.bus, realtime.EventServerDeleted, serverPayload{ServerID: serverID, ServerName: server.Name, ActorID: userID})
	return nil
}

// CreateChannel needs an ADMIN or MODERATOR membership in the server.
func (s *Servers) CreateChannel(ctx context.Context, serverID, actorID uint, req models.CreateChannelRequest) (*models.Channel, error) {
	if !req.Type.Valid() {
		return nil, apperr.Validation("invalid channel type")
	}
	server, err := s.loadServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	member, err := s.membership(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if !member.CanManageChannels() {
		return nil, apperr.Forbidden("only admins and moderators can create channels")
	}

	channel := &models.Channel{
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		ServerID:  serverID,
		CreatorID: actorID,
	}
	if channel.Name == "" {
		return nil, apperr.Validation("channel name is required")
	}
	if err := s.servers.CreateChannel(ctx, channel); err != nil {
		return nil, apperr.Internal("failed to create channel", err)
	}

	s.invalidateServer(ctx, server)
	s.cache.Invalidate(ctx, cache.ChannelsKey(serverID, string(channel.Type)))
	publish(ctx, s.bus, realtime.EventChannelCreated, channelPayload{ServerID: serverID, ActorID: actorID, Channel: channel})
	return channel, nil
}

func (s *Servers) serverChannel(ctx context.Context, serverID, channelID uint) (*models.Channel, error) {
	channel, err := s.servers.GetChannel(ctx, channelID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && channel.ServerID != serverID) {
		return nil, apperr.NotFound("channel not found in this server")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	return channel, nil
}

func (s *Servers) UpdateChannel(ctx context.Context, serverID, channelID, actorID uint, req models.UpdateChannelRequest) (*models.Channel, error) {
	if !req.Type.Valid() {
		return nil, apperr.Validation("invalid channel type")
	}
	server, err := s.ownedServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	channel, err := s.serverChannel(ctx, serverID, channelID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("channel name is required")
	}
	channel.Name = name
	channel.Type = req.Type
	if err := s.servers.UpdateChannel(ctx, channel); err != nil {
		return nil, apperr.Internal("failed to update channel", err)
	}

	s.invalidateServer(ctx, server)
	s.cache.InvalidatePattern(ctx, cache.ChannelsPattern(serverID))
	publish(ctx, s.bus, realtime.EventChannelUpdated, channelPayload{ServerID: serverID, ActorID: actorID, Channel: channel})
	return channel, nil
}

func (s *Servers) DeleteChannel(ctx context.Context, serverID, channelID, actorID uint) error {
	server, err := s.ownedServer(ctx, serverID, actorID)
	if err != nil {
		return err
	}
	channel, err := s.serverChannel(ctx, serverID, channelID)
	if err != nil {
		return err
	}
	if err := s.servers.DeleteChannel(ctx, channel.ID); err != nil {
		return apperr.Internal("failed to delete channel", err)
	}
	if err := s.messages.DeleteByScope(ctx, channel.ID); err != nil {
		s.logger.Warn("failed to delete channel messages", "channel_id", channel.ID, "error", err)
	}

	s.invalidateServer(ctx, server)
	s.cache.InvalidatePattern(ctx, cache.ChannelsPattern(serverID), cache.ChannelMessagesPattern(channel.ID))
	publish(ctx, s.bus, realtime.EventChannelDeleted, channelPayload{ServerID: serverID, ActorID: actorID, Channel: channel})
	return nil
}

// FetchChannels returns the server's channels of one type, oldest first.
func (s *Servers) FetchChannels(ctx context.Context, serverID, userID uint, channelType models.ChannelType) ([]models.Channel, error) {
	if !channelType.Valid() {
		return nil, apperr.Validation("invalid channel type")
	}
	if _, err := s.membership(ctx, serverID, userID); err != nil {
		return nil, err
	}
	return Remember(ctx, s.cache, cache.ChannelsKey(serverID, string(channelType)), func(ctx context.Context) ([]models.Channel, error) {
		channels, err := s.servers.ListChannels(ctx, serverID, channelType)
		if err != nil {
			return nil, apperr.Internal("failed to list channels", err)
		}
		return channels, nil
	})
}
