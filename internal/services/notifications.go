package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
)

// Notifications keeps the notification records derived from follow requests
// and group messages. The record helpers log failures instead of returning
// them: the edge or message that caused them has already been written.
type Notifications struct {
	repo    repositories.NotificationRepository
	servers repositories.ServerRepository
	cache   *CacheCoordinator
	logger  *slog.Logger
}

func NewNotifications(d Deps) *Notifications {
	return &Notifications{
		repo:    d.Notifications,
		servers: d.Servers,
		cache:   d.Cache,
		logger:  d.Logger,
	}
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.UserName
}

func (n *Notifications) create(ctx context.Context, note *models.Notification) {
	if err := n.repo.CreateNotification(ctx, note); err != nil {
		n.logger.Error("failed to create notification", "type", note.Type, "sender_id", note.SenderID, "error", err)
	}
}

// FollowRequested records a pending request from sender to receiverID.
func (n *Notifications) FollowRequested(ctx context.Context, sender *models.User, receiverID uint) {
	n.create(ctx, &models.Notification{
		Type:       models.NotificationFollowRequest,
		SenderID:   sender.ID,
		ReceiverID: &receiverID,
		Message:    displayName(sender) + " sent you a follow request",
	})
	n.cache.InvalidatePattern(ctx, cache.NotificationsPattern(receiverID))
}

// FollowResolved removes the request notification once the pending edge is
// gone, whichever way it was resolved.
func (n *Notifications) FollowResolved(ctx context.Context, senderID, receiverID uint) {
	if _, err := n.repo.DeleteBetween(ctx, models.NotificationFollowRequest, senderID, receiverID); err != nil {
		n.logger.Error("failed to delete follow request notification", "sender_id", senderID, "receiver_id", receiverID, "error", err)
	}
	n.cache.InvalidatePattern(ctx, cache.NotificationsPattern(receiverID))
}

// FollowAccepted tells the original sender that accepter took the request.
func (n *Notifications) FollowAccepted(ctx context.Context, accepter *models.User, senderID uint) {
	n.create(ctx, &models.Notification{
		Type:       models.NotificationFollowAccept,
		SenderID:   accepter.ID,
		ReceiverID: &senderID,
		Message:    displayName(accepter) + " accepted your follow request",
	})
	n.cache.InvalidatePattern(ctx, cache.NotificationsPattern(senderID))
}

// MessagePosted addresses a notice to every member of the server.
func (n *Notifications) MessagePosted(ctx context.Context, author *models.User, channel *models.Channel) {
	serverID, channelID := channel.ServerID, channel.ID
	n.create(ctx, &models.Notification{
		Type:      models.NotificationMessage,
		SenderID:  author.ID,
		ServerID:  &serverID,
		ChannelID: &channelID,
		Message:   fmt.Sprintf("%s sent a message in #%s", displayName(author), channel.Name),
	})

	members, err := n.servers.MemberUserIDs(ctx, serverID)
	if err != nil {
		n.logger.Warn("failed to list members for notification invalidation", "server_id", serverID, "error", err)
		return
	}
	patterns := make([]string, 0, len(members))
	for _, id := range members {
		if id != author.ID {
			patterns = append(patterns, cache.NotificationsPattern(id))
		}
	}
	n.cache.InvalidatePattern(ctx, patterns...)
}

// FetchNotifications returns what is addressed to userID directly or to any
// of serverIDs the user belongs to, newest first. An empty serverIDs means
// every server the user is a member of.
func (n *Notifications) FetchNotifications(ctx context.Context, userID uint, serverIDs []uint) ([]models.Notification, error) {
	return Remember(ctx, n.cache, cache.NotificationsKey(userID, serverIDs), func(ctx context.Context) ([]models.Notification, error) {
		memberships, err := n.servers.MemberServerIDs(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to load memberships", err)
		}
		scope := memberships
		if len(serverIDs) > 0 {
			scope = make([]uint, 0, len(serverIDs))
			for _, id := range serverIDs {
				if slices.Contains(memberships, id) {
					scope = append(scope, id)
				}
			}
		}

		notes, err := n.repo.ListForUser(ctx, userID, scope)
		if err != nil {
			return nil, apperr.Internal("failed to load notifications", err)
		}
		return notes, nil
	})
}

func (n *Notifications) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	count, err := n.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count notifications", err)
	}
	return count, nil
}

// MarkAsRead marks one of the user's own notifications read.
func (n *Notifications) MarkAsRead(ctx context.Context, userID, notificationID uint) error {
	note, err := n.repo.GetByID(ctx, notificationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return apperr.Internal("failed to load notification", err)
	}
	if note.ReceiverID == nil || *note.ReceiverID != userID {
		return apperr.Forbidden("you can only mark your own notifications")
	}
	if err := n.repo.MarkAsRead(ctx, notificationID); err != nil {
		return apperr.Internal("failed to update notification", err)
	}
	n.cache.InvalidatePattern(ctx, cache.NotificationsPattern(userID))
	return nil
}

func (n *Notifications) MarkAllAsRead(ctx context.Context, userID uint) error {
	if err := n.repo.MarkAllAsRead(ctx, userID); err != nil {
		return apperr.Internal("failed to update notifications", err)
	}
	n.cache.InvalidatePattern(ctx, cache.NotificationsPattern(userID))
	return nil
}
