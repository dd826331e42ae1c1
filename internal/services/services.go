// Package services holds the domain managers. Each mutation follows the same
// sequence: write to the store, invalidate affected cache entries, then
// publish a realtime event. The last two steps are best-effort.
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/anonto42/nano-chat/backend/pkg/encryption"
)

var (
	ErrInvalidTarget    = apperr.Validation("you cannot do this to yourself")
	ErrAlreadyFollowing = apperr.Conflict("you are already following this user")
	ErrAlreadyPending   = apperr.Conflict("follow request already sent")
)

// Deps are the handles injected into every manager.
type Deps struct {
	Users          repositories.UserRepository
	Graph          repositories.GraphRepository
	Servers        repositories.ServerRepository
	Conversations  repositories.ConversationRepository
	GroupMessages  repositories.MessageRepository
	DirectMessages repositories.MessageRepository
	Notifications  repositories.NotificationRepository
	Cache          *CacheCoordinator
	Bus            realtime.Broadcaster
	Cipher         *encryption.Cipher
	Logger         *slog.Logger
}

// Services groups the managers built from one Deps.
type Services struct {
	Graph         *SocialGraph
	Messaging     *Messaging
	Servers       *Servers
	Notifications *Notifications
	Presence      *Presence
	Users         *Users
}

func New(d Deps) *Services {
	notes := NewNotifications(d)
	return &Services{
		Graph:         NewSocialGraph(d, notes),
		Messaging:     NewMessaging(d, notes),
		Servers:       NewServers(d),
		Notifications: notes,
		Presence:      NewPresence(d),
		Users:         NewUsers(d),
	}
}

func lookupUser(ctx context.Context, users repositories.UserRepository, id uint) (*models.User, error) {
	user, err := users.GetUserByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}

// compactUsers loads ids and returns their compact views, preserving the
// order of ids and skipping users that no longer exist.
func compactUsers(ctx context.Context, users repositories.UserRepository, ids []uint) ([]models.UserCompact, error) {
	out := []models.UserCompact{}
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}
	byID := make(map[uint]*models.User, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u.ToCompact())
		}
	}
	return out, nil
}

func toSet(lists ...[]uint) map[uint]struct{} {
	set := make(map[uint]struct{})
	for _, ids := range lists {
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	return set
}

func without(ids []uint, exclude map[uint]struct{}) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, skip := exclude[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}

func publish(ctx context.Context, bus realtime.Broadcaster, event realtime.Event, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(event, payload, realtime.SessionFrom(ctx))
}
