package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
)

// SocialGraph manages follow requests, confirmed follows and blocks.
type SocialGraph struct {
	users  repositories.UserRepository
	graph  repositories.GraphRepository
	notes  *Notifications
	cache  *CacheCoordinator
	bus    realtime.Broadcaster
	logger *slog.Logger
}

func NewSocialGraph(d Deps, notes *Notifications) *SocialGraph {
	return &SocialGraph{
		users:  d.Users,
		graph:  d.Graph,
		notes:  notes,
		cache:  d.Cache,
		bus:    d.Bus,
		logger: d.Logger,
	}
}

// edgePayload is broadcast with every graph event.
type edgePayload struct {
	ActorID  uint                `json:"actor_id"`
	TargetID uint                `json:"target_id"`
	Actor    *models.UserCompact `json:"actor,omitempty"`
}

func (s *SocialGraph) invalidateRequests(ctx context.Context, senderID, receiverID uint) {
	s.cache.Invalidate(ctx,
		cache.SentRequestsKey(senderID),
		cache.ReceivedRequestsKey(receiverID),
		cache.UserListingKey(string(models.ListingPending), senderID),
		cache.UserListingKey(string(models.ListingPending), receiverID),
	)
}

// invalidateFollow drops everything that reflects the follower→followee edge.
// The followee's online/all listings exclude their followers.
func (s *SocialGraph) invalidateFollow(ctx context.Context, followerID, followeeID uint) {
	s.cache.Invalidate(ctx,
		cache.FollowingKey(followerID),
		cache.FollowersKey(followeeID),
		cache.UserListingKey(string(models.ListingAll), followeeID),
		cache.UserListingKey(string(models.ListingOnline), followeeID),
	)
}

// invalidateUser drops every graph-derived entry of one user.
func (s *SocialGraph) invalidateUser(ctx context.Context, userID uint) {
	s.cache.Invalidate(ctx,
		cache.FollowersKey(userID),
		cache.FollowingKey(userID),
		cache.SentRequestsKey(userID),
		cache.ReceivedRequestsKey(userID),
		cache.UserListingKey(string(models.ListingAll), userID),
		cache.UserListingKey(string(models.ListingOnline), userID),
		cache.UserListingKey(string(models.ListingBlocked), userID),
		cache.UserListingKey(string(models.ListingPending), userID),
	)
}

// SendFollowRequest creates a pending edge from senderID to receiverID.
func (s *SocialGraph) SendFollowRequest(ctx context.Context, senderID, receiverID uint) error {
	if senderID == receiverID {
		return ErrInvalidTarget
	}
	sender, err := lookupUser(ctx, s.users, senderID)
	if err != nil {
		return err
	}
	if _, err := lookupUser(ctx, s.users, receiverID); err != nil {
		return err
	}

	following, err := s.graph.IsFollowing(ctx, senderID, receiverID)
	if err != nil {
		return apperr.Internal("failed to check follow state", err)
	}
	if following {
		return ErrAlreadyFollowing
	}
	pending, err := s.graph.HasPendingRequest(ctx, senderID, receiverID)
	if err != nil {
		return apperr.Internal("failed to check follow requests", err)
	}
	if pending {
		return ErrAlreadyPending
	}
	blockedByTarget, err := s.graph.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return apperr.Internal("failed to check blocks", err)
	}
	if blockedByTarget {
		return apperr.Forbidden("this user is not accepting follow requests from you")
	}
	blockedTarget, err := s.graph.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return apperr.Internal("failed to check blocks", err)
	}
	if blockedTarget {
		return apperr.Forbidden("unblock this user before sending a follow request")
	}

	if err := s.graph.CreateFollowRequest(ctx, senderID, receiverID); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrAlreadyPending
		}
		return apperr.Internal("failed to create follow request", err)
	}

	s.notes.FollowRequested(ctx, sender, receiverID)
	s.invalidateRequests(ctx, senderID, receiverID)
	compact := sender.ToCompact()
	publish(ctx, s.bus, realtime.EventFollowRequestSent, edgePayload{ActorID: senderID, TargetID: receiverID, Actor: &compact})
	return nil
}

// AcceptFollowRequest turns the pending senderID→accepterID edge into a
// confirmed follow.
func (s *SocialGraph) AcceptFollowRequest(ctx context.Context, accepterID, senderID uint) error {
	if accepterID == senderID {
		return ErrInvalidTarget
	}
	accepter, err := lookupUser(ctx, s.users, accepterID)
	if err != nil {
		return err
	}

	if err := s.graph.AcceptFollowRequest(ctx, senderID, accepterID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return apperr.NotFound("no pending follow request from this user")
		case errors.Is(err, repositories.ErrDuplicate):
			return ErrAlreadyFollowing
		}
		return apperr.Internal("failed to accept follow request", err)
	}

	s.notes.FollowResolved(ctx, senderID, accepterID)
	s.notes.FollowAccepted(ctx, accepter, senderID)
	s.invalidateRequests(ctx, senderID, accepterID)
	s.invalidateFollow(ctx, senderID, accepterID)
	compact := accepter.ToCompact()
	publish(ctx, s.bus, realtime.EventFollowRequestAccepted, edgePayload{ActorID: accepterID, TargetID: senderID, Actor: &compact})
	return nil
}

// WithdrawFollowRequest removes the sender's own pending request. Removing a
// request that does not exist is a no-op.
func (s *SocialGraph) WithdrawFollowRequest(ctx context.Context, senderID, receiverID uint) error {
	if senderID == receiverID {
		return ErrInvalidTarget
	}
	return s.dropRequest(ctx, senderID, receiverID, senderID, realtime.EventFollowRequestWithdrawn)
}

// IgnoreFollowRequest is the receiver's side of WithdrawFollowRequest.
func (s *SocialGraph) IgnoreFollowRequest(ctx context.Context, receiverID, senderID uint) error {
	if senderID == receiverID {
		return ErrInvalidTarget
	}
	return s.dropRequest(ctx, senderID, receiverID, receiverID, realtime.EventFollowRequestIgnored)
}

func (s *SocialGraph) dropRequest(ctx context.Context, senderID, receiverID, actorID uint, event realtime.Event) error {
	removed, err := s.graph.DeleteFollowRequest(ctx, senderID, receiverID)
	if err != nil {
		return apperr.Internal("failed to delete follow request", err)
	}
	if !removed {
		return nil
	}

	s.notes.FollowResolved(ctx, senderID, receiverID)
	s.invalidateRequests(ctx, senderID, receiverID)
	target := senderID
	if actorID == senderID {
		target = receiverID
	}
	publish(ctx, s.bus, event, edgePayload{ActorID: actorID, TargetID: target})
	return nil
}

// Unfollow removes followerID→followeeID. Idempotent.
func (s *SocialGraph) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return ErrInvalidTarget
	}
	return s.dropFollow(ctx, followerID, followeeID, followerID, realtime.EventUnfollowed)
}

// RemoveFollower removes followerID→ownerID on the owner's behalf. Idempotent.
func (s *SocialGraph) RemoveFollower(ctx context.Context, ownerID, followerID uint) error {
	if ownerID == followerID {
		return ErrInvalidTarget
	}
	return s.dropFollow(ctx, followerID, ownerID, ownerID, realtime.EventFollowerRemoved)
}

func (s *SocialGraph) dropFollow(ctx context.Context, followerID, followeeID, actorID uint, event realtime.Event) error {
	removed, err := s.graph.DeleteFollow(ctx, followerID, followeeID)
	if err != nil {
		return apperr.Internal("failed to delete follow", err)
	}
	if !removed {
		return nil
	}

	s.invalidateFollow(ctx, followerID, followeeID)
	target := followerID
	if actorID == followerID {
		target = followeeID
	}
	publish(ctx, s.bus, event, edgePayload{ActorID: actorID, TargetID: target})
	return nil
}

// Block adds blockerID→targetID. Follow edges are left as they are; every
// listing filters block relations out.
func (s *SocialGraph) Block(ctx context.Context, blockerID, targetID uint) error {
	if blockerID == targetID {
		return ErrInvalidTarget
	}
	if _, err := lookupUser(ctx, s.users, targetID); err != nil {
		return err
	}
	if err := s.graph.CreateBlock(ctx, blockerID, targetID); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil
		}
		return apperr.Internal("failed to block user", err)
	}

	s.invalidateUser(ctx, blockerID)
	s.invalidateUser(ctx, targetID)
	publish(ctx, s.bus, realtime.EventUserBlocked, edgePayload{ActorID: blockerID, TargetID: targetID})
	return nil
}

func (s *SocialGraph) Unblock(ctx context.Context, blockerID, targetID uint) error {
	if blockerID == targetID {
		return ErrInvalidTarget
	}
	removed, err := s.graph.DeleteBlock(ctx, blockerID, targetID)
	if err != nil {
		return apperr.Internal("failed to unblock user", err)
	}
	if !removed {
		return nil
	}

	s.invalidateUser(ctx, blockerID)
	s.invalidateUser(ctx, targetID)
	publish(ctx, s.bus, realtime.EventUserUnblocked, edgePayload{ActorID: blockerID, TargetID: targetID})
	return nil
}

// blockRelations returns every user in a block relation with userID, in
// either direction.
func (s *SocialGraph) blockRelations(ctx context.Context, userID uint) (map[uint]struct{}, error) {
	blocked, err := s.graph.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load blocks", err)
	}
	blockedBy, err := s.graph.BlockedByIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load blocks", err)
	}
	return toSet(blocked, blockedBy), nil
}

// FetchFollowersByType returns the online, all, blocked or pending listing.
// The online and all listings leave out the user, anyone in a block relation
// with them and anyone already following them.
func (s *SocialGraph) FetchFollowersByType(ctx context.Context, userID uint, listing models.ListingType) (*models.UserListing, error) {
	switch listing {
	case models.ListingOnline, models.ListingAll, models.ListingBlocked, models.ListingPending:
	default:
		return nil, apperr.Validation("invalid listing type: " + string(listing))
	}

	return Remember(ctx, s.cache, cache.UserListingKey(string(listing), userID), func(ctx context.Context) (*models.UserListing, error) {
		switch listing {
		case models.ListingBlocked:
			ids, err := s.graph.BlockedIDs(ctx, userID)
			if err != nil {
				return nil, apperr.Internal("failed to load blocks", err)
			}
			users, err := compactUsers(ctx, s.users, ids)
			if err != nil {
				return nil, err
			}
			return &models.UserListing{Users: users}, nil

		case models.ListingPending:
			exclude, err := s.blockRelations(ctx, userID)
			if err != nil {
				return nil, err
			}
			sent, err := s.graph.SentRequestIDs(ctx, userID)
			if err != nil {
				return nil, apperr.Internal("failed to load follow requests", err)
			}
			received, err := s.graph.ReceivedRequestIDs(ctx, userID)
			if err != nil {
				return nil, apperr.Internal("failed to load follow requests", err)
			}
			sentUsers, err := compactUsers(ctx, s.users, without(sent, exclude))
			if err != nil {
				return nil, err
			}
			receivedUsers, err := compactUsers(ctx, s.users, without(received, exclude))
			if err != nil {
				return nil, err
			}
			return &models.UserListing{IsPending: true, RequestSent: sentUsers, RequestReceived: receivedUsers}, nil
		}

		exclude, err := s.blockRelations(ctx, userID)
		if err != nil {
			return nil, err
		}
		followers, err := s.graph.FollowerIDs(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to load followers", err)
		}
		for _, id := range followers {
			exclude[id] = struct{}{}
		}
		exclude[userID] = struct{}{}

		filter := repositories.UserFilter{OnlineOnly: listing == models.ListingOnline}
		for id := range exclude {
			filter.ExcludeIDs = append(filter.ExcludeIDs, id)
		}
		found, err := s.users.ListUsers(ctx, filter)
		if err != nil {
			return nil, apperr.Internal("failed to list users", err)
		}
		users := make([]models.UserCompact, 0, len(found))
		for i := range found {
			users = append(users, found[i].ToCompact())
		}
		return &models.UserListing{Users: users}, nil
	})
}

// edgeListing caches the users at the other end of one edge set, minus block
// relations.
func (s *SocialGraph) edgeListing(ctx context.Context, key string, userID uint, edges func(context.Context, uint) ([]uint, error)) ([]models.UserCompact, error) {
	return Remember(ctx, s.cache, key, func(ctx context.Context) ([]models.UserCompact, error) {
		ids, err := edges(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to load relations", err)
		}
		exclude, err := s.blockRelations(ctx, userID)
		if err != nil {
			return nil, err
		}
		return compactUsers(ctx, s.users, without(ids, exclude))
	})
}

func (s *SocialGraph) FetchFollowers(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	return s.edgeListing(ctx, cache.FollowersKey(userID), userID, s.graph.FollowerIDs)
}

func (s *SocialGraph) FetchFollowing(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	return s.edgeListing(ctx, cache.FollowingKey(userID), userID, s.graph.FollowingIDs)
}

func (s *SocialGraph) FetchAllSentRequests(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	return s.edgeListing(ctx, cache.SentRequestsKey(userID), userID, s.graph.SentRequestIDs)
}

func (s *SocialGraph) FetchAllReceivedRequests(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	return s.edgeListing(ctx, cache.ReceivedRequestsKey(userID), userID, s.graph.ReceivedRequestIDs)
}
