package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/metrics"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
)

// Presence tracks the live sessions of each user. A user is online while at
// least one session is connected; only the first connect and the last
// disconnect change the stored flag and broadcast a status change.
//
// mu guards the session sets only. The store, cache and broadcast work of a
// transition runs outside it, serialized per user, and is skipped once a
// newer transition for the same user has been recorded.
type Presence struct {
	mu     sync.Mutex
	states map[uint]*presenceState
	online int

	users  repositories.UserRepository
	cache  *CacheCoordinator
	bus    realtime.Broadcaster
	logger *slog.Logger
}

type presenceState struct {
	sessions   map[string]struct{}
	generation uint64
	write      sync.Mutex
}

func NewPresence(d Deps) *Presence {
	return &Presence{
		states: make(map[uint]*presenceState),
		users:  d.Users,
		cache:  d.Cache,
		bus:    d.Bus,
		logger: d.Logger,
	}
}

type statusPayload struct {
	UserID   uint `json:"user_id"`
	IsOnline bool `json:"is_online"`
}

func (p *Presence) state(userID uint) *presenceState {
	st, ok := p.states[userID]
	if !ok {
		st = &presenceState{sessions: make(map[string]struct{})}
		p.states[userID] = st
	}
	return st
}

// Connect adds sessionID to userID's set. The session is tracked even when
// persisting the flag fails, so the matching Disconnect still balances it.
func (p *Presence) Connect(ctx context.Context, userID uint, sessionID string) error {
	p.mu.Lock()
	st := p.state(userID)
	if _, dup := st.sessions[sessionID]; dup {
		p.mu.Unlock()
		return nil
	}
	st.sessions[sessionID] = struct{}{}
	if len(st.sessions) > 1 {
		p.mu.Unlock()
		return nil
	}
	st.generation++
	gen := st.generation
	p.online++
	metrics.OnlineUsers.Set(float64(p.online))
	p.mu.Unlock()

	return p.transition(ctx, userID, sessionID, st, gen, true)
}

// Disconnect removes sessionID. Unknown sessions are ignored.
func (p *Presence) Disconnect(ctx context.Context, userID uint, sessionID string) error {
	p.mu.Lock()
	st, ok := p.states[userID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if _, known := st.sessions[sessionID]; !known {
		p.mu.Unlock()
		return nil
	}
	delete(st.sessions, sessionID)
	if len(st.sessions) > 0 {
		p.mu.Unlock()
		return nil
	}
	st.generation++
	gen := st.generation
	p.online--
	metrics.OnlineUsers.Set(float64(p.online))
	p.mu.Unlock()

	return p.transition(ctx, userID, sessionID, st, gen, false)
}

// IsOnline reports whether userID has a live session in this process.
func (p *Presence) IsOnline(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[userID]
	return ok && len(st.sessions) > 0
}

func (p *Presence) superseded(st *presenceState, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return st.generation != gen
}

func (p *Presence) transition(ctx context.Context, userID uint, sessionID string, st *presenceState, gen uint64, online bool) error {
	st.write.Lock()
	defer st.write.Unlock()
	if p.superseded(st, gen) {
		return nil
	}

	state := "offline"
	if online {
		state = "online"
	}
	metrics.PresenceTransitions.WithLabelValues(state).Inc()

	if err := p.users.SetOnline(ctx, userID, online); err != nil {
		p.logger.Error("failed to persist presence", "user_id", userID, "online", online, "error", err)
		return apperr.Internal("failed to update presence", err)
	}

	p.cache.InvalidatePattern(ctx,
		cache.UserListingPattern(string(models.ListingOnline)),
		cache.UserListingPattern(string(models.ListingAll)),
	)
	if p.bus != nil {
		p.bus.Publish(realtime.EventUserStatusChanged, statusPayload{UserID: userID, IsOnline: online}, sessionID)
	}
	p.logger.Info("presence changed", "user_id", userID, "state", state)
	return nil
}
