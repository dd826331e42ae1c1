package services

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceTracksEverySession(t *testing.T) {
	h := newHarness(t)
	h.users.add(1, "Alice")
	p := h.svc.Presence
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx, 1, "tab-1"))
	require.NoError(t, p.Connect(ctx, 1, "tab-2"))
	assert.True(t, p.IsOnline(1))
	assert.Equal(t, 1, h.bus.count(realtime.EventUserStatusChanged))

	require.NoError(t, p.Disconnect(ctx, 1, "tab-1"))
	assert.True(t, p.IsOnline(1))
	u, err := h.users.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	require.NoError(t, p.Disconnect(ctx, 1, "tab-2"))
	assert.False(t, p.IsOnline(1))
	u, err = h.users.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)

	assert.Equal(t, 2, h.bus.count(realtime.EventUserStatusChanged))
	assert.Equal(t, 2, h.users.setOnlines)

	last := h.bus.last()
	assert.Equal(t, "tab-2", last.Exclude)
	assert.Equal(t, statusPayload{UserID: 1, IsOnline: false}, last.Payload)
}

func TestPresenceIgnoresRepeatsAndUnknownSessions(t *testing.T) {
	h := newHarness(t)
	h.users.add(1, "Alice")
	p := h.svc.Presence
	ctx := context.Background()

	require.NoError(t, p.Disconnect(ctx, 1, "never-connected"))
	require.NoError(t, p.Connect(ctx, 1, "tab-1"))
	require.NoError(t, p.Connect(ctx, 1, "tab-1"))
	require.NoError(t, p.Disconnect(ctx, 1, "tab-9"))
	assert.True(t, p.IsOnline(1))

	require.NoError(t, p.Disconnect(ctx, 1, "tab-1"))
	require.NoError(t, p.Disconnect(ctx, 1, "tab-1"))
	assert.Equal(t, 2, h.bus.count(realtime.EventUserStatusChanged))
}

func TestPresenceInvalidatesOnlineListings(t *testing.T) {
	h := newHarness(t)
	h.users.add(1, "Alice")
	h.users.add(2, "Bob")
	ctx := context.Background()

	listing, err := h.svc.Graph.FetchFollowersByType(ctx, 2, models.ListingOnline)
	require.NoError(t, err)
	assert.Empty(t, listing.Users)
	key := cache.UserListingKey(string(models.ListingOnline), 2)
	require.True(t, h.redis.Exists(key))

	require.NoError(t, h.svc.Presence.Connect(ctx, 1, "tab-1"))
	assert.False(t, h.redis.Exists(key))

	listing, err = h.svc.Graph.FetchFollowersByType(ctx, 2, models.ListingOnline)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids(listing.Users))
}

func TestPresenceKeepsSessionWhenPersistFails(t *testing.T) {
	h := newHarness(t)
	p := h.svc.Presence
	ctx := context.Background()

	// user 7 is unknown to the repository
	assert.Error(t, p.Connect(ctx, 7, "tab-1"))
	assert.True(t, p.IsOnline(7))
	assert.Zero(t, h.bus.count(realtime.EventUserStatusChanged))

	assert.Error(t, p.Disconnect(ctx, 7, "tab-1"))
	assert.False(t, p.IsOnline(7))
}

func TestSlowPresenceWriteDoesNotStallOtherUsers(t *testing.T) {
	h := newHarness(t)
	h.users.add(1, "Alice")
	h.users.add(2, "Bob")
	p := h.svc.Presence
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.users.beforeSetOnline = func(id uint, online bool) {
		if id == 1 && online {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- p.Connect(ctx, 1, "slow") }()
	<-entered

	// user 1's write is still in flight
	require.NoError(t, p.Connect(ctx, 2, "fast"))
	assert.True(t, p.IsOnline(2))
	assert.True(t, p.IsOnline(1))

	close(release)
	require.NoError(t, <-done)
	u, err := h.users.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)
}

func TestPresenceLateWriteDoesNotOverrideNewerState(t *testing.T) {
	h := newHarness(t)
	h.users.add(1, "Alice")
	p := h.svc.Presence
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.users.beforeSetOnline = func(id uint, online bool) {
		if online {
			close(entered)
			<-release
		}
	}

	connected := make(chan error, 1)
	go func() { connected <- p.Connect(ctx, 1, "tab-1") }()
	<-entered

	disconnected := make(chan error, 1)
	go func() { disconnected <- p.Disconnect(ctx, 1, "tab-1") }()
	require.Eventually(t, func() bool { return !p.IsOnline(1) }, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-connected)
	require.NoError(t, <-disconnected)

	u, err := h.users.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
	last := h.bus.last()
	assert.Equal(t, statusPayload{UserID: 1, IsOnline: false}, last.Payload)
}
