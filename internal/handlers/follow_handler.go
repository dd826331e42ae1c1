package handlers

import (
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler exposes the social graph: follow requests, follows and blocks.
type FollowHandler struct {
	graph *services.SocialGraph
}

func NewFollowHandler(graph *services.SocialGraph) *FollowHandler {
	return &FollowHandler{graph: graph}
}

// RegisterFollowRoutes registers follow-related routes. :id is always the
// other user.
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	f := g.Group("/follow")
	f.POST("/requests/:id", h.SendFollowRequest)
	f.DELETE("/requests/:id", h.WithdrawFollowRequest)
	f.POST("/requests/:id/accept", h.AcceptFollowRequest)
	f.POST("/requests/:id/ignore", h.IgnoreFollowRequest)
	f.GET("/requests/sent", h.FetchAllSentRequests)
	f.GET("/requests/received", h.FetchAllReceivedRequests)
	f.DELETE("/following/:id", h.Unfollow)
	f.DELETE("/followers/:id", h.RemoveFollower)
	f.GET("/followers", h.FetchFollowers)
	f.GET("/following", h.FetchFollowing)
	f.GET("/users/:type", h.FetchFollowersByType)

	g.POST("/users/:id/block", h.Block)
	g.DELETE("/users/:id/block", h.Unblock)
}

// pair resolves the caller and the :id user.
func pair(c echo.Context) (uint, uint, error) {
	me, err := currentUser(c)
	if err != nil {
		return 0, 0, err
	}
	other, err := paramID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	return me, other, nil
}

func (h *FollowHandler) mutate(c echo.Context, message string, op func(me, other uint) error) error {
	me, other, err := pair(c)
	if err != nil {
		return err
	}
	if err := op(me, other); err != nil {
		return err
	}
	return ok(c, message, echo.Map{"user_id": other})
}

func (h *FollowHandler) SendFollowRequest(c echo.Context) error {
	return h.mutate(c, "Follow request sent", func(me, other uint) error {
		return h.graph.SendFollowRequest(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) WithdrawFollowRequest(c echo.Context) error {
	return h.mutate(c, "Follow request withdrawn", func(me, other uint) error {
		return h.graph.WithdrawFollowRequest(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) AcceptFollowRequest(c echo.Context) error {
	return h.mutate(c, "Follow request accepted", func(me, other uint) error {
		return h.graph.AcceptFollowRequest(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) IgnoreFollowRequest(c echo.Context) error {
	return h.mutate(c, "Follow request ignored", func(me, other uint) error {
		return h.graph.IgnoreFollowRequest(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) Unfollow(c echo.Context) error {
	return h.mutate(c, "Unfollowed", func(me, other uint) error {
		return h.graph.Unfollow(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) RemoveFollower(c echo.Context) error {
	return h.mutate(c, "Follower removed", func(me, other uint) error {
		return h.graph.RemoveFollower(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) Block(c echo.Context) error {
	return h.mutate(c, "User blocked", func(me, other uint) error {
		return h.graph.Block(c.Request().Context(), me, other)
	})
}

func (h *FollowHandler) Unblock(c echo.Context) error {
	return h.mutate(c, "User unblocked", func(me, other uint) error {
		return h.graph.Unblock(c.Request().Context(), me, other)
	})
}

// FetchFollowersByType serves the online, all, blocked and pending listings.
func (h *FollowHandler) FetchFollowersByType(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	listing, err := h.graph.FetchFollowersByType(c.Request().Context(), me, models.ListingType(c.Param("type")))
	if err != nil {
		return err
	}
	return ok(c, "", listing)
}

func (h *FollowHandler) list(c echo.Context, fetch func(echo.Context, uint) ([]models.UserCompact, error)) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := fetch(c, me)
	if err != nil {
		return err
	}
	return ok(c, "", users)
}

func (h *FollowHandler) FetchFollowers(c echo.Context) error {
	return h.list(c, func(c echo.Context, me uint) ([]models.UserCompact, error) {
		return h.graph.FetchFollowers(c.Request().Context(), me)
	})
}

func (h *FollowHandler) FetchFollowing(c echo.Context) error {
	return h.list(c, func(c echo.Context, me uint) ([]models.UserCompact, error) {
		return h.graph.FetchFollowing(c.Request().Context(), me)
	})
}

func (h *FollowHandler) FetchAllSentRequests(c echo.Context) error {
	return h.list(c, func(c echo.Context, me uint) ([]models.UserCompact, error) {
		return h.graph.FetchAllSentRequests(c.Request().Context(), me)
	})
}

func (h *FollowHandler) FetchAllReceivedRequests(c echo.Context) error {
	return h.list(c, func(c echo.Context, me uint) ([]models.UserCompact, error) {
		return h.graph.FetchAllReceivedRequests(c.Request().Context(), me)
	})
}
