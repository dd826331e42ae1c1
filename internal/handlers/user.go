package handlers

import (
	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	users *services.Users
}

func NewUserHandler(users *services.Users) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

// RegisterAuthRoutes registers the public account routes. Tokens are minted
// by the identity provider, not here.
func (h *UserHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
}

// Register creates a local account
func (h *UserHandler) Register(c echo.Context) error {
	var req models.RegisterUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return created(c, "User registered successfully", user)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "", user.ToCompact())
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetProfile(c.Request().Context(), me)
	if err != nil {
		return err
	}
	return ok(c, "", user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateProfile(c.Request().Context(), me, req)
	if err != nil {
		return err
	}
	return ok(c, "Profile updated", user)
}

// SearchUsers searches users by name or user name
func (h *UserHandler) SearchUsers(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	query := c.QueryParam("q")
	if query == "" {
		return apperr.Validation("Search query 'q' is required")
	}
	users, err := h.users.Search(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return ok(c, "", users)
}
