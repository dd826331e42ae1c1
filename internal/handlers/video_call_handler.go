package handlers

import (
	"time"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const callTokenTTL = 120 * time.Minute

// VideoCallHandler signs join tokens for the third-party video/audio call
// SDK. The meeting id itself travels over the realtime relay.
type VideoCallHandler struct {
	apiKey string
	secret []byte
}

func NewVideoCallHandler(apiKey, secret string) *VideoCallHandler {
	return &VideoCallHandler{apiKey: apiKey, secret: []byte(secret)}
}

func (h *VideoCallHandler) RegisterVideoCallRoutes(g *echo.Group) {
	g.GET("/video-call/token", h.GenerateToken)
}

type callClaims struct {
	APIKey      string   `json:"apikey"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func (h *VideoCallHandler) GenerateToken(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	if h.apiKey == "" || len(h.secret) == 0 {
		return apperr.Internal("video calls are not configured", nil)
	}

	claims := callClaims{
		APIKey:      h.apiKey,
		Permissions: []string{"allow_join", "allow_mod"},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(callTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return apperr.Internal("failed to sign call token", err)
	}
	return ok(c, "", echo.Map{"token": token})
}
