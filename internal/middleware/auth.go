package middleware

import (
	"errors"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "user_id"

// Auth rejects requests without a valid bearer token and stores the user id
// under UserIDKey.
func Auth(verifier IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request())
			if !ok {
				return apperr.Unauthorized("missing or malformed Authorization header")
			}
			userID, err := verifier.Verify(c.Request().Context(), token)
			if errors.Is(err, ErrInvalidToken) {
				return apperr.Unauthorized("invalid or expired token")
			}
			if err != nil {
				return apperr.Internal("failed to verify token", err)
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// SocketSession copies the caller's websocket session id from the
// X-Socket-Session header into the request context, so events caused by the
// request skip the session that made it.
func SocketSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(realtime.SessionHeader); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(realtime.WithSession(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// UserID returns the id stored by Auth, or 0.
func UserID(c echo.Context) uint {
	id, _ := c.Get(UserIDKey).(uint)
	return id
}
