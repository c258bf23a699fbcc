package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// TokenHeader is the header the browser pages send the session token in.
const TokenHeader = "x-auth-token"

// TokenVerifier verifies a session token.
type TokenVerifier interface {
	Verify(tokenStr string) (*Claims, error)
}

// TokenFromRequest extracts the session token from the x-auth-token header,
// falling back to an Authorization: Bearer header.
func TokenFromRequest(c echo.Context) string {
	if tok := c.Request().Header.Get(TokenHeader); tok != "" {
		return strings.TrimSpace(tok)
	}
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Authenticate rejects requests without a valid session token and stores
// the caller's id and role on the request context.
func Authenticate(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := verifier.Verify(TokenFromRequest(c))
			if err != nil {
				return apperr.HTTP(err)
			}
			ctx := ContextWithUser(c.Request().Context(), claims.Subject, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ContextWithUser returns ctx carrying the authenticated user's id and role.
func ContextWithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}
