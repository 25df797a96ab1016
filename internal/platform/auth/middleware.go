package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionCookie is the name of the HttpOnly cookie carrying the session token.
const SessionCookie = "session"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID    uuid.UUID
	Role      string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

func (i Identity) IsAdmin() bool   { return i.Role == RoleAdmin }
func (i Identity) IsDoctor() bool  { return i.Role == RoleDoctor }
func (i Identity) IsPatient() bool { return i.Role == RolePatient }

type JWTConfig struct {
	Tokens      *TokenIssuer
	Revocations RevocationStore
	// AllowQueryToken accepts ?access_token= for clients that cannot set
	// headers, such as browser WebSocket connections.
	AllowQueryToken bool
}

// JWTMiddleware authenticates the request from the Authorization header, the
// session cookie, or (when enabled) the access_token query parameter.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := extractToken(c, cfg.AllowQueryToken)
			if err != nil {
				return err
			}

			claims, err := cfg.Tokens.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			userID := uuid.MustParse(claims.Subject)
			if cfg.Revocations != nil {
				revoked, err := sessionRevoked(c.Request().Context(), cfg.Revocations, claims, userID)
				if err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "session check unavailable").SetInternal(err)
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
				}
			}

			id := Identity{
				UserID:  userID,
				Role:    claims.Role,
				Email:   claims.Email,
				TokenID: claims.ID,
			}
			if claims.ExpiresAt != nil {
				id.ExpiresAt = claims.ExpiresAt.Time
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			c.Set("user_id", id.UserID.String())

			return next(c)
		}
	}
}

func extractToken(c echo.Context, allowQuery bool) (string, error) {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if allowQuery {
		if tok := c.QueryParam("access_token"); tok != "" {
			return tok, nil
		}
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller and whether one was authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// CurrentIdentity returns the authenticated caller of c, or a 401 error.
func CurrentIdentity(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return id, nil
}
