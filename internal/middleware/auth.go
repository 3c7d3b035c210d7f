// Package middleware holds the Echo middleware shared by the order
// lifecycle core's consumer, admin, and internal-service HTTP surfaces.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

// PrincipalContextKey is the context key the authenticated Principal is
// stored under, set by JWTAuth/OptionalJWTAuth.
const PrincipalContextKey contextKey = "principal"

// Principal is the authenticated caller, decoded from the bearer JWT's
// claims.
type Principal struct {
	UserID string
	Email  string
	Role   string // "customer" or "admin"
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth verifies the bearer token on every request using secret, and
// stores the decoded Principal in the request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := parsePrincipal(c.Request(), secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization token")
			}
			ctx := context.WithValue(c.Request().Context(), PrincipalContextKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// OptionalJWTAuth decodes the bearer token if present but never rejects
// the request — used on routes a guest may reach (cart/checkout) where
// an authenticated principal just changes which owner the cart resolves
// to.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if principal, err := parsePrincipal(c.Request(), secret); err == nil {
				ctx := context.WithValue(c.Request().Context(), PrincipalContextKey, principal)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects the request unless the authenticated principal
// holds the admin role. Must run after JWTAuth/OptionalJWTAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := PrincipalFromContext(c.Request().Context())
		if !ok || !p.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}
		return next(c)
	}
}

func parsePrincipal(r *http.Request, secret string) (Principal, error) {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return Principal{}, errors.New("missing bearer token")
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	return Principal{UserID: c.Subject, Email: c.Email, Role: c.Role}, nil
}

// PrincipalFromContext retrieves the Principal stored by JWTAuth or
// OptionalJWTAuth, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}
