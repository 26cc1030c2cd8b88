package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const adminContextKey contextKey = "admin"

const (
	jwtClaimAdminID = "admin_id"
	jwtClaimEmail   = "email"
)

// Authenticate verifies the Bearer token on moderation routes and stores
// its claims in the request context. Any valid token grants full access:
// there is a single admin principal, no role distinctions.
func Authenticate(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAdminIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(adminContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("admin claims not found in context")
	}

	idClaim, ok := claims[jwtClaimAdminID]
	if !ok {
		return 0, fmt.Errorf("missing %q claim in token", jwtClaimAdminID)
	}

	idFloat, ok := idClaim.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid type for %q claim: expected number, got %T", jwtClaimAdminID, idClaim)
	}

	id := int(idFloat)
	if id <= 0 {
		return 0, fmt.Errorf("invalid admin ID value in %q claim: %d", jwtClaimAdminID, id)
	}
	return id, nil
}

func GetAdminEmailFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(adminContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("admin claims not found in context")
	}

	emailClaim, ok := claims[jwtClaimEmail]
	if !ok {
		return "", fmt.Errorf("missing %q claim in token", jwtClaimEmail)
	}

	email, ok := emailClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for %q claim: expected string, got %T", jwtClaimEmail, emailClaim)
	}
	return email, nil
}
