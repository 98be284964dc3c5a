package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator validates HS256 bearer tokens and resolves the caller's user id.
type Authenticator struct {
	secret    []byte
	userClaim string
}

// NewAuthenticator returns an Authenticator. userClaim names the claim that
// holds the user id; "sub" is consulted when it is missing.
func NewAuthenticator(secret, userClaim string) *Authenticator {
	if strings.TrimSpace(userClaim) == "" {
		userClaim = "user_id"
	}
	return &Authenticator{secret: []byte(secret), userClaim: userClaim}
}

// ParseToken returns the user id carried by tokenStr.
func (a *Authenticator) ParseToken(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	for _, key := range []string{a.userClaim, "sub"} {
		if userID, ok := claims[key].(string); ok && strings.TrimSpace(userID) != "" {
			return userID, nil
		}
	}
	return "", fmt.Errorf("%w: missing %s claim", jwt.ErrTokenInvalidClaims, a.userClaim)
}

// Middleware rejects requests without a valid token. The token is read from
// the Authorization header, or from the token query parameter for websocket
// upgrades which cannot set headers in browsers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			utils.RespondError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}

		userID, err := a.ParseToken(tokenStr)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "token expired"
			}
			utils.RespondError(w, http.StatusUnauthorized, message)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if auth == "" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the authenticated user id, or "" outside authenticated routes.
func UserIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
