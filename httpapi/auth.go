package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AgentTokenTTL is the spec §4.9 "long-lived bearer token (≈ 30 days)".
const AgentTokenTTL = 30 * 24 * time.Hour

type claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the long-lived agent bearer tokens
// exchanged for a short OAuth session (spec §6 `POST /auth/agent-token`).
type TokenIssuer struct {
	signingKey []byte
}

func NewTokenIssuer(signingKey []byte) *TokenIssuer {
	return &TokenIssuer{signingKey: signingKey}
}

func (t *TokenIssuer) Issue(userID string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AgentTokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(t.signingKey)
}

var ErrInvalidToken = errors.New("httpapi: invalid or expired token")

func (t *TokenIssuer) Verify(tokenStr string) (userID string, err error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return t.signingKey, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

type ctxKey int

const userIDKey ctxKey = 0

// RequireAuth extracts and verifies the bearer token, attaching the
// resolved user id to the request context (spec §6: "Auth via Bearer
// token"). On failure it writes a 401 with the error envelope itself.
func (t *TokenIssuer) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := t.Verify(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}
