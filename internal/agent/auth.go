package agent

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// hostAudience is the audience every host token carries.
const hostAudience = "ghosttube-agent"

// ErrTokenInvalid is returned when a host token fails validation.
var ErrTokenInvalid = errors.New("invalid host token")

// HostClaims are the claims of a playback host token.
type HostClaims struct {
	jwt.RegisteredClaims
	Device string `json:"device,omitempty"`
}

// IssueHostToken signs a token that admits a playback host to the agent.
// A zero ttl issues a token without expiry.
func IssueHostToken(secret, deviceID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret is required")
	}

	now := time.Now()
	claims := HostClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "host",
			Audience: jwt.ClaimStrings{hostAudience},
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Device: deviceID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing host token: %w", err)
	}
	return signed, nil
}

// ParseHostToken validates a host token and returns its claims.
func ParseHostToken(tokenString, secret string) (*HostClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &HostClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(hostAudience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*HostClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// hostToken extracts the token from a WebSocket upgrade request. Browsers
// cannot set headers on a WebSocket handshake, so the query string is
// accepted alongside a bearer header.
func hostToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// authorizeHost reports whether r may connect as the playback host. With no
// secret configured every request is admitted.
func (s *Server) authorizeHost(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Auth.Secret == "" {
		return true
	}

	token := hostToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "host token required")
		return false
	}
	if _, err := ParseHostToken(token, s.cfg.Auth.Secret); err != nil {
		s.logger.Warn("host token rejected", "remote_addr", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid host token")
		return false
	}
	return true
}
