// Package sessiontoken issues and parses the signed cookie that carries
// the browser session across the three authentication phases. The token is
// the transport layer's Session cell: the orchestrator never sees it, it
// only receives the session id as a parameter.
package sessiontoken

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ethid/ethid/core"
)

// Audience marks session tokens so they cannot be replayed as anything
// else.
const Audience = "ethid:session"

// Claims carries the session handle: the session id rides in the token id,
// the user id in the subject once the session is bound.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager signs and parses session tokens with ES256.
type Manager struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
}

// NewManager creates a session token manager. The ttl should comfortably
// exceed the nonce expiration delay so a session outlives its challenge.
func NewManager(signKey *ecdsa.PrivateKey, ttl time.Duration) *Manager {
	return &Manager{signKey: signKey, ttl: ttl}
}

// Issue signs a token for the session. userID is empty for anonymous
// sessions and set once the poll phase binds an identity.
func (m *Manager) Issue(sessionID, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a session token and returns the session handle.
func (m *Manager) Parse(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &m.signKey.PublicKey, nil
	}, jwt.WithAudience(Audience))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ID == "" {
		return nil, fmt.Errorf("invalid session claims")
	}

	return &core.Session{ID: claims.ID, UserID: claims.Subject}, nil
}
