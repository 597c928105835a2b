package core

import "time"

// ExpirationDelay is how long a nonce stays valid after creation.
const ExpirationDelay = 600 * time.Second

// Nonce is the single-use record correlating a challenge, the browser
// session that requested it and, once the challenge has been answered, a
// user identity. It is the only shared secret between the browser and the
// external signer.
type Nonce struct {
	ID        string    `json:"nid"` // nonce identifier, embedded in the challenge URI
	SessionID string    `json:"sid"` // browser session that requested the challenge
	UserID    string    `json:"uid"` // empty until the callback resolves an identity
	CreatedAt time.Time `json:"created_at"`
}

// NewNonce creates an unresolved nonce for a session.
func NewNonce(sessionID, nonceID string) *Nonce {
	return &Nonce{
		ID:        nonceID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
}

// Expired reports whether the nonce is past its validity window. The
// boundary is exclusive: a nonce aged exactly ExpirationDelay is still
// valid.
func (n *Nonce) Expired(now time.Time) bool {
	return now.Sub(n.CreatedAt) > ExpirationDelay
}

// Resolved reports whether a callback has already bound an identity to
// this nonce.
func (n *Nonce) Resolved() bool {
	return n.UserID != ""
}
