package core

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a registered signer. The address is the natural key and is
// unique across all identities; the user id is stable for the identity's
// lifetime.
type Identity struct {
	UserID      string    `json:"uid"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	SigninCount int       `json:"signin_count"`
}

// NewIdentity creates an identity for an address with a fresh user id.
func NewIdentity(address string) *Identity {
	return &Identity{
		UserID:    uuid.New().String(),
		Address:   address,
		CreatedAt: time.Now(),
	}
}
