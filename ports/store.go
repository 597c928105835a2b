package ports

import (
	"context"

	"github.com/ethid/ethid/core"
)

// NonceStore persists nonce records under two keys: the session id and the
// nonce id. Implementations keep both indexes in step atomically: a record
// is visible under both keys or under neither.
type NonceStore interface {
	// Create stores a new nonce, failing with core.ErrDuplicateNonce if
	// either key is already taken.
	Create(ctx context.Context, nonce *core.Nonce) error

	// GetBySessionID and GetByNonceID return (nil, nil) for an absent or
	// empty key, never an error.
	GetBySessionID(ctx context.Context, sessionID string) (*core.Nonce, error)
	GetByNonceID(ctx context.Context, nonceID string) (*core.Nonce, error)

	// ResolveUser binds a user id to the nonce. The bind only succeeds
	// while the nonce exists and carries no user id yet: a record that is
	// gone yields core.ErrNonceNotFound, one already bound yields
	// core.ErrAlreadyResolved. This is the compare-and-swap that makes a
	// nonce single-use under concurrent callbacks.
	ResolveUser(ctx context.Context, nonceID, userID string) error

	// Delete removes the record under both keys, failing with
	// core.ErrNonceNotFound when it is already gone. Callers treat
	// "already gone" as having lost a benign race, not as a retryable
	// fault.
	Delete(ctx context.Context, nonceID string) error
}

// IdentityStore persists identities keyed by user id and by address.
type IdentityStore interface {
	// Create stores a new identity, failing with core.ErrDuplicateIdentity
	// if either key is already taken.
	Create(ctx context.Context, identity *core.Identity) error

	// GetByUserID and GetByAddress return (nil, nil) for an absent or
	// empty key, never an error.
	GetByUserID(ctx context.Context, userID string) (*core.Identity, error)
	GetByAddress(ctx context.Context, address string) (*core.Identity, error)

	// RecordSignin increments the signin counter, failing with
	// core.ErrIdentityNotFound when the identity does not exist.
	RecordSignin(ctx context.Context, userID string) error
}

// TransactionLedger records payments received from signer addresses. The
// ledger backs the goodwill oracle.
type TransactionLedger interface {
	Record(ctx context.Context, tx *core.Transaction) error
	ReceivedBy(ctx context.Context, address string) ([]*core.Transaction, error)
}
