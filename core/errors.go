package core

import "errors"

// Callback validation failures, in pipeline order. Each one is a distinct
// client-visible reason; they are never collapsed into a generic error.
var (
	ErrInvalidAddress   = errors.New("address is invalid")
	ErrInvalidChallenge = errors.New("challenge is invalid")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownNonce     = errors.New("unknown nonce")
	ErrExpiredNonce     = errors.New("nonce has expired")
	ErrAlreadyResolved  = errors.New("nonce has already been resolved")
	ErrGoodwillDenied   = errors.New("goodwill check failed")
)

// ErrPersistenceFailed is a server fault: store contention or backend
// unavailability. It is surfaced generically and is safe for the client to
// retry.
var ErrPersistenceFailed = errors.New("persistence failed")

// Store-level sentinels. The orchestrator maps these onto the taxonomy
// above or wraps them into ErrPersistenceFailed.
var (
	ErrNonceNotFound     = errors.New("nonce not found")
	ErrDuplicateNonce    = errors.New("nonce already exists")
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrDuplicateIdentity = errors.New("identity already exists")
)
