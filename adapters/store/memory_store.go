package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethid/ethid/core"
	"github.com/ethid/ethid/ports"
)

// MemoryNonceStore keeps nonce records in process memory, indexed by both
// the session id and the nonce id. It backs tests and single-instance
// deployments; anything replicated wants the Redis store.
type MemoryNonceStore struct {
	mu          sync.RWMutex
	bySessionID map[string]*core.Nonce
	byNonceID   map[string]*core.Nonce
}

// NewMemoryNonceStore creates an empty in-memory nonce store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		bySessionID: make(map[string]*core.Nonce),
		byNonceID:   make(map[string]*core.Nonce),
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// Create stores a new nonce under both keys.
func (s *MemoryNonceStore) Create(ctx context.Context, nonce *core.Nonce) error {
	if nonce == nil || nonce.ID == "" || nonce.SessionID == "" {
		return fmt.Errorf("nonce record is incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySessionID[nonce.SessionID]; ok {
		return core.ErrDuplicateNonce
	}
	if _, ok := s.byNonceID[nonce.ID]; ok {
		return core.ErrDuplicateNonce
	}

	stored := *nonce
	s.bySessionID[stored.SessionID] = &stored
	s.byNonceID[stored.ID] = &stored
	return nil
}

// GetBySessionID returns the nonce for a session id, or (nil, nil).
func (s *MemoryNonceStore) GetBySessionID(ctx context.Context, sessionID string) (*core.Nonce, error) {
	if sessionID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nonce, ok := s.bySessionID[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *nonce
	return &copied, nil
}

// GetByNonceID returns the nonce for a nonce id, or (nil, nil).
func (s *MemoryNonceStore) GetByNonceID(ctx context.Context, nonceID string) (*core.Nonce, error) {
	if nonceID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nonce, ok := s.byNonceID[nonceID]
	if !ok {
		return nil, nil
	}
	copied := *nonce
	return &copied, nil
}

// ResolveUser binds a user id to an unresolved nonce.
func (s *MemoryNonceStore) ResolveUser(ctx context.Context, nonceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.byNonceID[nonceID]
	if !ok {
		return core.ErrNonceNotFound
	}
	if nonce.UserID != "" {
		return core.ErrAlreadyResolved
	}

	nonce.UserID = userID
	return nil
}

// Delete removes a nonce under both keys.
func (s *MemoryNonceStore) Delete(ctx context.Context, nonceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.byNonceID[nonceID]
	if !ok {
		return core.ErrNonceNotFound
	}

	delete(s.byNonceID, nonce.ID)
	delete(s.bySessionID, nonce.SessionID)
	return nil
}

// MemoryIdentityStore keeps identities in process memory, indexed by both
// the user id and the address.
type MemoryIdentityStore struct {
	mu        sync.RWMutex
	byUserID  map[string]*core.Identity
	byAddress map[string]*core.Identity
}

// NewMemoryIdentityStore creates an empty in-memory identity store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		byUserID:  make(map[string]*core.Identity),
		byAddress: make(map[string]*core.Identity),
	}
}

var _ ports.IdentityStore = (*MemoryIdentityStore)(nil)

// Create stores a new identity under both keys.
func (s *MemoryIdentityStore) Create(ctx context.Context, identity *core.Identity) error {
	if identity == nil || identity.UserID == "" || identity.Address == "" {
		return fmt.Errorf("identity record is incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUserID[identity.UserID]; ok {
		return core.ErrDuplicateIdentity
	}
	if _, ok := s.byAddress[identity.Address]; ok {
		return core.ErrDuplicateIdentity
	}

	stored := *identity
	s.byUserID[stored.UserID] = &stored
	s.byAddress[stored.Address] = &stored
	return nil
}

// GetByUserID returns the identity for a user id, or (nil, nil).
func (s *MemoryIdentityStore) GetByUserID(ctx context.Context, userID string) (*core.Identity, error) {
	if userID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byUserID[userID]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

// GetByAddress returns the identity for an address, or (nil, nil).
func (s *MemoryIdentityStore) GetByAddress(ctx context.Context, address string) (*core.Identity, error) {
	if address == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byAddress[address]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

// RecordSignin increments the signin counter for an identity.
func (s *MemoryIdentityStore) RecordSignin(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byUserID[userID]
	if !ok {
		return core.ErrIdentityNotFound
	}

	identity.SigninCount++
	return nil
}

// MemoryLedger keeps received transactions in process memory.
type MemoryLedger struct {
	mu        sync.RWMutex
	byAddress map[string][]*core.Transaction
}

// NewMemoryLedger creates an empty in-memory transaction ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byAddress: make(map[string][]*core.Transaction)}
}

var _ ports.TransactionLedger = (*MemoryLedger)(nil)

// Record appends a received transaction to the ledger.
func (l *MemoryLedger) Record(ctx context.Context, tx *core.Transaction) error {
	if tx == nil || tx.Address == "" {
		return fmt.Errorf("transaction record is incomplete")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *tx
	l.byAddress[stored.Address] = append(l.byAddress[stored.Address], &stored)
	return nil
}

// ReceivedBy returns all transactions received from an address.
func (l *MemoryLedger) ReceivedBy(ctx context.Context, address string) ([]*core.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	txs := l.byAddress[address]
	out := make([]*core.Transaction, 0, len(txs))
	for _, tx := range txs {
		copied := *tx
		out = append(out, &copied)
	}
	return out, nil
}
