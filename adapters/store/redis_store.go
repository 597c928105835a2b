package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ethid/ethid/core"
	"github.com/ethid/ethid/ports"
)

// Key layout: each record is a hash under its primary id, with a plain
// string key per secondary natural key pointing back at the primary id.
// Multi-key invariants are enforced with small Lua scripts so both indexes
// move together.
const (
	nonceKeyPrefix     = "ethid:nonce:id:"
	nonceSessionPrefix = "ethid:nonce:sid:"
	identityKeyPrefix  = "ethid:identity:id:"
	identityAddrPrefix = "ethid:identity:addr:"
	ledgerKeyPrefix    = "ethid:tx:addr:"
)

// nonceTTL is the backstop reaper for nonces nobody ever looks up again.
// Expiry itself is always judged from the record's creation time; the grace
// beyond ExpirationDelay keeps the record around long enough for a late
// callback to be answered with "expired" rather than "unknown".
const nonceTTL = core.ExpirationDelay + 10*time.Minute

var createNonceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "sid", ARGV[1], "uid", "", "created_ms", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
redis.call("SET", KEYS[2], ARGV[4], "PX", ARGV[3])
return 1
`)

var resolveNonceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local uid = redis.call("HGET", KEYS[1], "uid")
if uid and uid ~= "" then
  return -1
end
redis.call("HSET", KEYS[1], "uid", ARGV[1])
return 1
`)

var deleteNonceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("DEL", KEYS[1], KEYS[2])
return 1
`)

var createIdentityScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "address", ARGV[1], "created_ms", ARGV[2], "signins", ARGV[3])
redis.call("SET", KEYS[2], ARGV[4])
return 1
`)

var recordSigninScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HINCRBY", KEYS[1], "signins", 1)
return 1
`)

// RedisNonceStore persists nonces in Redis. The key TTL doubles as the
// background reaper the in-memory store does not have.
type RedisNonceStore struct {
	client redis.UniversalClient
}

// NewRedisNonceStore creates a Redis-backed nonce store.
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// Create stores a new nonce under both keys atomically.
func (s *RedisNonceStore) Create(ctx context.Context, nonce *core.Nonce) error {
	if nonce == nil || nonce.ID == "" || nonce.SessionID == "" {
		return fmt.Errorf("nonce record is incomplete")
	}

	res, err := createNonceScript.Run(ctx, s.client,
		[]string{nonceKeyPrefix + nonce.ID, nonceSessionPrefix + nonce.SessionID},
		nonce.SessionID,
		nonce.CreatedAt.UnixMilli(),
		nonceTTL.Milliseconds(),
		nonce.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create nonce: %w", err)
	}
	if res == 0 {
		return core.ErrDuplicateNonce
	}
	return nil
}

// GetBySessionID returns the nonce for a session id, or (nil, nil).
func (s *RedisNonceStore) GetBySessionID(ctx context.Context, sessionID string) (*core.Nonce, error) {
	if sessionID == "" {
		return nil, nil
	}

	nonceID, err := s.client.Get(ctx, nonceSessionPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up nonce by session: %w", err)
	}
	return s.GetByNonceID(ctx, nonceID)
}

// GetByNonceID returns the nonce for a nonce id, or (nil, nil).
func (s *RedisNonceStore) GetByNonceID(ctx context.Context, nonceID string) (*core.Nonce, error) {
	if nonceID == "" {
		return nil, nil
	}

	fields, err := s.client.HGetAll(ctx, nonceKeyPrefix+nonceID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load nonce: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	createdMs, err := strconv.ParseInt(fields["created_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt nonce record %q: %w", nonceID, err)
	}

	return &core.Nonce{
		ID:        nonceID,
		SessionID: fields["sid"],
		UserID:    fields["uid"],
		CreatedAt: time.UnixMilli(createdMs),
	}, nil
}

// ResolveUser binds a user id to an unresolved nonce.
func (s *RedisNonceStore) ResolveUser(ctx context.Context, nonceID, userID string) error {
	res, err := resolveNonceScript.Run(ctx, s.client,
		[]string{nonceKeyPrefix + nonceID},
		userID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to resolve nonce: %w", err)
	}
	switch res {
	case 0:
		return core.ErrNonceNotFound
	case -1:
		return core.ErrAlreadyResolved
	}
	return nil
}

// Delete removes a nonce under both keys atomically.
func (s *RedisNonceStore) Delete(ctx context.Context, nonceID string) error {
	sessionID, err := s.client.HGet(ctx, nonceKeyPrefix+nonceID, "sid").Result()
	if err == redis.Nil {
		return core.ErrNonceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load nonce for delete: %w", err)
	}

	res, err := deleteNonceScript.Run(ctx, s.client,
		[]string{nonceKeyPrefix + nonceID, nonceSessionPrefix + sessionID},
	).Int()
	if err != nil {
		return fmt.Errorf("failed to delete nonce: %w", err)
	}
	if res == 0 {
		return core.ErrNonceNotFound
	}
	return nil
}

// RedisIdentityStore persists identities in Redis.
type RedisIdentityStore struct {
	client redis.UniversalClient
}

// NewRedisIdentityStore creates a Redis-backed identity store.
func NewRedisIdentityStore(client redis.UniversalClient) *RedisIdentityStore {
	return &RedisIdentityStore{client: client}
}

var _ ports.IdentityStore = (*RedisIdentityStore)(nil)

// Create stores a new identity under both keys atomically.
func (s *RedisIdentityStore) Create(ctx context.Context, identity *core.Identity) error {
	if identity == nil || identity.UserID == "" || identity.Address == "" {
		return fmt.Errorf("identity record is incomplete")
	}

	res, err := createIdentityScript.Run(ctx, s.client,
		[]string{identityKeyPrefix + identity.UserID, identityAddrPrefix + identity.Address},
		identity.Address,
		identity.CreatedAt.UnixMilli(),
		identity.SigninCount,
		identity.UserID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if res == 0 {
		return core.ErrDuplicateIdentity
	}
	return nil
}

// GetByUserID returns the identity for a user id, or (nil, nil).
func (s *RedisIdentityStore) GetByUserID(ctx context.Context, userID string) (*core.Identity, error) {
	if userID == "" {
		return nil, nil
	}

	fields, err := s.client.HGetAll(ctx, identityKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	createdMs, err := strconv.ParseInt(fields["created_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt identity record %q: %w", userID, err)
	}
	signins, err := strconv.Atoi(fields["signins"])
	if err != nil {
		return nil, fmt.Errorf("corrupt identity record %q: %w", userID, err)
	}

	return &core.Identity{
		UserID:      userID,
		Address:     fields["address"],
		CreatedAt:   time.UnixMilli(createdMs),
		SigninCount: signins,
	}, nil
}

// GetByAddress returns the identity for an address, or (nil, nil).
func (s *RedisIdentityStore) GetByAddress(ctx context.Context, address string) (*core.Identity, error) {
	if address == "" {
		return nil, nil
	}

	userID, err := s.client.Get(ctx, identityAddrPrefix+address).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity by address: %w", err)
	}
	return s.GetByUserID(ctx, userID)
}

// RecordSignin increments the signin counter for an identity.
func (s *RedisIdentityStore) RecordSignin(ctx context.Context, userID string) error {
	res, err := recordSigninScript.Run(ctx, s.client,
		[]string{identityKeyPrefix + userID},
	).Int()
	if err != nil {
		return fmt.Errorf("failed to record signin: %w", err)
	}
	if res == 0 {
		return core.ErrIdentityNotFound
	}
	return nil
}

// RedisLedger persists received transactions as JSON list entries.
type RedisLedger struct {
	client redis.UniversalClient
}

// NewRedisLedger creates a Redis-backed transaction ledger.
func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

var _ ports.TransactionLedger = (*RedisLedger)(nil)

// Record appends a received transaction to the ledger.
func (l *RedisLedger) Record(ctx context.Context, tx *core.Transaction) error {
	if tx == nil || tx.Address == "" {
		return fmt.Errorf("transaction record is incomplete")
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if err := l.client.RPush(ctx, ledgerKeyPrefix+tx.Address, payload).Err(); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// ReceivedBy returns all transactions received from an address.
func (l *RedisLedger) ReceivedBy(ctx context.Context, address string) ([]*core.Transaction, error) {
	entries, err := l.client.LRange(ctx, ledgerKeyPrefix+address, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	out := make([]*core.Transaction, 0, len(entries))
	for _, entry := range entries {
		var tx core.Transaction
		if err := json.Unmarshal([]byte(entry), &tx); err != nil {
			return nil, fmt.Errorf("corrupt ledger entry for %q: %w", address, err)
		}
		out = append(out, &tx)
	}
	return out, nil
}
