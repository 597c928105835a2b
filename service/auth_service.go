package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethid/ethid/core"
	"github.com/ethid/ethid/ports"
)

// AuthService coordinates the three authentication phases (challenge,
// callback, poll) over the nonce and identity stores. It holds no state of
// its own: correctness under concurrent requests rests entirely on the
// stores' atomic create / resolve / delete-if-exists contracts, so the
// service can be replicated freely.
type AuthService struct {
	nonces     ports.NonceStore
	identities ports.IdentityStore
	oracle     ports.GoodwillOracle
	codec      ports.ChallengeCodec
	events     ports.EventPublisher
	logger     *zap.Logger

	callbackURL string
}

// NewAuthService creates a new authentication service. callbackURL is the
// canonical endpoint signers must answer to; challenges addressed anywhere
// else are rejected.
func NewAuthService(
	nonces ports.NonceStore,
	identities ports.IdentityStore,
	oracle ports.GoodwillOracle,
	codec ports.ChallengeCodec,
	events ports.EventPublisher,
	logger *zap.Logger,
	callbackURL string,
) *AuthService {
	return &AuthService{
		nonces:      nonces,
		identities:  identities,
		oracle:      oracle,
		codec:       codec,
		events:      events,
		logger:      logger,
		callbackURL: callbackURL,
	}
}

// Challenge is handed back to the browser session that starts an
// authentication attempt.
type Challenge struct {
	SessionID string // fresh session correlation handle
	URI       string // challenge URI to be signed out-of-band
}

// CallbackReceipt points the signer's client back at the originating
// session. The correlation token is the nonce's session id, so the raw
// nonce id is never re-exposed.
type CallbackReceipt struct {
	Address          string
	CorrelationToken string
}

// AuthStatus is the poll phase answer.
type AuthStatus struct {
	Authenticated bool
	UserID        string
}

// BeginChallenge starts a fresh authentication attempt for a browser
// session. A new session id is always issued, discarding whatever was bound
// to the previous one; restarting the challenge is an implicit sign-out.
func (s *AuthService) BeginChallenge(ctx context.Context, previousSessionID string) (*Challenge, error) {
	sessionID := uuid.New().String()

	nonceID, err := s.codec.NewNonceID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce id: %w", err)
	}

	nonce := core.NewNonce(sessionID, nonceID)
	if err := s.nonces.Create(ctx, nonce); err != nil {
		// Fail closed; the caller may retry and will get fresh ids.
		s.logger.Error("failed to persist nonce",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}

	uri, err := s.codec.BuildURI(s.callbackURL, nonceID)
	if err != nil {
		return nil, fmt.Errorf("failed to build challenge uri: %w", err)
	}

	s.logger.Debug("challenge issued",
		zap.String("session_id", sessionID),
		zap.String("previous_session_id", previousSessionID))

	return &Challenge{SessionID: sessionID, URI: uri}, nil
}

// SubmitCallback validates a signed challenge submitted by the external
// signer. The pipeline runs in strict order and short-circuits on the first
// failure; no store mutation happens unless every preceding step passed.
//
// On success the challenge is recorded as answered, but the browser session
// is NOT marked authenticated: the signer is a different network principal
// and must not receive authority over the browser's session. The browser
// discovers completion through PollStatus.
func (s *AuthService) SubmitCallback(ctx context.Context, uri, signature, address string) (*CallbackReceipt, error) {
	if !s.codec.ValidAddress(address) {
		return nil, core.ErrInvalidAddress
	}
	// One signer, one identity, whatever casing the client sends.
	address = s.codec.CanonicalAddress(address)

	// A signed challenge addressed to another endpoint is a cross-site
	// replay.
	if !s.codec.ValidURI(uri, s.callbackURL) {
		return nil, core.ErrInvalidChallenge
	}

	if err := s.codec.VerifySignature(address, signature, uri); err != nil {
		return nil, err
	}

	nonceID, err := s.codec.ExtractNonce(uri)
	if err != nil {
		return nil, core.ErrInvalidChallenge
	}

	nonce, err := s.nonces.GetByNonceID(ctx, nonceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	if nonce == nil {
		return nil, core.ErrUnknownNonce
	}
	if nonce.Expired(time.Now()) {
		// Eager cleanup: expired records are reaped on detection so read
		// traffic does not accumulate dead nonces.
		if err := s.nonces.Delete(ctx, nonce.ID); err != nil && !errors.Is(err, core.ErrNonceNotFound) {
			s.logger.Warn("failed to reap expired nonce",
				zap.String("nonce_id", nonce.ID),
				zap.Error(err))
		}
		return nil, core.ErrExpiredNonce
	}

	identity, err := s.identities.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}

	registered := false
	if identity == nil {
		// First-time registration. The goodwill gate must pass before any
		// identity record exists.
		approved, err := s.oracle.Approve(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("%w: goodwill check: %v", core.ErrPersistenceFailed, err)
		}
		if !approved {
			return nil, core.ErrGoodwillDenied
		}

		identity = core.NewIdentity(address)
		if err := s.identities.Create(ctx, identity); err != nil {
			// Lost a race against a concurrent callback for the same
			// address. A server fault, not a validation failure.
			return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
		}
		registered = true
	}

	switch err := s.nonces.ResolveUser(ctx, nonce.ID, identity.UserID); {
	case err == nil:
	case errors.Is(err, core.ErrAlreadyResolved):
		return nil, core.ErrAlreadyResolved
	case errors.Is(err, core.ErrNonceNotFound):
		// Expired-and-reaped or consumed between lookup and bind.
		return nil, core.ErrUnknownNonce
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}

	if registered {
		if err := s.events.PublishRegistered(ctx, address, identity.UserID); err != nil {
			s.logger.Warn("failed to publish registration event", zap.Error(err))
		}
	}

	s.logger.Info("challenge answered",
		zap.String("address", address),
		zap.String("session_id", nonce.SessionID),
		zap.Bool("registered", registered))

	return &CallbackReceipt{Address: address, CorrelationToken: nonce.SessionID}, nil
}

// PollStatus answers whether the challenge for a session has been
// completed. The first successful poll consumes the nonce and increments
// the identity's signin counter; any later poll for the same session
// reports NotAuthenticated, so callers must rely on their own bound session
// state afterwards, not on repeated polling.
func (s *AuthService) PollStatus(ctx context.Context, sessionID string) (*AuthStatus, error) {
	notAuthenticated := &AuthStatus{}

	// An absent correlation handle is not a fault: the session was never
	// challenged, or its nonce was already consumed or reaped.
	if sessionID == "" {
		return notAuthenticated, nil
	}

	nonce, err := s.nonces.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	if nonce == nil || !nonce.Resolved() {
		return notAuthenticated, nil
	}

	identity, err := s.identities.GetByUserID(ctx, nonce.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	if identity == nil {
		// The stores disagree. Tolerate the inconsistency as
		// not-yet-authenticated rather than failing the poll loop.
		s.logger.Warn("nonce resolved to a missing identity",
			zap.String("session_id", sessionID),
			zap.String("user_id", nonce.UserID))
		return notAuthenticated, nil
	}

	// Deleting the nonce claims the success: of any number of concurrent
	// polls, exactly one gets past this point, so the signin counter is
	// incremented at most once per nonce.
	if err := s.nonces.Delete(ctx, nonce.ID); err != nil {
		if errors.Is(err, core.ErrNonceNotFound) {
			return notAuthenticated, nil
		}
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}

	if err := s.identities.RecordSignin(ctx, identity.UserID); err != nil {
		// The nonce is already consumed; losing the counter update is
		// preferable to failing an otherwise completed authentication.
		s.logger.Warn("failed to record signin",
			zap.String("user_id", identity.UserID),
			zap.Error(err))
	}

	if err := s.events.PublishAuthenticated(ctx, sessionID, identity.UserID); err != nil {
		s.logger.Warn("failed to publish authentication event", zap.Error(err))
	}

	s.logger.Info("session authenticated",
		zap.String("session_id", sessionID),
		zap.String("user_id", identity.UserID))

	return &AuthStatus{Authenticated: true, UserID: identity.UserID}, nil
}

// Identity returns the registered identity for a user id, or nil when the
// id is unknown.
func (s *AuthService) Identity(ctx context.Context, userID string) (*core.Identity, error) {
	identity, err := s.identities.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return identity, nil
}
