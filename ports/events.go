package ports

import "context"

// EventPublisher notifies other components about authentication milestones.
// Publishing failures are logged by callers and never fail the operation
// that triggered them.
type EventPublisher interface {
	// PublishRegistered is emitted once per newly provisioned identity.
	PublishRegistered(ctx context.Context, address, userID string) error

	// PublishAuthenticated is emitted once per completed poll phase.
	PublishAuthenticated(ctx context.Context, sessionID, userID string) error
}
