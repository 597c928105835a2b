package ports

import "context"

// GoodwillOracle answers whether an address has demonstrated enough proof
// of intent to register a new identity. It is the sybil-resistance gate: it
// runs before any identity record is created, never after.
type GoodwillOracle interface {
	Approve(ctx context.Context, address string) (bool, error)
}
