// Package oracle provides the goodwill checks gating first-time
// registration.
package oracle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ethid/ethid/ports"
)

// OpenOracle approves every address. Development and tests only: it
// disables the sybil-resistance gate entirely.
type OpenOracle struct{}

var _ ports.GoodwillOracle = OpenOracle{}

// Approve always returns true.
func (OpenOracle) Approve(ctx context.Context, address string) (bool, error) {
	return true, nil
}

// LedgerOracle approves an address once the payments received from it add
// up to a configured minimum. What the ledger holds (purchases, donations,
// burns) is the operator's business; the oracle only sums amounts.
type LedgerOracle struct {
	ledger  ports.TransactionLedger
	minimum decimal.Decimal
	logger  *zap.Logger
}

// NewLedgerOracle creates a ledger-backed goodwill oracle.
func NewLedgerOracle(ledger ports.TransactionLedger, minimum decimal.Decimal, logger *zap.Logger) *LedgerOracle {
	return &LedgerOracle{ledger: ledger, minimum: minimum, logger: logger}
}

var _ ports.GoodwillOracle = (*LedgerOracle)(nil)

// Approve sums the transactions received from the address and compares the
// total against the minimum.
func (o *LedgerOracle) Approve(ctx context.Context, address string) (bool, error) {
	txs, err := o.ledger.ReceivedBy(ctx, address)
	if err != nil {
		return false, fmt.Errorf("failed to read ledger: %w", err)
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}

	approved := total.GreaterThanOrEqual(o.minimum)
	o.logger.Debug("goodwill check",
		zap.String("address", address),
		zap.String("received", total.String()),
		zap.String("minimum", o.minimum.String()),
		zap.Bool("approved", approved))
	return approved, nil
}
