package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a payment received from a signer address. The goodwill
// oracle sums these when the address asks to register a new identity: an
// address that has paid, purchased or burned enough is unlikely to be a
// sybil.
type Transaction struct {
	ID      string          `json:"txid"`
	Address string          `json:"address"` // sending address
	Amount  decimal.Decimal `json:"amount"`
	SeenAt  time.Time       `json:"seen_at"`
}
