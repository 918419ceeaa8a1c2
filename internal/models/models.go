package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token identifies the asset being moved and how much of it.
type Token struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// TargetChain identifies where the receiver lives.
type TargetChain struct {
	ID       string `json:"id"`
	Receiver string `json:"receiver"`
}

// Refund is the solver's countersigned proof that it examined a transfer.
// Tx is "<unix timestamp>:<content hash>"; SignedTx is the solver's
// signature over that exact string. Immutable once attached.
type Refund struct {
	ChainID  string `json:"chainId"`
	Tx       string `json:"tx"`
	SignedTx string `json:"signedTx"`
}

// Transfer is a signed request to move a token balance between accounts.
// It is signed once by the sender and consumed exactly once; the only
// mutation after acceptance is attaching the Refund.
type Transfer struct {
	Sender      string      `json:"sender"`
	Token       Token       `json:"token"`
	TargetChain TargetChain `json:"targetChain"`
	Signature   string      `json:"signature"`
	Refund      *Refund     `json:"refund,omitempty"`
}

// Balance is one (address, token) row of the ledger. Amount never goes
// negative; the transfer engine preserves that invariant.
type Balance struct {
	Address string          `json:"address" db:"address"`
	Token   string          `json:"token" db:"token"`
	Amount  decimal.Decimal `json:"amount" db:"amount"`
}

// Transaction is the durable record of an accepted transfer. Append-only
// except for the Reverted flag, which flips false -> true exactly once.
// Primary key is (Timestamp, ID) where ID is the transfer's content hash.
type Transaction struct {
	Timestamp time.Time       `json:"timestamp" db:"ts"`
	ID        string          `json:"id" db:"id"`
	Sender    string          `json:"sender" db:"sender"`
	Receiver  string          `json:"receiver" db:"receiver"`
	Token     string          `json:"token" db:"token"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Reverted  bool            `json:"reverted" db:"reverted"`
}
