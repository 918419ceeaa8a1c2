package service

import "errors"

// Error taxonomy for transfer processing. Handlers map these onto HTTP
// status codes with errors.Is; the engine never retries on its own.
var (
	// ErrInvalidShape means the request payload is malformed. Fully
	// local, no side effects, no lock taken.
	ErrInvalidShape = errors.New("invalid transfer shape")

	// ErrBadSignature means the sender's signature does not verify
	// against the canonical payload. No side effects, no lock taken.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrConflict means the (sender, receiver, token) lock is already
	// held. Advisory: retry later. No side effects.
	ErrConflict = errors.New("transfer already in progress")

	// ErrSenderBalanceMissing and ErrReceiverBalanceMissing mean the
	// ledger has no balance row for that party. The lock was taken and
	// released; nothing was mutated.
	ErrSenderBalanceMissing   = errors.New("sender balance not found")
	ErrReceiverBalanceMissing = errors.New("receiver balance not found")

	// ErrInsufficientFunds means the requested amount meets or exceeds
	// the sender's whole balance. Lock taken and released, no mutation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStorage means the ledger store failed. The atomic unit
	// guarantees no partial balance writes; the lock is still released.
	ErrStorage = errors.New("ledger storage failure")
)
