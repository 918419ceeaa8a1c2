package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solver/internal/lockmap"
	"solver/internal/models"
	"solver/internal/signing"
)

// Ledger is the durable store surface the engines depend on. Reads of
// balances happen under the per-triple lock; the two mutating operations
// are each a single all-or-nothing unit.
type Ledger interface {
	GetBalance(ctx context.Context, address, token string) (*models.Balance, error)
	ApplyTransfer(ctx context.Context, rec *models.Transaction) (sender, receiver *models.Balance, err error)
	GetUnreverted(ctx context.Context) ([]models.Transaction, error)
	RevertTransaction(ctx context.Context, rec *models.Transaction) (bool, error)
}

// Receipt is the successful result of a transfer: the refund-decorated
// transfer plus the post-commit balances of both parties.
type Receipt struct {
	Transfer        *models.Transfer
	SenderBalance   *models.Balance
	ReceiverBalance *models.Balance
}

// TransferEngine verifies, countersigns and commits signed transfers.
// The lock map and solver key are injected at construction so isolated
// instances can run side by side.
type TransferEngine struct {
	ledger    Ledger
	locks     lockmap.Locker
	solverKey *ecdsa.PrivateKey
	logger    *zap.Logger

	now func() time.Time
}

// NewTransferEngine creates a transfer engine
func NewTransferEngine(ledger Ledger, locks lockmap.Locker, solverKey *ecdsa.PrivateKey, logger *zap.Logger) *TransferEngine {
	return &TransferEngine{
		ledger:    ledger,
		locks:     locks,
		solverKey: solverKey,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit runs a transfer through the full pipeline: shape validation,
// signature verification, refund countersigning, lock acquisition,
// balance re-read, sufficiency check, atomic commit. Failures before the
// lock leave no trace at all; once the lock is held it is released on
// every exit path.
func (e *TransferEngine) Submit(ctx context.Context, t *models.Transfer) (*Receipt, error) {
	if err := validateShape(t); err != nil {
		return nil, err
	}

	if !signing.VerifyTransfer(t) {
		e.logger.Warn("Rejecting transfer with bad signature",
			zap.String("sender", t.Sender))
		return nil, ErrBadSignature
	}

	// Countersign unconditionally for every verified request, even ones
	// that will fail on funds: the refund is the solver's proof that it
	// examined the request.
	now := e.now().UTC()
	hash := signing.ContentHash(t)
	txRef := fmt.Sprintf("%d:%s", now.Unix(), hash)
	signedTx, err := signing.SignRefund(e.solverKey, txRef)
	if err != nil {
		return nil, fmt.Errorf("failed to countersign refund: %w", err)
	}
	t.Refund = &models.Refund{
		ChainID:  t.TargetChain.ID,
		Tx:       txRef,
		SignedTx: signedTx,
	}

	key := lockmap.TransferKey(t.Sender, t.TargetChain.Receiver, t.Token.Address)
	if !e.locks.TryAcquire(key) {
		e.logger.Info("Transfer conflicts with one in flight", zap.String("lock_key", key))
		return nil, ErrConflict
	}
	defer e.locks.Release(key)

	// Re-read both balances now that the lock is held; reads from before
	// acquisition could be stale.
	senderBal, err := e.ledger.GetBalance(ctx, t.Sender, t.Token.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if senderBal == nil {
		return nil, ErrSenderBalanceMissing
	}
	receiverBal, err := e.ledger.GetBalance(ctx, t.TargetChain.Receiver, t.Token.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if receiverBal == nil {
		return nil, ErrReceiverBalanceMissing
	}

	// An amount equal to the whole balance is rejected too; the strict
	// boundary is deliberate.
	if t.Token.Amount.GreaterThanOrEqual(senderBal.Amount) {
		return nil, ErrInsufficientFunds
	}

	rec := &models.Transaction{
		Timestamp: now,
		ID:        hash,
		Sender:    t.Sender,
		Receiver:  t.TargetChain.Receiver,
		Token:     t.Token.Address,
		Amount:    t.Token.Amount,
	}
	newSender, newReceiver, err := e.ledger.ApplyTransfer(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	e.logger.Info("Transfer committed",
		zap.String("id", rec.ID),
		zap.String("sender", rec.Sender),
		zap.String("receiver", rec.Receiver),
		zap.String("token", rec.Token),
		zap.String("amount", rec.Amount.String()))

	return &Receipt{
		Transfer:        t,
		SenderBalance:   newSender,
		ReceiverBalance: newReceiver,
	}, nil
}

// validateShape rejects payloads whose required fields are absent or of
// the wrong type before anything else runs.
func validateShape(t *models.Transfer) error {
	if t == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidShape)
	}
	if t.Sender == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidShape)
	}
	if t.Token.Address == "" {
		return fmt.Errorf("%w: token.address is required", ErrInvalidShape)
	}
	if !t.Token.Amount.IsPositive() {
		return fmt.Errorf("%w: token.amount must be a positive number", ErrInvalidShape)
	}
	if t.TargetChain.Receiver == "" {
		return fmt.Errorf("%w: targetChain.receiver is required", ErrInvalidShape)
	}
	if t.Signature == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidShape)
	}
	return nil
}
