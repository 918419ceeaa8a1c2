package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solver/internal/lockmap"
	"solver/internal/models"
)

// RevertEngine walks the not-yet-reverted transfer history, most recent
// first, and reverses each transaction in its own atomic unit. A crash
// or conflict mid-batch leaves a well-defined prefix reverted; re-running
// resumes safely because each unit re-checks the reverted flag.
type RevertEngine struct {
	ledger Ledger
	locks  lockmap.Locker
	logger *zap.Logger
}

// NewRevertEngine creates a revert engine
func NewRevertEngine(ledger Ledger, locks lockmap.Locker, logger *zap.Logger) *RevertEngine {
	return &RevertEngine{
		ledger: ledger,
		locks:  locks,
		logger: logger,
	}
}

// RevertAll reverses every unreverted transaction, strictly sequential
// and most recent first. Each reversal takes the transaction's triple
// lock so it cannot race an in-flight transfer on the same balances; a
// held lock aborts the run, returning the prefix reverted so far.
func (r *RevertEngine) RevertAll(ctx context.Context) ([]models.Transaction, error) {
	txs, err := r.ledger.GetUnreverted(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	reverted := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		done, err := r.revertOne(ctx, &txs[i])
		if err != nil {
			return reverted, err
		}
		if done {
			txs[i].Reverted = true
			reverted = append(reverted, txs[i])
		}
	}

	r.logger.Info("Revert run finished", zap.Int("reverted", len(reverted)))
	return reverted, nil
}

func (r *RevertEngine) revertOne(ctx context.Context, rec *models.Transaction) (bool, error) {
	key := lockmap.TransferKey(rec.Sender, rec.Receiver, rec.Token)
	if !r.locks.TryAcquire(key) {
		return false, fmt.Errorf("%w: lock held for %s", ErrConflict, key)
	}
	defer r.locks.Release(key)

	done, err := r.ledger.RevertTransaction(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if done {
		r.logger.Info("Transaction reverted",
			zap.String("id", rec.ID),
			zap.Time("ts", rec.Timestamp),
			zap.String("amount", rec.Amount.String()))
	}
	return done, nil
}
