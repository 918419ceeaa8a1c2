package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"solver/internal/models"
)

// ==================== Balance Queries ====================

// GetBalance retrieves the balance row for an (address, token) pair.
// Returns nil when no row exists.
func (db *DB) GetBalance(ctx context.Context, address, token string) (*models.Balance, error) {
	var balance models.Balance
	query := `SELECT address, token, amount FROM balances WHERE address = $1 AND token = $2`
	err := db.GetContext(ctx, &balance, query, address, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &balance, err
}

// GetBalancesByAddress retrieves every token balance held by an address
func (db *DB) GetBalancesByAddress(ctx context.Context, address string) ([]models.Balance, error) {
	var balances []models.Balance
	query := `
		SELECT address, token, amount
		FROM balances
		WHERE address = $1
		ORDER BY token ASC
	`
	err := db.SelectContext(ctx, &balances, query, address)
	return balances, err
}

// GetAllBalances retrieves every balance row in the ledger
func (db *DB) GetAllBalances(ctx context.Context) ([]models.Balance, error) {
	var balances []models.Balance
	query := `
		SELECT address, token, amount
		FROM balances
		ORDER BY address ASC, token ASC
	`
	err := db.SelectContext(ctx, &balances, query)
	return balances, err
}

// UpsertBalance creates or replaces a balance row. Used for seeding
// accounts; transfers never go through this path.
func (db *DB) UpsertBalance(ctx context.Context, balance *models.Balance) error {
	query := `
		INSERT INTO balances (address, token, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, token) DO UPDATE SET amount = EXCLUDED.amount
	`
	_, err := db.ExecContext(ctx, query, balance.Address, balance.Token, balance.Amount)
	return err
}

// ==================== Transaction Queries ====================

// GetTransactions retrieves the full transfer history, most recent first
func (db *DB) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := `
		SELECT ts, id, sender, receiver, token, amount, reverted
		FROM transactions
		ORDER BY ts DESC
	`
	err := db.SelectContext(ctx, &txs, query)
	return txs, err
}

// GetUnreverted retrieves every transaction not yet reverted, most
// recent first. The revert engine walks this list in order.
func (db *DB) GetUnreverted(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := `
		SELECT ts, id, sender, receiver, token, amount, reverted
		FROM transactions
		WHERE reverted = FALSE
		ORDER BY ts DESC
	`
	err := db.SelectContext(ctx, &txs, query)
	return txs, err
}

// ==================== Atomic Units ====================

// ApplyTransfer commits an accepted transfer in one SQL transaction:
// append the transaction record, debit the sender, credit the receiver.
// Either all three happen or none do. Returns the post-commit sender and
// receiver balances.
func (db *DB) ApplyTransfer(ctx context.Context, rec *models.Transaction) (sender, receiver *models.Balance, err error) {
	err = db.InTransaction(func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO transactions (ts, id, sender, receiver, token, amount, reverted)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		`
		if _, err := tx.ExecContext(ctx, insert, rec.Timestamp, rec.ID, rec.Sender, rec.Receiver, rec.Token, rec.Amount); err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		senderAmount, err := adjustBalance(ctx, tx, rec.Sender, rec.Token, rec.Amount.Neg())
		if err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		receiverAmount, err := adjustBalance(ctx, tx, rec.Receiver, rec.Token, rec.Amount)
		if err != nil {
			return fmt.Errorf("failed to credit receiver: %w", err)
		}

		sender = &models.Balance{Address: rec.Sender, Token: rec.Token, Amount: senderAmount}
		receiver = &models.Balance{Address: rec.Receiver, Token: rec.Token, Amount: receiverAmount}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sender, receiver, nil
}

// RevertTransaction reverses one transfer in its own SQL transaction:
// credit the sender back, debit the receiver, flip the reverted flag.
// Returns false without touching balances when the record was already
// reverted, which makes re-running a partially failed batch safe.
func (db *DB) RevertTransaction(ctx context.Context, rec *models.Transaction) (bool, error) {
	reverted := false
	err := db.InTransaction(func(tx *sqlx.Tx) error {
		var alreadyReverted bool
		check := `SELECT reverted FROM transactions WHERE ts = $1 AND id = $2 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, check, rec.Timestamp, rec.ID).Scan(&alreadyReverted); err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if alreadyReverted {
			return nil
		}

		if _, err := adjustBalance(ctx, tx, rec.Sender, rec.Token, rec.Amount); err != nil {
			return fmt.Errorf("failed to credit sender: %w", err)
		}
		if _, err := adjustBalance(ctx, tx, rec.Receiver, rec.Token, rec.Amount.Neg()); err != nil {
			return fmt.Errorf("failed to debit receiver: %w", err)
		}

		flag := `UPDATE transactions SET reverted = TRUE WHERE ts = $1 AND id = $2`
		if _, err := tx.ExecContext(ctx, flag, rec.Timestamp, rec.ID); err != nil {
			return fmt.Errorf("failed to flag transaction reverted: %w", err)
		}
		reverted = true
		return nil
	})
	return reverted, err
}

// adjustBalance applies a signed delta to one balance row and returns
// the resulting amount.
func adjustBalance(ctx context.Context, tx *sqlx.Tx, address, token string, delta decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	query := `
		UPDATE balances
		SET amount = amount + $1
		WHERE address = $2 AND token = $3
		RETURNING amount
	`
	err := tx.QueryRowContext(ctx, query, delta, address, token).Scan(&amount)
	if err == sql.ErrNoRows {
		return amount, fmt.Errorf("no balance row for %s/%s", address, token)
	}
	return amount, err
}
