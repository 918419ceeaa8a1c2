package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solver/internal/lockmap"
	"solver/internal/models"
)

const (
	senderA   = "0x1111111111111111111111111111111111111111"
	receiverB = "0x2222222222222222222222222222222222222222"
	receiverC = "0x3333333333333333333333333333333333333333"
)

func seedHistory(ledger *fakeLedger) (t1, t2, t3 models.Transaction) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t1 = models.Transaction{
		Timestamp: base,
		ID:        "tx-1",
		Sender:    senderA, Receiver: receiverB, Token: testToken,
		Amount: decimal.NewFromInt(4),
	}
	t2 = models.Transaction{
		Timestamp: base.Add(time.Minute),
		ID:        "tx-2",
		Sender:    senderA, Receiver: receiverB, Token: testToken,
		Amount: decimal.NewFromInt(8),
	}
	t3 = models.Transaction{
		Timestamp: base.Add(2 * time.Minute),
		ID:        "tx-3",
		Sender:    senderA, Receiver: receiverB, Token: testToken,
		Amount: decimal.NewFromInt(16),
	}
	ledger.addTransaction(t1)
	ledger.addTransaction(t2)
	ledger.addTransaction(t3)

	// Balances as they stand after all three transfers: A started at
	// 128, B at 512.
	ledger.setBalance(senderA, testToken, 100)
	ledger.setBalance(receiverB, testToken, 540)
	return t1, t2, t3
}

func TestRevertAllOrderAndBalances(t *testing.T) {
	ledger := newFakeLedger()
	seedHistory(ledger)

	engine := NewRevertEngine(ledger, lockmap.New(), zap.NewNop())
	reverted, err := engine.RevertAll(context.Background())
	require.NoError(t, err)

	// Most recent first: t3, t2, t1.
	require.Len(t, reverted, 3)
	require.Equal(t, "tx-3", reverted[0].ID)
	require.Equal(t, "tx-2", reverted[1].ID)
	require.Equal(t, "tx-1", reverted[2].ID)
	for _, rec := range reverted {
		require.True(t, rec.Reverted)
	}

	// Balances restored to their state before t1.
	require.Equal(t, "128", ledger.balance(senderA, testToken).String())
	require.Equal(t, "512", ledger.balance(receiverB, testToken).String())

	remaining, err := ledger.GetUnreverted(context.Background())
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestRevertAllIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	seedHistory(ledger)

	engine := NewRevertEngine(ledger, lockmap.New(), zap.NewNop())
	first, err := engine.RevertAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 3)

	// A second run finds nothing to do and does not double-apply.
	second, err := engine.RevertAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, second)
	require.Equal(t, "128", ledger.balance(senderA, testToken).String())
	require.Equal(t, "512", ledger.balance(receiverB, testToken).String())
}

func TestRevertAllAbortsOnHeldLock(t *testing.T) {
	ledger := newFakeLedger()
	seedHistory(ledger)

	locks := lockmap.New()
	engine := NewRevertEngine(ledger, locks, zap.NewNop())

	// A transfer in flight for the triple blocks the whole run: the
	// newest record is first and its lock is held.
	key := lockmap.TransferKey(senderA, receiverB, testToken)
	require.True(t, locks.TryAcquire(key))

	reverted, err := engine.RevertAll(context.Background())
	require.ErrorIs(t, err, ErrConflict)
	require.Empty(t, reverted)
	require.Equal(t, "100", ledger.balance(senderA, testToken).String())
}

func TestRevertAllResumesAfterPartialRun(t *testing.T) {
	ledger := newFakeLedger()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two triples: the newer record's triple is free, the older one is
	// locked, so the first run reverts a prefix and stops.
	older := models.Transaction{
		Timestamp: base,
		ID:        "tx-old",
		Sender:    senderA, Receiver: receiverC, Token: testToken,
		Amount: decimal.NewFromInt(10),
	}
	newer := models.Transaction{
		Timestamp: base.Add(time.Minute),
		ID:        "tx-new",
		Sender:    senderA, Receiver: receiverB, Token: testToken,
		Amount: decimal.NewFromInt(2),
	}
	ledger.addTransaction(older)
	ledger.addTransaction(newer)
	ledger.setBalance(senderA, testToken, 88)
	ledger.setBalance(receiverB, testToken, 2)
	ledger.setBalance(receiverC, testToken, 10)

	locks := lockmap.New()
	engine := NewRevertEngine(ledger, locks, zap.NewNop())

	heldKey := lockmap.TransferKey(senderA, receiverC, testToken)
	require.True(t, locks.TryAcquire(heldKey))

	reverted, err := engine.RevertAll(context.Background())
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, reverted, 1)
	require.Equal(t, "tx-new", reverted[0].ID)

	// Release and re-run: the rest of the batch completes.
	locks.Release(heldKey)
	reverted, err = engine.RevertAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	require.Equal(t, "tx-old", reverted[0].ID)

	require.Equal(t, "100", ledger.balance(senderA, testToken).String())
	require.Equal(t, "0", ledger.balance(receiverB, testToken).String())
	require.Equal(t, "0", ledger.balance(receiverC, testToken).String())
}
