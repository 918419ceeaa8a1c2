package service

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"solver/internal/models"
)

// fakeLedger is an in-memory Ledger used to exercise the engines without
// a database. applyBlock, when set, makes ApplyTransfer park until
// released so tests can hold a transfer inside its commit window.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	txs      []models.Transaction

	getErr    error
	applyErr  error
	revertErr error

	applyStarted chan struct{}
	applyRelease chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]decimal.Decimal)}
}

func balanceKey(address, token string) string {
	return address + "|" + token
}

func (f *fakeLedger) setBalance(address, token string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[balanceKey(address, token)] = decimal.NewFromInt(amount)
}

func (f *fakeLedger) balance(address, token string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[balanceKey(address, token)]
}

func (f *fakeLedger) addTransaction(rec models.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, rec)
}

func (f *fakeLedger) GetBalance(_ context.Context, address, token string) (*models.Balance, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.balances[balanceKey(address, token)]
	if !ok {
		return nil, nil
	}
	return &models.Balance{Address: address, Token: token, Amount: amount}, nil
}

func (f *fakeLedger) ApplyTransfer(_ context.Context, rec *models.Transaction) (*models.Balance, *models.Balance, error) {
	if f.applyStarted != nil {
		f.applyStarted <- struct{}{}
		<-f.applyRelease
	}
	if f.applyErr != nil {
		return nil, nil, f.applyErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, *rec)

	senderKey := balanceKey(rec.Sender, rec.Token)
	receiverKey := balanceKey(rec.Receiver, rec.Token)
	f.balances[senderKey] = f.balances[senderKey].Sub(rec.Amount)
	f.balances[receiverKey] = f.balances[receiverKey].Add(rec.Amount)

	sender := &models.Balance{Address: rec.Sender, Token: rec.Token, Amount: f.balances[senderKey]}
	receiver := &models.Balance{Address: rec.Receiver, Token: rec.Token, Amount: f.balances[receiverKey]}
	return sender, receiver, nil
}

func (f *fakeLedger) GetUnreverted(_ context.Context) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, tx := range f.txs {
		if !tx.Reverted {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (f *fakeLedger) RevertTransaction(_ context.Context, rec *models.Transaction) (bool, error) {
	if f.revertErr != nil {
		return false, f.revertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.txs {
		if f.txs[i].ID == rec.ID && f.txs[i].Timestamp.Equal(rec.Timestamp) {
			if f.txs[i].Reverted {
				return false, nil
			}
			senderKey := balanceKey(rec.Sender, rec.Token)
			receiverKey := balanceKey(rec.Receiver, rec.Token)
			f.balances[senderKey] = f.balances[senderKey].Add(rec.Amount)
			f.balances[receiverKey] = f.balances[receiverKey].Sub(rec.Amount)
			f.txs[i].Reverted = true
			return true, nil
		}
	}
	return false, nil
}
