package restaurant

import (
	"context"
	"fmt"
	"time"
)

// LedgerMemo describes why a balance moved; it is copied onto the log entry.
type LedgerMemo struct {
	Description   string
	Reason        PointsReason
	ReservationID ReservationID
	FeedbackID    FeedbackID
}

// Ledger mutates wallet and points balances and appends exactly one log entry per mutation.
// It must be built over a transaction-bound store so the mutation and its log entry commit together.
type Ledger struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewLedger returns a Ledger over store.
func NewLedger(store Store, now func() time.Time, newID func() string) Ledger {
	return Ledger{store: store, now: now, newID: newID}
}

// Debit removes amount from the wallet; the store rejects a result below zero.
func (ledger Ledger) Debit(ctx context.Context, studentID StudentID, amount PositiveAmountCents, memo LedgerMemo) (AmountCents, error) {
	balance, err := ledger.store.AdjustWallet(ctx, studentID, amount.Debit())
	if err != nil {
		return 0, err
	}
	if err := ledger.store.InsertWalletTransaction(ctx, WalletTransaction{
		ID:            ledger.newID(),
		StudentID:     studentID,
		Kind:          TransactionKindDebit,
		AmountCents:   amount.Debit(),
		Description:   memo.Description,
		ReservationID: memo.ReservationID,
		CreatedAt:     ledger.now().UTC(),
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds amount to the wallet.
func (ledger Ledger) Credit(ctx context.Context, studentID StudentID, amount PositiveAmountCents, memo LedgerMemo) (AmountCents, error) {
	balance, err := ledger.store.AdjustWallet(ctx, studentID, amount.Credit())
	if err != nil {
		return 0, err
	}
	if err := ledger.store.InsertWalletTransaction(ctx, WalletTransaction{
		ID:            ledger.newID(),
		StudentID:     studentID,
		Kind:          TransactionKindCredit,
		AmountCents:   amount.Credit(),
		Description:   memo.Description,
		ReservationID: memo.ReservationID,
		CreatedAt:     ledger.now().UTC(),
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

// DebitPoints removes points; the store rejects a result below zero.
func (ledger Ledger) DebitPoints(ctx context.Context, studentID StudentID, points Points, memo LedgerMemo) (Points, error) {
	return ledger.movePoints(ctx, studentID, TransactionKindDebit, points, memo)
}

// CreditPoints adds points.
func (ledger Ledger) CreditPoints(ctx context.Context, studentID StudentID, points Points, memo LedgerMemo) (Points, error) {
	return ledger.movePoints(ctx, studentID, TransactionKindCredit, points, memo)
}

func (ledger Ledger) movePoints(ctx context.Context, studentID StudentID, kind TransactionKind, points Points, memo LedgerMemo) (Points, error) {
	if points <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPoints)
	}
	delta := points.Int64()
	if kind == TransactionKindDebit {
		delta = -delta
	}
	reason := memo.Reason
	if reason == "" {
		reason = PointsReasonAdjustment
	}
	balance, err := ledger.store.AdjustPoints(ctx, studentID, delta)
	if err != nil {
		return 0, err
	}
	if err := ledger.store.InsertPointsTransaction(ctx, PointsTransaction{
		ID:            ledger.newID(),
		StudentID:     studentID,
		Kind:          kind,
		Points:        delta,
		Reason:        reason,
		ReservationID: memo.ReservationID,
		FeedbackID:    memo.FeedbackID,
		CreatedAt:     ledger.now().UTC(),
	}); err != nil {
		return 0, err
	}
	return balance, nil
}
