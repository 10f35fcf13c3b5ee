package restaurant

import (
	"context"
	"fmt"
	"strings"
)

// WalletSummary is a student's balances with the latest wallet log lines.
type WalletSummary struct {
	Balance      AmountCents
	Points       Points
	Transactions []WalletTransaction
}

// PointsSummary is a student's point count with the latest points log lines.
type PointsSummary struct {
	Points       Points
	Transactions []PointsTransaction
}

// Wallet returns the student's balances and wallet history, newest first.
func (service *Service) Wallet(ctx context.Context, studentID StudentID, page Page) (WalletSummary, error) {
	student, err := service.store.GetStudent(ctx, studentID)
	if err != nil {
		return WalletSummary{}, err
	}
	transactions, err := service.store.ListWalletTransactions(ctx, studentID, NewPage(page.Limit, page.Offset))
	if err != nil {
		return WalletSummary{}, err
	}
	return WalletSummary{
		Balance:      student.WalletBalance,
		Points:       student.Points,
		Transactions: transactions,
	}, nil
}

// PointsHistory returns the student's point count and points history, newest first.
func (service *Service) PointsHistory(ctx context.Context, studentID StudentID, page Page) (PointsSummary, error) {
	student, err := service.store.GetStudent(ctx, studentID)
	if err != nil {
		return PointsSummary{}, err
	}
	transactions, err := service.store.ListPointsTransactions(ctx, studentID, NewPage(page.Limit, page.Offset))
	if err != nil {
		return PointsSummary{}, err
	}
	return PointsSummary{Points: student.Points, Transactions: transactions}, nil
}

// RechargeWallet tops up the wallet and returns the new balance.
func (service *Service) RechargeWallet(ctx context.Context, studentID StudentID, amount PositiveAmountCents, paymentReference string) (AmountCents, error) {
	var balance AmountCents
	operationError := func() error {
		if amount < MinimumRechargeCents || amount > MaximumRechargeCents {
			return fmt.Errorf("%w: recharge must be between %s and %s", ErrInvalidAmountCents, MinimumRechargeCents, MaximumRechargeCents)
		}
		description := "Wallet recharge"
		if reference := strings.TrimSpace(paymentReference); reference != "" {
			description = fmt.Sprintf("%s (%s)", description, reference)
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			student, err := transactionStore.LockStudent(ctx, studentID)
			if err != nil {
				return err
			}
			if !student.CanReserve() {
				return ErrStudentInactive
			}
			balance, err = service.ledger(transactionStore).Credit(ctx, studentID, amount, LedgerMemo{Description: description})
			return err
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationRechargeWallet,
		StudentID: studentID,
		Amount:    amount.ToAmountCents(),
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return balance, nil
}
