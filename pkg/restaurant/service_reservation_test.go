package restaurant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestCreateReservationWalletRoundTripRestoresBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "alice", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodWallet)
	if got := store.mustStudent(test, studentID).WalletBalance; got != 650 {
		test.Fatalf("expected balance 6.50 after reservation, got %s", got)
	}
	if reservation.Status != ReservationStatusConfirmed {
		test.Fatalf("expected confirmed reservation, got %s", reservation.Status)
	}
	if reservation.PriceCents != 350 {
		test.Fatalf("expected stored price 3.50, got %s", reservation.PriceCents)
	}

	cancelled, err := service.CancelReservation(context.Background(), studentID, reservation.ID)
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ReservationStatusCancelled {
		test.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 1000 {
		test.Fatalf("expected balance 10.00 after cancellation, got %s", got)
	}
}

func TestWalletReservationWritesOneDebitAndCancellationOneEqualCredit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "bob", 1000, 0)
	offeringID := store.seedOffering(test, "dinner", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodWallet)
	transactions := store.walletTransactionsFor(reservation.ID)
	if len(transactions) != 1 {
		test.Fatalf("expected 1 wallet transaction, got %d", len(transactions))
	}
	debit := transactions[0]
	if debit.Kind != TransactionKindDebit || debit.AmountCents != -350 {
		test.Fatalf("expected debit of -3.50, got %s %s", debit.Kind, debit.AmountCents)
	}
	if !strings.Contains(debit.Description, reservation.RedemptionCode) {
		test.Fatalf("expected description to reference %s, got %q", reservation.RedemptionCode, debit.Description)
	}

	if _, err := service.CancelReservation(context.Background(), studentID, reservation.ID); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	transactions = store.walletTransactionsFor(reservation.ID)
	if len(transactions) != 2 {
		test.Fatalf("expected debit and credit, got %d transactions", len(transactions))
	}
	credit := transactions[1]
	if credit.Kind != TransactionKindCredit || credit.AmountCents != -debit.AmountCents {
		test.Fatalf("expected credit of equal magnitude, got %s %s", credit.Kind, credit.AmountCents)
	}
}

func TestCancelAlreadyCancelledLeavesEverythingUnchanged(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "carol", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodWallet)
	if _, err := service.CancelReservation(context.Background(), studentID, reservation.ID); err != nil {
		test.Fatalf("first cancel: %v", err)
	}
	before := store.mustStudent(test, studentID)
	_, walletBefore, pointsBefore := store.counts()

	_, err := service.CancelReservation(context.Background(), studentID, reservation.ID)
	if !errors.Is(err, ErrAlreadyCancelled) {
		test.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if errors.Is(err, ErrCancellationFailed) {
		test.Fatalf("validation error must not be reported as a failure: %v", err)
	}
	after := store.mustStudent(test, studentID)
	if after.WalletBalance != before.WalletBalance || after.Points != before.Points {
		test.Fatalf("balances changed: %s/%d -> %s/%d", before.WalletBalance, before.Points, after.WalletBalance, after.Points)
	}
	if _, walletAfter, pointsAfter := store.counts(); walletAfter != walletBefore || pointsAfter != pointsBefore {
		test.Fatalf("transaction logs changed")
	}
}

func TestCreateReservationBalanceEqualToPriceSucceeds(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "dina", 350, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	mustReserve(test, service, studentID, offeringID, PaymentMethodWallet)
	if got := store.mustStudent(test, studentID).WalletBalance; got != 0 {
		test.Fatalf("expected balance 0.00, got %s", got)
	}
}

func TestCreateReservationInsufficientBalanceCreatesNothing(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "emna", 349, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-10"), PaymentMethodWallet)
	if !errors.Is(err, ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	reservations, wallet, points := store.counts()
	if reservations != 0 || wallet != 0 || points != 0 {
		test.Fatalf("expected no rows, got %d reservations %d wallet %d points", reservations, wallet, points)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 349 {
		test.Fatalf("balance changed to %s", got)
	}
}

func TestCreateReservationInsufficientPointsLeavesBalancesUnchanged(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "farah", 500, 50)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-11"), PaymentMethodPoints)
	if !errors.Is(err, ErrInsufficientPoints) {
		test.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	student := store.mustStudent(test, studentID)
	if student.WalletBalance != 500 || student.Points != 50 {
		test.Fatalf("expected 5.00 and 50 points, got %s and %d", student.WalletBalance, student.Points)
	}
}

func TestPointsReservationDebitsAndRefundsFixedCost(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "ghada", 0, 150)
	offeringID := store.seedOffering(test, "breakfast", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodPoints)
	if reservation.PointsCharged != PointsRedemptionCost {
		test.Fatalf("expected %d points charged, got %d", PointsRedemptionCost, reservation.PointsCharged)
	}
	if got := store.mustStudent(test, studentID).Points; got != 50 {
		test.Fatalf("expected 50 points left, got %d", got)
	}
	if _, err := service.CancelReservation(context.Background(), studentID, reservation.ID); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if got := store.mustStudent(test, studentID).Points; got != 150 {
		test.Fatalf("expected 150 points after refund, got %d", got)
	}
	summary, err := service.PointsHistory(context.Background(), studentID, Page{})
	if err != nil {
		test.Fatalf("points history: %v", err)
	}
	if len(summary.Transactions) != 2 {
		test.Fatalf("expected debit and refund points entries, got %d", len(summary.Transactions))
	}
	if summary.Transactions[0].Reason != PointsReasonRefund || summary.Transactions[0].Points != 100 {
		test.Fatalf("unexpected refund entry %+v", summary.Transactions[0])
	}
	if summary.Transactions[1].Reason != PointsReasonReservation || summary.Transactions[1].Points != -100 {
		test.Fatalf("unexpected reservation entry %+v", summary.Transactions[1])
	}
}

func TestCashReservationMovesNoBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "hedi", 0, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodCash)
	if _, err := service.CancelReservation(context.Background(), studentID, reservation.ID); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if _, wallet, points := store.counts(); wallet != 0 || points != 0 {
		test.Fatalf("expected no ledger entries for cash, got %d wallet %d points", wallet, points)
	}
}

func TestConcurrentReservationsCannotOverdraw(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "ines", 500, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	const attempts = 2
	date := mustDate(test, "2025-03-12")
	results := make([]error, attempts)
	var waitGroup sync.WaitGroup
	start := make(chan struct{})
	for index := 0; index < attempts; index++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			<-start
			_, results[index] = service.CreateReservation(context.Background(), studentID, offeringID, date, PaymentMethodWallet)
		}(index)
	}
	close(start)
	waitGroup.Wait()

	successes, insufficient := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		test.Fatalf("expected 1 success and 1 insufficient balance, got %d and %d", successes, insufficient)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 150 {
		test.Fatalf("expected balance 1.50, got %s", got)
	}
}

func TestBalancesStayNonNegativeAcrossSequences(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "jalel", 1000, 220)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	methods := []PaymentMethod{PaymentMethodWallet, PaymentMethodPoints, PaymentMethodWallet, PaymentMethodWallet, PaymentMethodPoints, PaymentMethodPoints, PaymentMethodWallet}
	var created []Reservation
	for _, method := range methods {
		reservation, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-14"), method)
		if err == nil {
			created = append(created, reservation)
		} else if !errors.Is(err, ErrInsufficientBalance) && !errors.Is(err, ErrInsufficientPoints) {
			test.Fatalf("unexpected error: %v", err)
		}
		student := store.mustStudent(test, studentID)
		if student.WalletBalance < 0 || student.Points < 0 {
			test.Fatalf("negative balance observed: %s / %d", student.WalletBalance, student.Points)
		}
	}
	if len(created) != 4 {
		test.Fatalf("expected 2 wallet and 2 points reservations to succeed, got %d", len(created))
	}
	for _, reservation := range created {
		if _, err := service.CancelReservation(context.Background(), studentID, reservation.ID); err != nil {
			test.Fatalf("cancel: %v", err)
		}
	}
	student := store.mustStudent(test, studentID)
	if student.WalletBalance != 1000 || student.Points != 220 {
		test.Fatalf("expected original balances, got %s / %d", student.WalletBalance, student.Points)
	}
}

func TestCreateReservationValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		status   MenuStatus
		date     string
		method   PaymentMethod
		expected error
	}{
		{name: "unavailable menu", status: MenuStatusUnavailable, date: "2025-03-12", method: PaymentMethodWallet, expected: ErrMenuUnavailable},
		{name: "past date", status: MenuStatusAvailable, date: "2025-03-09", method: PaymentMethodWallet, expected: ErrInvalidReservationDate},
		{name: "unknown payment method", status: MenuStatusAvailable, date: "2025-03-12", method: PaymentMethod("card"), expected: ErrInvalidPaymentMethod},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			studentID := store.seedStudent(test, "kamel", 1000, 200)
			offeringID := store.seedOffering(test, "lunch", 350, testCase.status)
			service := mustNewService(test, store)

			_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, testCase.date), testCase.method)
			if !errors.Is(err, testCase.expected) {
				test.Fatalf("expected %v, got %v", testCase.expected, err)
			}
			if reservations, _, _ := store.counts(); reservations != 0 {
				test.Fatalf("expected no reservation, got %d", reservations)
			}
		})
	}
}

func TestCreateReservationUnknownOfferingIsNotFound(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "lina", 1000, 0)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), studentID, mustMenuOfferingID(test, "missing"), mustDate(test, "2025-03-12"), PaymentMethodWallet)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrUnknownMenuOffering) {
		test.Fatalf("expected unknown menu offering, got %v", err)
	}
}

func TestCreateReservationTodayIsAllowed(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "mehdi", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	if _, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-10"), PaymentMethodCash); err != nil {
		test.Fatalf("expected same-day reservation to succeed: %v", err)
	}
}

func TestCreateReservationInfraFailureRollsBack(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "nour", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	store.failOn("InsertWalletTransaction", errStubFailure)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-12"), PaymentMethodWallet)
	if !errors.Is(err, ErrReservationFailed) {
		test.Fatalf("expected ErrReservationFailed, got %v", err)
	}
	if !errors.Is(err, errStubFailure) {
		test.Fatalf("expected cause to be preserved, got %v", err)
	}
	if reservations, wallet, _ := store.counts(); reservations != 0 || wallet != 0 {
		test.Fatalf("expected rollback, got %d reservations %d wallet rows", reservations, wallet)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 1000 {
		test.Fatalf("expected balance restored to 10.00, got %s", got)
	}
}

func TestCancelReservationInfraFailureKeepsReservationConfirmed(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "omar", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)
	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodWallet)

	store.failOn("AdjustWallet", errStubFailure)
	_, err := service.CancelReservation(context.Background(), studentID, reservation.ID)
	if !errors.Is(err, ErrCancellationFailed) {
		test.Fatalf("expected ErrCancellationFailed, got %v", err)
	}
	stored, err := store.GetReservation(context.Background(), reservation.ID)
	if err != nil {
		test.Fatalf("get reservation: %v", err)
	}
	if stored.Status != ReservationStatusConfirmed {
		test.Fatalf("expected confirmed after rollback, got %s", stored.Status)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 650 {
		test.Fatalf("expected balance 6.50, got %s", got)
	}
}

func TestCancelReservationOfAnotherStudentIsNotFound(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	ownerID := store.seedStudent(test, "rania", 1000, 0)
	otherID := store.seedStudent(test, "sami", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)
	reservation := mustReserve(test, service, ownerID, offeringID, PaymentMethodWallet)

	_, err := service.CancelReservation(context.Background(), otherID, reservation.ID)
	if !errors.Is(err, ErrUnknownReservation) {
		test.Fatalf("expected ErrUnknownReservation, got %v", err)
	}
	if got := store.mustStudent(test, ownerID).WalletBalance; got != 650 {
		test.Fatalf("owner balance changed to %s", got)
	}
}

func TestRedemptionCodeRetriesOnCollision(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "taha", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	store.codes["RES-AAAAAAAAAA"] = struct{}{}
	codes := []string{"RES-AAAAAAAAAA", "RES-BBBBBBBBBB"}
	var calls int
	service := mustNewService(test, store, WithRedemptionCodeGenerator(func() (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}))

	reservation := mustReserve(test, service, studentID, offeringID, PaymentMethodCash)
	if reservation.RedemptionCode != "RES-BBBBBBBBBB" {
		test.Fatalf("expected second code, got %s", reservation.RedemptionCode)
	}
}

func TestRedemptionCodeExhaustionIsReservationFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "wael", 1000, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	store.codes["RES-TAKEN00000"] = struct{}{}
	service := mustNewService(test, store, WithRedemptionCodeGenerator(func() (string, error) {
		return "RES-TAKEN00000", nil
	}))

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-12"), PaymentMethodWallet)
	if !errors.Is(err, ErrReservationFailed) || !errors.Is(err, ErrDuplicateRedemptionCode) {
		test.Fatalf("expected reservation failure caused by code exhaustion, got %v", err)
	}
	if got := store.mustStudent(test, studentID).WalletBalance; got != 1000 {
		test.Fatalf("balance changed to %s", got)
	}
}

func TestNewRedemptionCodeFormat(test *testing.T) {
	test.Parallel()
	code, err := NewRedemptionCode()
	if err != nil {
		test.Fatalf("new code: %v", err)
	}
	if !strings.HasPrefix(code, "RES-") || len(code) != 14 {
		test.Fatalf("unexpected code %q", code)
	}
	for _, character := range code[4:] {
		if !strings.ContainsRune(redemptionCodeAlphabet, character) {
			test.Fatalf("unexpected character %q in %q", character, code)
		}
	}
}

func TestInactiveStudentCannotReserve(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "yasmine", 1000, 0)
	student := store.students[studentID]
	student.Active = false
	store.students[studentID] = student
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-12"), PaymentMethodWallet)
	if !errors.Is(err, ErrStudentInactive) {
		test.Fatalf("expected ErrStudentInactive, got %v", err)
	}
}

func TestReservationOperationsAreLogged(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	studentID := store.seedStudent(test, "zied", 100, 0)
	offeringID := store.seedOffering(test, "lunch", 350, MenuStatusAvailable)
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	_, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-12"), PaymentMethodWallet)
	if err == nil {
		test.Fatalf("expected insufficient balance")
	}
	entry := logger.last(test)
	if entry.Operation != operationCreateReservation || entry.Status != operationStatusError || !errors.Is(entry.Error, ErrInsufficientBalance) {
		test.Fatalf("unexpected log entry %+v", entry)
	}
	if entry.StudentID != studentID || entry.PaymentMethod != PaymentMethodWallet {
		test.Fatalf("log entry missing identifiers: %+v", entry)
	}
}
