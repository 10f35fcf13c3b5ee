package restaurant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service contains the domain logic over a Store.
type Service struct {
	store             Store
	nowFn             func() time.Time
	logger            OperationLogger
	location          *time.Location
	newID             func() string
	newRedemptionCode func() (string, error)
	passwordCost      int
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:             store,
		nowFn:             now,
		location:          time.UTC,
		newID:             uuid.NewString,
		newRedemptionCode: NewRedemptionCode,
		passwordCost:      bcrypt.DefaultCost,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.passwordCost < bcrypt.MinCost || service.passwordCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: password cost %d out of range", ErrInvalidServiceConfig, service.passwordCost)
	}
	return service, nil
}

// Today returns the current calendar date in the service time zone.
func (service *Service) Today() ReservationDate {
	return DateOf(service.nowFn(), service.location)
}

// CreateReservation books one meal and settles it with the chosen payment method in a single atomic unit.
func (service *Service) CreateReservation(ctx context.Context, studentID StudentID, offeringID MenuOfferingID, date ReservationDate, method PaymentMethod) (Reservation, error) {
	reservation, operationError := service.createReservation(ctx, studentID, offeringID, date, method)
	service.logOperation(ctx, OperationLog{
		Operation:      operationCreateReservation,
		StudentID:      studentID,
		ReservationID:  reservation.ID,
		MenuOfferingID: offeringID,
		PaymentMethod:  method,
		Amount:         reservation.PriceCents,
		Points:         reservation.PointsCharged,
		Error:          operationError,
	})
	return reservation, operationError
}

func (service *Service) createReservation(ctx context.Context, studentID StudentID, offeringID MenuOfferingID, date ReservationDate, method PaymentMethod) (Reservation, error) {
	if _, err := ParsePaymentMethod(method.String()); err != nil {
		return Reservation{}, err
	}
	if date.IsZero() {
		return Reservation{}, fmt.Errorf("%w: empty value", ErrInvalidReservationDate)
	}
	if date.Before(service.Today()) {
		return Reservation{}, fmt.Errorf("%w: %s is in the past", ErrInvalidReservationDate, date)
	}

	offering, err := service.store.GetOffering(ctx, offeringID)
	if err != nil {
		return Reservation{}, wrapFailure(ErrReservationFailed, err)
	}
	student, err := service.store.GetStudent(ctx, studentID)
	if err != nil {
		return Reservation{}, wrapFailure(ErrReservationFailed, err)
	}
	if err := checkReservable(student, offering, method); err != nil {
		return Reservation{}, err
	}

	var created Reservation
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		lockedStudent, err := transactionStore.LockStudent(ctx, studentID)
		if err != nil {
			return err
		}
		currentOffering, err := transactionStore.GetOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		if err := checkReservable(lockedStudent, currentOffering, method); err != nil {
			return err
		}
		code, err := service.issueRedemptionCode(ctx, transactionStore)
		if err != nil {
			return err
		}
		reservationID, err := NewReservationID(service.newID())
		if err != nil {
			return err
		}
		nowUTC := service.nowFn().UTC()
		reservation := Reservation{
			ID:             reservationID,
			StudentID:      studentID,
			MenuOfferingID: offeringID,
			Date:           date,
			RedemptionCode: code,
			Status:         ReservationStatusConfirmed,
			PaymentMethod:  method,
			PriceCents:     currentOffering.PriceCents.ToAmountCents(),
			CreatedAt:      nowUTC,
			UpdatedAt:      nowUTC,
		}
		if method == PaymentMethodPoints {
			reservation.PointsCharged = PointsRedemptionCost
		}
		if err := transactionStore.CreateReservation(ctx, reservation); err != nil {
			return err
		}
		ledger := service.ledger(transactionStore)
		switch method {
		case PaymentMethodWallet:
			memo := LedgerMemo{
				Description:   fmt.Sprintf("Reservation %s: %s %s on %s", code, currentOffering.Title, currentOffering.MealSlot, date),
				ReservationID: reservationID,
			}
			if _, err := ledger.Debit(ctx, studentID, currentOffering.PriceCents, memo); err != nil {
				return err
			}
		case PaymentMethodPoints:
			memo := LedgerMemo{Reason: PointsReasonReservation, ReservationID: reservationID}
			if _, err := ledger.DebitPoints(ctx, studentID, PointsRedemptionCost, memo); err != nil {
				return err
			}
		}
		created = reservation
		return nil
	})
	if transactionError != nil {
		return Reservation{}, wrapFailure(ErrReservationFailed, transactionError)
	}
	return created, nil
}

// CancelReservation reverses a reservation owned by studentID and restores what it charged.
func (service *Service) CancelReservation(ctx context.Context, studentID StudentID, reservationID ReservationID) (Reservation, error) {
	var cancelled Reservation
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.StudentID != studentID {
			return ErrUnknownReservation
		}
		cancelled, err = service.cancelLocked(ctx, transactionStore, reservation)
		return err
	})
	operationError := wrapFailure(ErrCancellationFailed, transactionError)
	service.logOperation(ctx, OperationLog{
		Operation:      operationCancelReservation,
		StudentID:      studentID,
		ReservationID:  reservationID,
		MenuOfferingID: cancelled.MenuOfferingID,
		PaymentMethod:  cancelled.PaymentMethod,
		Amount:         cancelled.PriceCents,
		Points:         cancelled.PointsCharged,
		Error:          operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return cancelled, nil
}

// cancelLocked expects reservation to have been read under a row lock in transactionStore.
func (service *Service) cancelLocked(ctx context.Context, transactionStore Store, reservation Reservation) (Reservation, error) {
	if reservation.Status == ReservationStatusCancelled {
		return Reservation{}, ErrAlreadyCancelled
	}
	if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, reservation.Status, ReservationStatusCancelled); err != nil {
		return Reservation{}, err
	}
	ledger := service.ledger(transactionStore)
	switch reservation.PaymentMethod {
	case PaymentMethodWallet:
		if reservation.PriceCents > 0 {
			memo := LedgerMemo{
				Description:   fmt.Sprintf("Refund for cancelled reservation %s", reservation.RedemptionCode),
				ReservationID: reservation.ID,
			}
			if _, err := ledger.Credit(ctx, reservation.StudentID, PositiveAmountCents(reservation.PriceCents), memo); err != nil {
				return Reservation{}, err
			}
		}
	case PaymentMethodPoints:
		if reservation.PointsCharged > 0 {
			memo := LedgerMemo{Reason: PointsReasonRefund, ReservationID: reservation.ID}
			if _, err := ledger.CreditPoints(ctx, reservation.StudentID, reservation.PointsCharged, memo); err != nil {
				return Reservation{}, err
			}
		}
	}
	reservation.Status = ReservationStatusCancelled
	reservation.UpdatedAt = service.nowFn().UTC()
	return reservation, nil
}

func (service *Service) ledger(store Store) Ledger {
	return NewLedger(store, service.nowFn, service.newID)
}

func checkReservable(student Student, offering MenuOffering, method PaymentMethod) error {
	if !student.CanReserve() {
		return ErrStudentInactive
	}
	if !offering.Available() {
		return ErrMenuUnavailable
	}
	switch method {
	case PaymentMethodWallet:
		if student.WalletBalance < offering.PriceCents.ToAmountCents() {
			return ErrInsufficientBalance
		}
	case PaymentMethodPoints:
		if student.Points < PointsRedemptionCost {
			return ErrInsufficientPoints
		}
	}
	return nil
}
