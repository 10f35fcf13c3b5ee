package restaurant

import (
	"context"
	"fmt"
	"time"
)

// StudentEnrollment is an administrator-created student with optional opening balances.
type StudentEnrollment struct {
	StudentRegistration
	InitialWallet AmountCents
	InitialPoints Points
}

// StudentUpdate is an administrator's partial change to a student.
type StudentUpdate struct {
	ProfileUpdate
	Active *bool
}

// CreateStudent enrolls a student; opening balances are written through the ledger so they appear in the logs.
func (service *Service) CreateStudent(ctx context.Context, enrollment StudentEnrollment) (Student, error) {
	student, operationError := service.createStudent(ctx, enrollment)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateStudent,
		StudentID: student.ID,
		Amount:    enrollment.InitialWallet,
		Points:    enrollment.InitialPoints,
		Error:     operationError,
	})
	return student, operationError
}

func (service *Service) createStudent(ctx context.Context, enrollment StudentEnrollment) (Student, error) {
	if enrollment.InitialWallet < 0 {
		return Student{}, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	if enrollment.InitialPoints < 0 {
		return Student{}, fmt.Errorf("%w: must not be negative", ErrInvalidPoints)
	}
	student, err := service.newStudent(enrollment.StudentRegistration)
	if err != nil {
		return Student{}, err
	}
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := transactionStore.CreateStudent(ctx, student); err != nil {
			return err
		}
		ledger := service.ledger(transactionStore)
		if enrollment.InitialWallet > 0 {
			balance, err := ledger.Credit(ctx, student.ID, PositiveAmountCents(enrollment.InitialWallet), LedgerMemo{Description: "Opening balance"})
			if err != nil {
				return err
			}
			student.WalletBalance = balance
		}
		if enrollment.InitialPoints > 0 {
			points, err := ledger.CreditPoints(ctx, student.ID, enrollment.InitialPoints, LedgerMemo{Reason: PointsReasonAdjustment})
			if err != nil {
				return err
			}
			student.Points = points
		}
		return nil
	})
	if transactionError != nil {
		return Student{}, transactionError
	}
	return student, nil
}

// UpdateStudent applies an administrator's change to a student.
func (service *Service) UpdateStudent(ctx context.Context, studentID StudentID, update StudentUpdate) (Student, error) {
	return service.updateStudent(ctx, studentID, update.ProfileUpdate, update.Active)
}

// ListStudents lists students matching filter.
func (service *Service) ListStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	filter.Page = NewPage(filter.Page.Limit, filter.Page.Offset)
	return service.store.ListStudents(ctx, filter)
}

// DeleteStudent deactivates and soft-deletes a student. Balances and history are kept.
func (service *Service) DeleteStudent(ctx context.Context, studentID StudentID) error {
	operationError := service.setStudentDeleted(ctx, studentID, true)
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteStudent,
		StudentID: studentID,
		Error:     operationError,
	})
	return operationError
}

// RestoreStudent reverses DeleteStudent.
func (service *Service) RestoreStudent(ctx context.Context, studentID StudentID) (Student, error) {
	operationError := service.setStudentDeleted(ctx, studentID, false)
	service.logOperation(ctx, OperationLog{
		Operation: operationRestoreStudent,
		StudentID: studentID,
		Error:     operationError,
	})
	if operationError != nil {
		return Student{}, operationError
	}
	return service.store.GetStudent(ctx, studentID)
}

func (service *Service) setStudentDeleted(ctx context.Context, studentID StudentID, deleted bool) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		student, err := transactionStore.LockStudent(ctx, studentID)
		if err != nil {
			return err
		}
		nowUTC := service.nowFn().UTC()
		var deletedAt *time.Time
		if deleted {
			deletedAt = &nowUTC
		}
		student.Active = !deleted
		student.UpdatedAt = nowUTC
		if err := transactionStore.UpdateStudent(ctx, student); err != nil {
			return err
		}
		return transactionStore.SetStudentDeletedAt(ctx, studentID, deletedAt)
	})
}

// ListReservations returns the student's own reservations, newest first.
func (service *Service) ListReservations(ctx context.Context, studentID StudentID, page Page) ([]Reservation, error) {
	return service.store.ListReservations(ctx, ReservationFilter{StudentID: studentID, Page: NewPage(page.Limit, page.Offset)})
}

// GetReservation returns one of the student's own reservations.
func (service *Service) GetReservation(ctx context.Context, studentID StudentID, reservationID ReservationID) (Reservation, error) {
	reservation, err := service.store.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if reservation.StudentID != studentID {
		return Reservation{}, ErrUnknownReservation
	}
	return reservation, nil
}

// AdminListReservations lists reservations across students.
func (service *Service) AdminListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error) {
	filter.Page = NewPage(filter.Page.Limit, filter.Page.Offset)
	return service.store.ListReservations(ctx, filter)
}

// AdminGetReservation returns any reservation.
func (service *Service) AdminGetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error) {
	return service.store.GetReservation(ctx, reservationID)
}

// OverrideReservationStatus sets a reservation's status on an administrator's behalf.
// Moving to cancelled refunds exactly as a student cancellation does; a cancelled
// reservation cannot be revived because its payment has already been returned.
func (service *Service) OverrideReservationStatus(ctx context.Context, reservationID ReservationID, status ReservationStatus) (Reservation, error) {
	var updated Reservation
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := ParseReservationStatus(status.String()); err != nil {
			return err
		}
		reservation, err := transactionStore.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status == status {
			updated = reservation
			return nil
		}
		if reservation.Status == ReservationStatusCancelled {
			return fmt.Errorf("%w: cancelled reservations cannot change status", ErrReservationClosed)
		}
		if status == ReservationStatusCancelled {
			updated, err = service.cancelLocked(ctx, transactionStore, reservation)
			return err
		}
		if err := transactionStore.UpdateReservationStatus(ctx, reservationID, reservation.Status, status); err != nil {
			return err
		}
		reservation.Status = status
		reservation.UpdatedAt = service.nowFn().UTC()
		updated = reservation
		return nil
	})
	failure := ErrReservationFailed
	if status == ReservationStatusCancelled {
		failure = ErrCancellationFailed
	}
	operationError := wrapFailure(failure, transactionError)
	service.logOperation(ctx, OperationLog{
		Operation:      operationOverrideReservation,
		StudentID:      updated.StudentID,
		ReservationID:  reservationID,
		MenuOfferingID: updated.MenuOfferingID,
		PaymentMethod:  updated.PaymentMethod,
		Amount:         updated.PriceCents,
		Points:         updated.PointsCharged,
		Error:          operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return updated, nil
}
