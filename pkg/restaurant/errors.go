package restaurant

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the restaurant service.
var (
	ErrMenuUnavailable          = errors.New("menu unavailable")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientPoints       = errors.New("insufficient points")
	ErrInvalidPaymentMethod     = errors.New("invalid payment method")
	ErrAlreadyCancelled         = errors.New("reservation already cancelled")
	ErrNotFound                 = errors.New("not found")
	ErrReservationFailed        = errors.New("reservation failed")
	ErrCancellationFailed       = errors.New("cancellation failed")
	ErrFeedbackFailed           = errors.New("feedback failed")
	ErrReservationClosed        = errors.New("reservation closed")
	ErrStudentInactive          = errors.New("student inactive")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrDuplicateStudent         = errors.New("student already exists")
	ErrDuplicateAdmin           = errors.New("admin already exists")
	ErrDuplicateRedemptionCode  = errors.New("duplicate redemption code")
	ErrInvalidStudentID         = errors.New("invalid student id")
	ErrInvalidStudentNumber     = errors.New("invalid student number")
	ErrInvalidAdminID           = errors.New("invalid admin id")
	ErrInvalidMenuOfferingID    = errors.New("invalid menu offering id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidFeedbackID        = errors.New("invalid feedback id")
	ErrInvalidAmountCents       = errors.New("invalid amount cents")
	ErrInvalidPoints            = errors.New("invalid points")
	ErrInvalidReservationDate   = errors.New("invalid reservation date")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidWeekday           = errors.New("invalid weekday")
	ErrInvalidMealSlot          = errors.New("invalid meal slot")
	ErrInvalidMenuStatus        = errors.New("invalid menu status")
	ErrInvalidMenuTitle         = errors.New("invalid menu title")
	ErrInvalidMenuTag           = errors.New("invalid menu tag")
	ErrInvalidRating            = errors.New("invalid rating")
	ErrInvalidFeedbackCategory  = errors.New("invalid feedback category")
	ErrInvalidFeedbackComment   = errors.New("invalid feedback comment")
	ErrInvalidSentiment         = errors.New("invalid sentiment")
	ErrInvalidTransactionKind   = errors.New("invalid transaction kind")
	ErrInvalidPointsReason      = errors.New("invalid points reason")
	ErrInvalidProfile           = errors.New("invalid profile")
	ErrInvalidPassword          = errors.New("invalid password")
	ErrInvalidDateRange         = errors.New("invalid date range")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// Missing-record errors; each matches ErrNotFound under errors.Is.
var (
	ErrUnknownStudent      = fmt.Errorf("unknown student: %w", ErrNotFound)
	ErrUnknownAdmin        = fmt.Errorf("unknown admin: %w", ErrNotFound)
	ErrUnknownMenuOffering = fmt.Errorf("unknown menu offering: %w", ErrNotFound)
	ErrUnknownReservation  = fmt.Errorf("unknown reservation: %w", ErrNotFound)
	ErrUnknownFeedback     = fmt.Errorf("unknown feedback: %w", ErrNotFound)
)

// domainErrors are surfaced to callers unchanged; anything else raised inside an
// atomic unit is reported through the operation's generic failure value.
var domainErrors = []error{
	ErrMenuUnavailable,
	ErrInsufficientBalance,
	ErrInsufficientPoints,
	ErrInvalidPaymentMethod,
	ErrAlreadyCancelled,
	ErrNotFound,
	ErrReservationClosed,
	ErrStudentInactive,
	ErrInvalidCredentials,
	ErrDuplicateStudent,
	ErrDuplicateAdmin,
	ErrInvalidStudentID,
	ErrInvalidStudentNumber,
	ErrInvalidAdminID,
	ErrInvalidMenuOfferingID,
	ErrInvalidReservationID,
	ErrInvalidFeedbackID,
	ErrInvalidAmountCents,
	ErrInvalidPoints,
	ErrInvalidReservationDate,
	ErrInvalidReservationStatus,
	ErrInvalidWeekday,
	ErrInvalidMealSlot,
	ErrInvalidMenuStatus,
	ErrInvalidMenuTitle,
	ErrInvalidMenuTag,
	ErrInvalidRating,
	ErrInvalidFeedbackCategory,
	ErrInvalidFeedbackComment,
	ErrInvalidProfile,
	ErrInvalidPassword,
	ErrInvalidDateRange,
}

// IsDomainError reports whether err carries one of the user-facing domain errors.
func IsDomainError(err error) bool {
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return true
		}
	}
	return false
}

// wrapFailure reports infrastructure failures as the operation's failure value
// while letting domain errors through untouched.
func wrapFailure(failure error, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", failure, err)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
