package restaurant

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing restaurant operation.
type OperationLog struct {
	Operation      string
	StudentID      StudentID
	ReservationID  ReservationID
	MenuOfferingID MenuOfferingID
	FeedbackID     FeedbackID
	PaymentMethod  PaymentMethod
	Amount         AmountCents
	Points         Points
	Status         string
	Error          error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithLocation sets the time zone that decides what "today" is for reservation dates.
func WithLocation(location *time.Location) ServiceOption {
	return func(service *Service) {
		if location != nil {
			service.location = location
		}
	}
}

// WithIDGenerator replaces the generator used for new record identifiers.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newID = generate
		}
	}
}

// WithRedemptionCodeGenerator replaces the random redemption code source.
func WithRedemptionCodeGenerator(generate func() (string, error)) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newRedemptionCode = generate
		}
	}
}

// WithPasswordCost sets the bcrypt cost used when hashing passwords.
func WithPasswordCost(cost int) ServiceOption {
	return func(service *Service) {
		service.passwordCost = cost
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
