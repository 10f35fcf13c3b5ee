package restaurant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func sequentialIDs(prefix string) func() string {
	var counter atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, counter.Add(1))
	}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	defaults := []ServiceOption{
		WithIDGenerator(sequentialIDs("id")),
		WithPasswordCost(bcrypt.MinCost),
	}
	service, err := NewService(store, fixedClock, append(defaults, options...)...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustStudentID(test *testing.T, raw string) StudentID {
	test.Helper()
	studentID, err := NewStudentID(raw)
	if err != nil {
		test.Fatalf("student id: %v", err)
	}
	return studentID
}

func mustStudentNumber(test *testing.T, raw string) StudentNumber {
	test.Helper()
	number, err := NewStudentNumber(raw)
	if err != nil {
		test.Fatalf("student number: %v", err)
	}
	return number
}

func mustMenuOfferingID(test *testing.T, raw string) MenuOfferingID {
	test.Helper()
	offeringID, err := NewMenuOfferingID(raw)
	if err != nil {
		test.Fatalf("menu offering id: %v", err)
	}
	return offeringID
}

func mustReservationID(test *testing.T, raw string) ReservationID {
	test.Helper()
	reservationID, err := NewReservationID(raw)
	if err != nil {
		test.Fatalf("reservation id: %v", err)
	}
	return reservationID
}

func mustDate(test *testing.T, raw string) ReservationDate {
	test.Helper()
	date, err := ParseReservationDate(raw)
	if err != nil {
		test.Fatalf("date: %v", err)
	}
	return date
}

func mustRating(test *testing.T, raw int) Rating {
	test.Helper()
	rating, err := NewRating(raw)
	if err != nil {
		test.Fatalf("rating: %v", err)
	}
	return rating
}

func mustReserve(test *testing.T, service *Service, studentID StudentID, offeringID MenuOfferingID, method PaymentMethod) Reservation {
	test.Helper()
	reservation, err := service.CreateReservation(context.Background(), studentID, offeringID, mustDate(test, "2025-03-12"), method)
	if err != nil {
		test.Fatalf("create reservation: %v", err)
	}
	return reservation
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(ctx context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) last(test *testing.T) OperationLog {
	test.Helper()
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	if len(logger.entries) == 0 {
		test.Fatalf("expected a logged operation")
	}
	return logger.entries[len(logger.entries)-1]
}
