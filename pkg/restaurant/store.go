package restaurant

import (
	"context"
	"time"
)

// StudentStore persists students and their balances.
type StudentStore interface {
	CreateStudent(ctx context.Context, student Student) error
	GetStudent(ctx context.Context, studentID StudentID) (Student, error)
	// LockStudent reads the student row and holds a row lock until the transaction ends.
	LockStudent(ctx context.Context, studentID StudentID) (Student, error)
	FindStudentByNumber(ctx context.Context, number StudentNumber) (Student, error)
	UpdateStudent(ctx context.Context, student Student) error
	SetStudentDeletedAt(ctx context.Context, studentID StudentID, deletedAt *time.Time) error
	ListStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
	// AdjustWallet applies delta only when the resulting balance stays non-negative.
	AdjustWallet(ctx context.Context, studentID StudentID, delta SignedAmountCents) (AmountCents, error)
	// AdjustPoints applies delta only when the resulting point count stays non-negative.
	AdjustPoints(ctx context.Context, studentID StudentID, delta int64) (Points, error)
}

// AdminStore persists administrators.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin Admin) error
	GetAdmin(ctx context.Context, adminID AdminID) (Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (Admin, error)
}

// MenuStore persists menu offerings. Deleted offerings are invisible to every read.
type MenuStore interface {
	CreateOffering(ctx context.Context, offering MenuOffering) error
	GetOffering(ctx context.Context, offeringID MenuOfferingID) (MenuOffering, error)
	UpdateOffering(ctx context.Context, offering MenuOffering) error
	DeleteOffering(ctx context.Context, offeringID MenuOfferingID, deletedAt time.Time) error
	ListOfferings(ctx context.Context, filter MenuFilter) ([]MenuOffering, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	// LockReservation reads the reservation row and holds a row lock until the transaction ends.
	LockReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from, to ReservationStatus) error
	RedemptionCodeExists(ctx context.Context, code string) (bool, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// TransactionStore appends to and reads the wallet and points logs.
type TransactionStore interface {
	InsertWalletTransaction(ctx context.Context, transaction WalletTransaction) error
	ListWalletTransactions(ctx context.Context, studentID StudentID, page Page) ([]WalletTransaction, error)
	InsertPointsTransaction(ctx context.Context, transaction PointsTransaction) error
	ListPointsTransactions(ctx context.Context, studentID StudentID, page Page) ([]PointsTransaction, error)
}

// FeedbackStore persists feedback. Deleted feedback is invisible to every read.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, feedback Feedback) error
	GetFeedback(ctx context.Context, feedbackID FeedbackID) (Feedback, error)
	ListFeedback(ctx context.Context, filter FeedbackFilter) ([]Feedback, error)
	DeleteFeedback(ctx context.Context, feedbackID FeedbackID, deletedAt time.Time) error
}

// Store is the persistence contract used by Service.
type Store interface {
	StudentStore
	AdminStore
	MenuStore
	ReservationStore
	TransactionStore
	FeedbackStore
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
}
