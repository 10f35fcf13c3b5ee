package restaurant

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

var errStubFailure = errors.New("stub failure")

// stubStore is an in-memory Store. Transactions are serialised and roll back on error.
type stubStore struct {
	transactionMutex *sync.Mutex
	dataMutex        *sync.Mutex
	failures         map[string]error
	students         map[StudentID]Student
	admins           map[AdminID]Admin
	offerings        map[MenuOfferingID]MenuOffering
	reservations     map[ReservationID]Reservation
	feedback         map[FeedbackID]Feedback
	wallet           []WalletTransaction
	points           []PointsTransaction
	codes            map[string]struct{}
	transactions     int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		transactionMutex: &sync.Mutex{},
		dataMutex:        &sync.Mutex{},
		failures:         map[string]error{},
		students:         map[StudentID]Student{},
		admins:           map[AdminID]Admin{},
		offerings:        map[MenuOfferingID]MenuOffering{},
		reservations:     map[ReservationID]Reservation{},
		feedback:         map[FeedbackID]Feedback{},
		codes:            map[string]struct{}{},
	}
}

type stubSnapshot struct {
	students     map[StudentID]Student
	admins       map[AdminID]Admin
	offerings    map[MenuOfferingID]MenuOffering
	reservations map[ReservationID]Reservation
	feedback     map[FeedbackID]Feedback
	wallet       []WalletTransaction
	points       []PointsTransaction
	codes        map[string]struct{}
}

func cloneMap[K comparable, V any](source map[K]V) map[K]V {
	clone := make(map[K]V, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}

func (store *stubStore) snapshot() stubSnapshot {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	return stubSnapshot{
		students:     cloneMap(store.students),
		admins:       cloneMap(store.admins),
		offerings:    cloneMap(store.offerings),
		reservations: cloneMap(store.reservations),
		feedback:     cloneMap(store.feedback),
		wallet:       append([]WalletTransaction(nil), store.wallet...),
		points:       append([]PointsTransaction(nil), store.points...),
		codes:        cloneMap(store.codes),
	}
}

func (store *stubStore) restore(snapshot stubSnapshot) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	store.students = snapshot.students
	store.admins = snapshot.admins
	store.offerings = snapshot.offerings
	store.reservations = snapshot.reservations
	store.feedback = snapshot.feedback
	store.wallet = snapshot.wallet
	store.points = snapshot.points
	store.codes = snapshot.codes
}

func (store *stubStore) failOn(method string, err error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	store.failures[method] = err
}

func (store *stubStore) failure(method string) error {
	return store.failures[method]
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.transactionMutex.Lock()
	defer store.transactionMutex.Unlock()
	store.dataMutex.Lock()
	store.transactions++
	store.dataMutex.Unlock()
	snapshot := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(snapshot)
		return err
	}
	return nil
}

func (store *stubStore) CreateStudent(ctx context.Context, student Student) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("CreateStudent"); err != nil {
		return err
	}
	for _, existing := range store.students {
		if existing.Number == student.Number || existing.Email == student.Email {
			return ErrDuplicateStudent
		}
	}
	store.students[student.ID] = student
	return nil
}

func (store *stubStore) GetStudent(ctx context.Context, studentID StudentID) (Student, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("GetStudent"); err != nil {
		return Student{}, err
	}
	student, ok := store.students[studentID]
	if !ok {
		return Student{}, ErrUnknownStudent
	}
	return student, nil
}

func (store *stubStore) LockStudent(ctx context.Context, studentID StudentID) (Student, error) {
	store.dataMutex.Lock()
	failure := store.failure("LockStudent")
	store.dataMutex.Unlock()
	if failure != nil {
		return Student{}, failure
	}
	return store.GetStudent(ctx, studentID)
}

func (store *stubStore) FindStudentByNumber(ctx context.Context, number StudentNumber) (Student, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, student := range store.students {
		if student.Number == number {
			return student, nil
		}
	}
	return Student{}, ErrUnknownStudent
}

func (store *stubStore) UpdateStudent(ctx context.Context, student Student) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("UpdateStudent"); err != nil {
		return err
	}
	existing, ok := store.students[student.ID]
	if !ok {
		return ErrUnknownStudent
	}
	existing.Name = student.Name
	existing.Email = student.Email
	existing.University = student.University
	existing.PasswordHash = student.PasswordHash
	existing.Active = student.Active
	existing.UpdatedAt = student.UpdatedAt
	store.students[student.ID] = existing
	return nil
}

func (store *stubStore) SetStudentDeletedAt(ctx context.Context, studentID StudentID, deletedAt *time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	student, ok := store.students[studentID]
	if !ok {
		return ErrUnknownStudent
	}
	student.DeletedAt = deletedAt
	store.students[studentID] = student
	return nil
}

func (store *stubStore) ListStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	students := make([]Student, 0, len(store.students))
	for _, student := range store.students {
		if student.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.Active != nil && student.Active != *filter.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(student.Name+" "+student.Email+" "+student.Number.String()), strings.ToLower(filter.Search)) {
			continue
		}
		students = append(students, student)
	}
	sort.Slice(students, func(left, right int) bool { return students[left].Number.String() < students[right].Number.String() })
	return students, nil
}

func (store *stubStore) AdjustWallet(ctx context.Context, studentID StudentID, delta SignedAmountCents) (AmountCents, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("AdjustWallet"); err != nil {
		return 0, err
	}
	student, ok := store.students[studentID]
	if !ok {
		return 0, ErrUnknownStudent
	}
	next := student.WalletBalance.Int64() + delta.Int64()
	if next < 0 {
		return 0, ErrInsufficientBalance
	}
	student.WalletBalance = AmountCents(next)
	store.students[studentID] = student
	return student.WalletBalance, nil
}

func (store *stubStore) AdjustPoints(ctx context.Context, studentID StudentID, delta int64) (Points, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("AdjustPoints"); err != nil {
		return 0, err
	}
	student, ok := store.students[studentID]
	if !ok {
		return 0, ErrUnknownStudent
	}
	next := student.Points.Int64() + delta
	if next < 0 {
		return 0, ErrInsufficientPoints
	}
	student.Points = Points(next)
	store.students[studentID] = student
	return student.Points, nil
}

func (store *stubStore) CreateAdmin(ctx context.Context, admin Admin) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, existing := range store.admins {
		if existing.Email == admin.Email {
			return ErrDuplicateAdmin
		}
	}
	store.admins[admin.ID] = admin
	return nil
}

func (store *stubStore) GetAdmin(ctx context.Context, adminID AdminID) (Admin, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	admin, ok := store.admins[adminID]
	if !ok {
		return Admin{}, ErrUnknownAdmin
	}
	return admin, nil
}

func (store *stubStore) FindAdminByEmail(ctx context.Context, email string) (Admin, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, admin := range store.admins {
		if admin.Email == email {
			return admin, nil
		}
	}
	return Admin{}, ErrUnknownAdmin
}

func (store *stubStore) CreateOffering(ctx context.Context, offering MenuOffering) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	store.offerings[offering.ID] = offering
	return nil
}

func (store *stubStore) GetOffering(ctx context.Context, offeringID MenuOfferingID) (MenuOffering, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("GetOffering"); err != nil {
		return MenuOffering{}, err
	}
	offering, ok := store.offerings[offeringID]
	if !ok {
		return MenuOffering{}, ErrUnknownMenuOffering
	}
	return offering, nil
}

func (store *stubStore) UpdateOffering(ctx context.Context, offering MenuOffering) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if _, ok := store.offerings[offering.ID]; !ok {
		return ErrUnknownMenuOffering
	}
	store.offerings[offering.ID] = offering
	return nil
}

func (store *stubStore) DeleteOffering(ctx context.Context, offeringID MenuOfferingID, deletedAt time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if _, ok := store.offerings[offeringID]; !ok {
		return ErrUnknownMenuOffering
	}
	delete(store.offerings, offeringID)
	return nil
}

func (store *stubStore) ListOfferings(ctx context.Context, filter MenuFilter) ([]MenuOffering, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	offerings := make([]MenuOffering, 0, len(store.offerings))
	for _, offering := range store.offerings {
		if filter.Weekday != "" && offering.Weekday != filter.Weekday {
			continue
		}
		if filter.MealSlot != "" && offering.MealSlot != filter.MealSlot {
			continue
		}
		if filter.Status != "" && offering.Status != filter.Status {
			continue
		}
		offerings = append(offerings, offering)
	}
	return offerings, nil
}

func (store *stubStore) CreateReservation(ctx context.Context, reservation Reservation) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("CreateReservation"); err != nil {
		return err
	}
	if _, exists := store.codes[reservation.RedemptionCode]; exists {
		return ErrDuplicateRedemptionCode
	}
	store.reservations[reservation.ID] = reservation
	store.codes[reservation.RedemptionCode] = struct{}{}
	return nil
}

func (store *stubStore) GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	reservation, ok := store.reservations[reservationID]
	if !ok {
		return Reservation{}, ErrUnknownReservation
	}
	return reservation, nil
}

func (store *stubStore) LockReservation(ctx context.Context, reservationID ReservationID) (Reservation, error) {
	store.dataMutex.Lock()
	failure := store.failure("LockReservation")
	store.dataMutex.Unlock()
	if failure != nil {
		return Reservation{}, failure
	}
	return store.GetReservation(ctx, reservationID)
}

func (store *stubStore) UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from, to ReservationStatus) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("UpdateReservationStatus"); err != nil {
		return err
	}
	reservation, ok := store.reservations[reservationID]
	if !ok {
		return ErrUnknownReservation
	}
	if reservation.Status != from {
		return ErrReservationClosed
	}
	reservation.Status = to
	store.reservations[reservationID] = reservation
	return nil
}

func (store *stubStore) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	_, exists := store.codes[code]
	return exists, nil
}

func (store *stubStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	reservations := make([]Reservation, 0, len(store.reservations))
	for _, reservation := range store.reservations {
		if !filter.StudentID.IsZero() && reservation.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && reservation.Status != filter.Status {
			continue
		}
		if !filter.DateFrom.IsZero() && reservation.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && filter.DateTo.Before(reservation.Date) {
			continue
		}
		reservations = append(reservations, reservation)
	}
	sort.Slice(reservations, func(left, right int) bool {
		return reservations[left].CreatedAt.After(reservations[right].CreatedAt)
	})
	return reservations, nil
}

func (store *stubStore) InsertWalletTransaction(ctx context.Context, transaction WalletTransaction) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("InsertWalletTransaction"); err != nil {
		return err
	}
	store.wallet = append(store.wallet, transaction)
	return nil
}

func (store *stubStore) ListWalletTransactions(ctx context.Context, studentID StudentID, page Page) ([]WalletTransaction, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	transactions := []WalletTransaction{}
	for index := len(store.wallet) - 1; index >= 0; index-- {
		if store.wallet[index].StudentID == studentID {
			transactions = append(transactions, store.wallet[index])
		}
	}
	return transactions, nil
}

func (store *stubStore) InsertPointsTransaction(ctx context.Context, transaction PointsTransaction) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("InsertPointsTransaction"); err != nil {
		return err
	}
	store.points = append(store.points, transaction)
	return nil
}

func (store *stubStore) ListPointsTransactions(ctx context.Context, studentID StudentID, page Page) ([]PointsTransaction, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	transactions := []PointsTransaction{}
	for index := len(store.points) - 1; index >= 0; index-- {
		if store.points[index].StudentID == studentID {
			transactions = append(transactions, store.points[index])
		}
	}
	return transactions, nil
}

func (store *stubStore) CreateFeedback(ctx context.Context, feedback Feedback) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if err := store.failure("CreateFeedback"); err != nil {
		return err
	}
	store.feedback[feedback.ID] = feedback
	return nil
}

func (store *stubStore) GetFeedback(ctx context.Context, feedbackID FeedbackID) (Feedback, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	feedback, ok := store.feedback[feedbackID]
	if !ok {
		return Feedback{}, ErrUnknownFeedback
	}
	return feedback, nil
}

func (store *stubStore) ListFeedback(ctx context.Context, filter FeedbackFilter) ([]Feedback, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	feedback := make([]Feedback, 0, len(store.feedback))
	for _, item := range store.feedback {
		if !filter.StudentID.IsZero() && item.StudentID != filter.StudentID {
			continue
		}
		if !filter.CreatedFrom.IsZero() && item.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && !item.CreatedAt.Before(filter.CreatedTo) {
			continue
		}
		feedback = append(feedback, item)
	}
	return feedback, nil
}

func (store *stubStore) DeleteFeedback(ctx context.Context, feedbackID FeedbackID, deletedAt time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if _, ok := store.feedback[feedbackID]; !ok {
		return ErrUnknownFeedback
	}
	delete(store.feedback, feedbackID)
	return nil
}

func (store *stubStore) mustStudent(test *testing.T, studentID StudentID) Student {
	test.Helper()
	student, err := store.GetStudent(context.Background(), studentID)
	if err != nil {
		test.Fatalf("student %s: %v", studentID, err)
	}
	return student
}

func (store *stubStore) walletTransactionsFor(reservationID ReservationID) []WalletTransaction {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	matches := []WalletTransaction{}
	for _, transaction := range store.wallet {
		if transaction.ReservationID == reservationID {
			matches = append(matches, transaction)
		}
	}
	return matches
}

func (store *stubStore) counts() (int, int, int) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	return len(store.reservations), len(store.wallet), len(store.points)
}

// seedStudent stores a student directly, bypassing the ledger.
func (store *stubStore) seedStudent(test *testing.T, rawID string, walletCents int64, points int64) StudentID {
	test.Helper()
	studentID := mustStudentID(test, rawID)
	store.students[studentID] = Student{
		ID:            studentID,
		Number:        mustStudentNumber(test, "STU-"+rawID),
		Name:          "Student " + rawID,
		Email:         rawID + "@campus.example",
		WalletBalance: AmountCents(walletCents),
		Points:        Points(points),
		Active:        true,
	}
	return studentID
}

func (store *stubStore) seedOffering(test *testing.T, rawID string, priceCents int64, status MenuStatus) MenuOfferingID {
	test.Helper()
	offeringID := mustMenuOfferingID(test, rawID)
	store.offerings[offeringID] = MenuOffering{
		ID:         offeringID,
		Weekday:    WeekdayMonday,
		MealSlot:   MealSlotLunch,
		Title:      "Couscous " + rawID,
		Tags:       []string{"vegetarian"},
		Status:     status,
		PriceCents: PositiveAmountCents(priceCents),
	}
	return offeringID
}
