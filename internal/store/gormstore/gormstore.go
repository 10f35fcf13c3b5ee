package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintStudentNumber       = "idx_students_number"
	constraintStudentEmail        = "idx_students_email"
	constraintAdminEmail          = "idx_admins_email"
	constraintRedemptionCode      = "idx_reservations_redemption_code"
	emptyTagsJSON                 = "[]"
	pgUniqueViolationCode         = "23505"
	sqliteConstraintUniqueCode    = 2067
	sqliteConstraintPrimaryCode   = 1555
	errorOperationStore           = "store"
	errorSubjectStudent           = "student"
	errorSubjectAdmin             = "admin"
	errorSubjectOffering          = "offering"
	errorSubjectReservation       = "reservation"
	errorSubjectWalletTransaction = "wallet_transaction"
	errorSubjectPointsTransaction = "points_transaction"
	errorSubjectFeedback          = "feedback"
	errorCodeAdjust               = "adjust"
	errorCodeCreate               = "create"
	errorCodeDelete               = "delete"
	errorCodeDuplicate            = "duplicate"
	errorCodeGet                  = "get"
	errorCodeInsert               = "insert"
	errorCodeInvalid              = "invalid"
	errorCodeList                 = "list"
	errorCodeLock                 = "lock"
	errorCodeLookup               = "lookup"
	errorCodeUpdate               = "update"
	errorCodeUpdateStatus         = "update_status"
)

// Store implements restaurant.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore restaurant.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateStudent(ctx context.Context, student restaurant.Student) error {
	model := Student{
		ID:                 student.ID.String(),
		Number:             student.Number.String(),
		Name:               student.Name,
		Email:              student.Email,
		University:         student.University,
		PasswordHash:       student.PasswordHash,
		Points:             student.Points.Int64(),
		WalletBalanceCents: student.WalletBalance.Int64(),
		Active:             student.Active,
		CreatedAt:          student.CreatedAt,
		UpdatedAt:          student.UpdatedAt,
		DeletedAt:          student.DeletedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err, constraintStudentNumber, constraintStudentEmail) {
		return wrapStoreError(errorSubjectStudent, errorCodeDuplicate, restaurant.ErrDuplicateStudent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetStudent(ctx context.Context, studentID restaurant.StudentID) (restaurant.Student, error) {
	return store.takeStudent(store.db.WithContext(ctx), errorCodeGet, "id = ?", studentID.String())
}

func (store *Store) LockStudent(ctx context.Context, studentID restaurant.StudentID) (restaurant.Student, error) {
	locked := store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return store.takeStudent(locked, errorCodeLock, "id = ?", studentID.String())
}

func (store *Store) FindStudentByNumber(ctx context.Context, number restaurant.StudentNumber) (restaurant.Student, error) {
	return store.takeStudent(store.db.WithContext(ctx), errorCodeLookup, "number = ?", number.String())
}

func (store *Store) takeStudent(query *gorm.DB, code string, condition string, value string) (restaurant.Student, error) {
	var model Student
	err := query.Where(condition, value).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restaurant.Student{}, wrapStoreError(errorSubjectStudent, code, restaurant.ErrUnknownStudent)
		}
		return restaurant.Student{}, wrapStoreError(errorSubjectStudent, code, err)
	}
	student, err := mapStudent(model)
	if err != nil {
		return restaurant.Student{}, wrapStoreError(errorSubjectStudent, errorCodeInvalid, err)
	}
	return student, nil
}

func (store *Store) UpdateStudent(ctx context.Context, student restaurant.Student) error {
	result := store.db.WithContext(ctx).
		Model(&Student{}).
		Where("id = ?", student.ID.String()).
		Updates(map[string]interface{}{
			"name":          student.Name,
			"email":         student.Email,
			"university":    student.University,
			"password_hash": student.PasswordHash,
			"active":        student.Active,
			"updated_at":    student.UpdatedAt,
		})
	if isUniqueConflict(result.Error, constraintStudentEmail) {
		return wrapStoreError(errorSubjectStudent, errorCodeDuplicate, restaurant.ErrDuplicateStudent)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectStudent, errorCodeUpdate, restaurant.ErrUnknownStudent)
	}
	return nil
}

func (store *Store) SetStudentDeletedAt(ctx context.Context, studentID restaurant.StudentID, deletedAt *time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Student{}).
		Where("id = ?", studentID.String()).
		Update("deleted_at", deletedAt)
	if result.Error != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectStudent, errorCodeDelete, restaurant.ErrUnknownStudent)
	}
	return nil
}

func (store *Store) ListStudents(ctx context.Context, filter restaurant.StudentFilter) ([]restaurant.Student, error) {
	query := store.db.WithContext(ctx).Model(&Student{})
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if university := strings.TrimSpace(filter.University); university != "" {
		query = query.Where("university = ?", university)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("(lower(name) LIKE ? OR lower(email) LIKE ? OR lower(number) LIKE ?)", pattern, pattern, pattern)
	}
	var rows []Student
	if err := paginate(query.Order("number ASC"), filter.Page).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectStudent, errorCodeList, err)
	}
	students := make([]restaurant.Student, 0, len(rows))
	for _, row := range rows {
		student, err := mapStudent(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectStudent, errorCodeInvalid, err)
		}
		students = append(students, student)
	}
	return students, nil
}

func (store *Store) AdjustWallet(ctx context.Context, studentID restaurant.StudentID, delta restaurant.SignedAmountCents) (restaurant.AmountCents, error) {
	balance, err := store.adjustColumn(ctx, studentID, "wallet_balance_cents", delta.Int64(), restaurant.ErrInsufficientBalance)
	if err != nil {
		return 0, err
	}
	return restaurant.AmountCents(balance), nil
}

func (store *Store) AdjustPoints(ctx context.Context, studentID restaurant.StudentID, delta int64) (restaurant.Points, error) {
	points, err := store.adjustColumn(ctx, studentID, "points", delta, restaurant.ErrInsufficientPoints)
	if err != nil {
		return 0, err
	}
	return restaurant.Points(points), nil
}

// adjustColumn applies a relative change guarded by column + delta >= 0 and returns the new value.
func (store *Store) adjustColumn(ctx context.Context, studentID restaurant.StudentID, column string, delta int64, insufficient error) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Student{}).
		Where("id = ? AND "+column+" + ? >= 0", studentID.String(), delta).
		Update(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := store.db.WithContext(ctx).Model(&Student{}).Where("id = ?", studentID.String()).Count(&count).Error; err != nil {
			return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, err)
		}
		if count == 0 {
			return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, restaurant.ErrUnknownStudent)
		}
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, insufficient)
	}
	var value int64
	err := store.db.WithContext(ctx).
		Model(&Student{}).
		Select(column).
		Where("id = ?", studentID.String()).
		Scan(&value).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, err)
	}
	return value, nil
}

func (store *Store) CreateAdmin(ctx context.Context, admin restaurant.Admin) error {
	model := Admin{
		ID:           admin.ID.String(),
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		Role:         admin.Role,
		CreatedAt:    admin.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err, constraintAdminEmail) {
		return wrapStoreError(errorSubjectAdmin, errorCodeDuplicate, restaurant.ErrDuplicateAdmin)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAdmin, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAdmin(ctx context.Context, adminID restaurant.AdminID) (restaurant.Admin, error) {
	return store.takeAdmin(ctx, errorCodeGet, "id = ?", adminID.String())
}

func (store *Store) FindAdminByEmail(ctx context.Context, email string) (restaurant.Admin, error) {
	return store.takeAdmin(ctx, errorCodeLookup, "email = ?", email)
}

func (store *Store) takeAdmin(ctx context.Context, code string, condition string, value string) (restaurant.Admin, error) {
	var model Admin
	err := store.db.WithContext(ctx).Where(condition, value).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, code, restaurant.ErrUnknownAdmin)
		}
		return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, code, err)
	}
	adminID, err := restaurant.NewAdminID(model.ID)
	if err != nil {
		return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, errorCodeInvalid, err)
	}
	return restaurant.Admin{
		ID:           adminID,
		Name:         model.Name,
		Email:        model.Email,
		PasswordHash: model.PasswordHash,
		Role:         model.Role,
		CreatedAt:    model.CreatedAt.UTC(),
	}, nil
}

func (store *Store) CreateOffering(ctx context.Context, offering restaurant.MenuOffering) error {
	model, err := offeringModel(offering)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetOffering(ctx context.Context, offeringID restaurant.MenuOfferingID) (restaurant.MenuOffering, error) {
	var model MenuOffering
	err := store.db.WithContext(ctx).Where("id = ?", offeringID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restaurant.MenuOffering{}, wrapStoreError(errorSubjectOffering, errorCodeGet, restaurant.ErrUnknownMenuOffering)
		}
		return restaurant.MenuOffering{}, wrapStoreError(errorSubjectOffering, errorCodeGet, err)
	}
	offering, err := mapOffering(model)
	if err != nil {
		return restaurant.MenuOffering{}, wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
	}
	return offering, nil
}

func (store *Store) UpdateOffering(ctx context.Context, offering restaurant.MenuOffering) error {
	model, err := offeringModel(offering)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
	}
	result := store.db.WithContext(ctx).
		Model(&MenuOffering{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"weekday":     model.Weekday,
			"meal_slot":   model.MealSlot,
			"title":       model.Title,
			"tags":        model.Tags,
			"status":      model.Status,
			"price_cents": model.PriceCents,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOffering, errorCodeUpdate, restaurant.ErrUnknownMenuOffering)
	}
	return nil
}

func (store *Store) DeleteOffering(ctx context.Context, offeringID restaurant.MenuOfferingID, deletedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&MenuOffering{}).
		Where("id = ?", offeringID.String()).
		Update("deleted_at", deletedAt)
	if result.Error != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOffering, errorCodeDelete, restaurant.ErrUnknownMenuOffering)
	}
	return nil
}

func (store *Store) ListOfferings(ctx context.Context, filter restaurant.MenuFilter) ([]restaurant.MenuOffering, error) {
	query := store.db.WithContext(ctx).Model(&MenuOffering{})
	if filter.Weekday != "" {
		query = query.Where("weekday = ?", filter.Weekday.String())
	}
	if filter.MealSlot != "" {
		query = query.Where("meal_slot = ?", filter.MealSlot.String())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	var rows []MenuOffering
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectOffering, errorCodeList, err)
	}
	offerings := make([]restaurant.MenuOffering, 0, len(rows))
	for _, row := range rows {
		offering, err := mapOffering(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
		}
		offerings = append(offerings, offering)
	}
	return offerings, nil
}

func (store *Store) CreateReservation(ctx context.Context, reservation restaurant.Reservation) error {
	model := Reservation{
		ID:             reservation.ID.String(),
		StudentID:      reservation.StudentID.String(),
		MenuOfferingID: reservation.MenuOfferingID.String(),
		Date:           reservation.Date.String(),
		RedemptionCode: reservation.RedemptionCode,
		Status:         reservation.Status.String(),
		PaymentMethod:  reservation.PaymentMethod.String(),
		PriceCents:     reservation.PriceCents.Int64(),
		PointsCharged:  reservation.PointsCharged.Int64(),
		CreatedAt:      reservation.CreatedAt,
		UpdatedAt:      reservation.UpdatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err, constraintRedemptionCode) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, restaurant.ErrDuplicateRedemptionCode)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	return store.takeReservation(store.db.WithContext(ctx), errorCodeGet, reservationID)
}

func (store *Store) LockReservation(ctx context.Context, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	locked := store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return store.takeReservation(locked, errorCodeLock, reservationID)
}

func (store *Store) takeReservation(query *gorm.DB, code string, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	var model Reservation
	err := query.Where("id = ?", reservationID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restaurant.Reservation{}, wrapStoreError(errorSubjectReservation, code, restaurant.ErrUnknownReservation)
		}
		return restaurant.Reservation{}, wrapStoreError(errorSubjectReservation, code, err)
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return restaurant.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID restaurant.ReservationID, from, to restaurant.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND status = ?", reservationID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, restaurant.ErrReservationClosed)
	}
	return nil
}

func (store *Store) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Reservation{}).Where("redemption_code = ?", code).Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) ListReservations(ctx context.Context, filter restaurant.ReservationFilter) ([]restaurant.Reservation, error) {
	query := store.db.WithContext(ctx).Model(&Reservation{})
	if !filter.StudentID.IsZero() {
		query = query.Where("student_id = ?", filter.StudentID.String())
	}
	if !filter.MenuOfferingID.IsZero() {
		query = query.Where("menu_offering_id = ?", filter.MenuOfferingID.String())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	if !filter.Date.IsZero() {
		query = query.Where("date = ?", filter.Date.String())
	}
	if !filter.DateFrom.IsZero() {
		query = query.Where("date >= ?", filter.DateFrom.String())
	}
	if !filter.DateTo.IsZero() {
		query = query.Where("date <= ?", filter.DateTo.String())
	}
	var rows []Reservation
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]restaurant.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func (store *Store) InsertWalletTransaction(ctx context.Context, transaction restaurant.WalletTransaction) error {
	model := WalletTransaction{
		ID:            transaction.ID,
		StudentID:     transaction.StudentID.String(),
		Kind:          transaction.Kind.String(),
		AmountCents:   transaction.AmountCents.Int64(),
		Description:   transaction.Description,
		ReservationID: optionalID(transaction.ReservationID.String()),
		CreatedAt:     transaction.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectWalletTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListWalletTransactions(ctx context.Context, studentID restaurant.StudentID, page restaurant.Page) ([]restaurant.WalletTransaction, error) {
	var rows []WalletTransaction
	query := store.db.WithContext(ctx).Where("student_id = ?", studentID.String()).Order("created_at DESC")
	if err := paginate(query, page).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectWalletTransaction, errorCodeList, err)
	}
	transactions := make([]restaurant.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapWalletTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectWalletTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) InsertPointsTransaction(ctx context.Context, transaction restaurant.PointsTransaction) error {
	model := PointsTransaction{
		ID:            transaction.ID,
		StudentID:     transaction.StudentID.String(),
		Kind:          transaction.Kind.String(),
		Points:        transaction.Points,
		Reason:        transaction.Reason.String(),
		ReservationID: optionalID(transaction.ReservationID.String()),
		FeedbackID:    optionalID(transaction.FeedbackID.String()),
		CreatedAt:     transaction.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectPointsTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListPointsTransactions(ctx context.Context, studentID restaurant.StudentID, page restaurant.Page) ([]restaurant.PointsTransaction, error) {
	var rows []PointsTransaction
	query := store.db.WithContext(ctx).Where("student_id = ?", studentID.String()).Order("created_at DESC")
	if err := paginate(query, page).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectPointsTransaction, errorCodeList, err)
	}
	transactions := make([]restaurant.PointsTransaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapPointsTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectPointsTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) CreateFeedback(ctx context.Context, feedback restaurant.Feedback) error {
	model := Feedback{
		ID:             feedback.ID.String(),
		StudentID:      feedback.StudentID.String(),
		MenuOfferingID: feedback.MenuOfferingID.String(),
		Rating:         feedback.Rating.Int(),
		Category:       feedback.Category.String(),
		Comment:        feedback.Comment,
		Sentiment:      feedback.Sentiment.String(),
		CreatedAt:      feedback.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectFeedback, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetFeedback(ctx context.Context, feedbackID restaurant.FeedbackID) (restaurant.Feedback, error) {
	var model Feedback
	err := store.db.WithContext(ctx).Where("id = ?", feedbackID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restaurant.Feedback{}, wrapStoreError(errorSubjectFeedback, errorCodeGet, restaurant.ErrUnknownFeedback)
		}
		return restaurant.Feedback{}, wrapStoreError(errorSubjectFeedback, errorCodeGet, err)
	}
	feedback, err := mapFeedback(model)
	if err != nil {
		return restaurant.Feedback{}, wrapStoreError(errorSubjectFeedback, errorCodeInvalid, err)
	}
	return feedback, nil
}

func (store *Store) ListFeedback(ctx context.Context, filter restaurant.FeedbackFilter) ([]restaurant.Feedback, error) {
	query := store.db.WithContext(ctx).Model(&Feedback{})
	if !filter.StudentID.IsZero() {
		query = query.Where("student_id = ?", filter.StudentID.String())
	}
	if !filter.MenuOfferingID.IsZero() {
		query = query.Where("menu_offering_id = ?", filter.MenuOfferingID.String())
	}
	if filter.Rating != 0 {
		query = query.Where("rating = ?", filter.Rating.Int())
	}
	if filter.Category != restaurant.FeedbackCategoryNone {
		query = query.Where("category = ?", filter.Category.String())
	}
	if filter.Sentiment != "" {
		query = query.Where("sentiment = ?", filter.Sentiment.String())
	}
	if !filter.CreatedFrom.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		query = query.Where("created_at < ?", filter.CreatedTo.UTC())
	}
	var rows []Feedback
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectFeedback, errorCodeList, err)
	}
	feedback := make([]restaurant.Feedback, 0, len(rows))
	for _, row := range rows {
		item, err := mapFeedback(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectFeedback, errorCodeInvalid, err)
		}
		feedback = append(feedback, item)
	}
	return feedback, nil
}

func (store *Store) DeleteFeedback(ctx context.Context, feedbackID restaurant.FeedbackID, deletedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Feedback{}).
		Where("id = ?", feedbackID.String()).
		Update("deleted_at", deletedAt)
	if result.Error != nil {
		return wrapStoreError(errorSubjectFeedback, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectFeedback, errorCodeDelete, restaurant.ErrUnknownFeedback)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return restaurant.WrapError(errorOperationStore, subject, code, err)
}

func paginate(query *gorm.DB, page restaurant.Page) *gorm.DB {
	if page.Limit <= 0 {
		return query
	}
	return query.Limit(page.Limit).Offset(page.Offset)
}

func optionalID(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func mapStudent(row Student) (restaurant.Student, error) {
	studentID, err := restaurant.NewStudentID(row.ID)
	if err != nil {
		return restaurant.Student{}, err
	}
	number, err := restaurant.NewStudentNumber(row.Number)
	if err != nil {
		return restaurant.Student{}, err
	}
	points, err := restaurant.NewPoints(row.Points)
	if err != nil {
		return restaurant.Student{}, err
	}
	balance, err := restaurant.NewAmountCents(row.WalletBalanceCents)
	if err != nil {
		return restaurant.Student{}, err
	}
	var deletedAt *time.Time
	if row.DeletedAt != nil {
		value := row.DeletedAt.UTC()
		deletedAt = &value
	}
	return restaurant.Student{
		ID:            studentID,
		Number:        number,
		Name:          row.Name,
		Email:         row.Email,
		University:    row.University,
		PasswordHash:  row.PasswordHash,
		Points:        points,
		WalletBalance: balance,
		Active:        row.Active,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
		DeletedAt:     deletedAt,
	}, nil
}

func offeringModel(offering restaurant.MenuOffering) (MenuOffering, error) {
	tags, err := tagsJSON(offering.Tags)
	if err != nil {
		return MenuOffering{}, err
	}
	return MenuOffering{
		ID:         offering.ID.String(),
		Weekday:    offering.Weekday.String(),
		MealSlot:   offering.MealSlot.String(),
		Title:      offering.Title,
		Tags:       tags,
		Status:     offering.Status.String(),
		PriceCents: offering.PriceCents.Int64(),
		CreatedAt:  offering.CreatedAt,
		UpdatedAt:  offering.UpdatedAt,
	}, nil
}

func mapOffering(row MenuOffering) (restaurant.MenuOffering, error) {
	offeringID, err := restaurant.NewMenuOfferingID(row.ID)
	if err != nil {
		return restaurant.MenuOffering{}, err
	}
	weekday, err := restaurant.ParseWeekday(row.Weekday)
	if err != nil {
		return restaurant.MenuOffering{}, err
	}
	mealSlot, err := restaurant.ParseMealSlot(row.MealSlot)
	if err != nil {
		return restaurant.MenuOffering{}, err
	}
	status, err := restaurant.ParseMenuStatus(row.Status)
	if err != nil {
		return restaurant.MenuOffering{}, err
	}
	price, err := restaurant.NewPositiveAmountCents(row.PriceCents)
	if err != nil {
		return restaurant.MenuOffering{}, err
	}
	tags := []string{}
	if len(row.Tags) > 0 {
		if err := json.Unmarshal(row.Tags, &tags); err != nil {
			return restaurant.MenuOffering{}, err
		}
	}
	return restaurant.MenuOffering{
		ID:         offeringID,
		Weekday:    weekday,
		MealSlot:   mealSlot,
		Title:      row.Title,
		Tags:       tags,
		Status:     status,
		PriceCents: price,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}

func mapReservation(row Reservation) (restaurant.Reservation, error) {
	reservationID, err := restaurant.NewReservationID(row.ID)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	studentID, err := restaurant.NewStudentID(row.StudentID)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	offeringID, err := restaurant.NewMenuOfferingID(row.MenuOfferingID)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	date, err := restaurant.ParseReservationDate(row.Date)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	status, err := restaurant.ParseReservationStatus(row.Status)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	method, err := restaurant.ParsePaymentMethod(row.PaymentMethod)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	price, err := restaurant.NewAmountCents(row.PriceCents)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	points, err := restaurant.NewPoints(row.PointsCharged)
	if err != nil {
		return restaurant.Reservation{}, err
	}
	return restaurant.Reservation{
		ID:             reservationID,
		StudentID:      studentID,
		MenuOfferingID: offeringID,
		Date:           date,
		RedemptionCode: row.RedemptionCode,
		Status:         status,
		PaymentMethod:  method,
		PriceCents:     price,
		PointsCharged:  points,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}, nil
}

func mapWalletTransaction(row WalletTransaction) (restaurant.WalletTransaction, error) {
	studentID, err := restaurant.NewStudentID(row.StudentID)
	if err != nil {
		return restaurant.WalletTransaction{}, err
	}
	kind, err := restaurant.ParseTransactionKind(row.Kind)
	if err != nil {
		return restaurant.WalletTransaction{}, err
	}
	var reservationID restaurant.ReservationID
	if raw := stringOrEmpty(row.ReservationID); raw != "" {
		reservationID, err = restaurant.NewReservationID(raw)
		if err != nil {
			return restaurant.WalletTransaction{}, err
		}
	}
	return restaurant.WalletTransaction{
		ID:            row.ID,
		StudentID:     studentID,
		Kind:          kind,
		AmountCents:   restaurant.SignedAmountCents(row.AmountCents),
		Description:   row.Description,
		ReservationID: reservationID,
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func mapPointsTransaction(row PointsTransaction) (restaurant.PointsTransaction, error) {
	studentID, err := restaurant.NewStudentID(row.StudentID)
	if err != nil {
		return restaurant.PointsTransaction{}, err
	}
	kind, err := restaurant.ParseTransactionKind(row.Kind)
	if err != nil {
		return restaurant.PointsTransaction{}, err
	}
	reason, err := restaurant.ParsePointsReason(row.Reason)
	if err != nil {
		return restaurant.PointsTransaction{}, err
	}
	var reservationID restaurant.ReservationID
	if raw := stringOrEmpty(row.ReservationID); raw != "" {
		reservationID, err = restaurant.NewReservationID(raw)
		if err != nil {
			return restaurant.PointsTransaction{}, err
		}
	}
	var feedbackID restaurant.FeedbackID
	if raw := stringOrEmpty(row.FeedbackID); raw != "" {
		feedbackID, err = restaurant.NewFeedbackID(raw)
		if err != nil {
			return restaurant.PointsTransaction{}, err
		}
	}
	return restaurant.PointsTransaction{
		ID:            row.ID,
		StudentID:     studentID,
		Kind:          kind,
		Points:        row.Points,
		Reason:        reason,
		ReservationID: reservationID,
		FeedbackID:    feedbackID,
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func mapFeedback(row Feedback) (restaurant.Feedback, error) {
	feedbackID, err := restaurant.NewFeedbackID(row.ID)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	studentID, err := restaurant.NewStudentID(row.StudentID)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	offeringID, err := restaurant.NewMenuOfferingID(row.MenuOfferingID)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	rating, err := restaurant.NewRating(row.Rating)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	category, err := restaurant.ParseFeedbackCategory(row.Category)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	sentiment, err := restaurant.ParseSentiment(row.Sentiment)
	if err != nil {
		return restaurant.Feedback{}, err
	}
	return restaurant.Feedback{
		ID:             feedbackID,
		StudentID:      studentID,
		MenuOfferingID: offeringID,
		Rating:         rating,
		Category:       category,
		Comment:        row.Comment,
		Sentiment:      sentiment,
		CreatedAt:      row.CreatedAt.UTC(),
	}, nil
}

func tagsJSON(tags []string) (datatypes.JSON, error) {
	if len(tags) == 0 {
		return datatypes.JSON([]byte(emptyTagsJSON)), nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// isUniqueConflict reports a unique violation. PostgreSQL errors must name one of
// constraints; SQLite and translated GORM errors do not carry the index name.
func isUniqueConflict(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		for _, constraint := range constraints {
			if pgErr.ConstraintName == constraint {
				return true
			}
		}
		return false
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqliteConstraintUniqueCode || code == sqliteConstraintPrimaryCode
	}
	return false
}
