package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintStudentNumber       = "idx_students_number"
	constraintStudentEmail        = "idx_students_email"
	constraintAdminEmail          = "idx_admins_email"
	constraintRedemptionCode      = "idx_reservations_redemption_code"
	pgUniqueViolationCode         = "23505"
	errorOperationStore           = "store"
	errorSubjectStudent           = "student"
	errorSubjectAdmin             = "admin"
	errorSubjectOffering          = "offering"
	errorSubjectReservation       = "reservation"
	errorSubjectWalletTransaction = "wallet_transaction"
	errorSubjectPointsTransaction = "points_transaction"
	errorSubjectFeedback          = "feedback"
	errorSubjectTransaction       = "transaction"
	errorCodeAdjust               = "adjust"
	errorCodeBegin                = "begin"
	errorCodeCommit               = "commit"
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

	sqlStudentColumns = `
		id::text, number, name, email, university, password_hash, points, wallet_balance_cents,
		active, created_at, updated_at, deleted_at
	`

	sqlInsertStudent = `
		insert into students(
			id, number, name, email, university, password_hash, points, wallet_balance_cents,
			active, created_at, updated_at, deleted_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	sqlSelectStudentByID = `select ` + sqlStudentColumns + ` from students where id = $1`

	sqlLockStudent = sqlSelectStudentByID + ` for update`

	sqlSelectStudentByNumber = `select ` + sqlStudentColumns + ` from students where number = $1`

	sqlUpdateStudent = `
		update students
		set name = $2, email = $3, university = $4, password_hash = $5, active = $6, updated_at = $7
		where id = $1
	`

	sqlSetStudentDeletedAt = `update students set deleted_at = $2, updated_at = now() where id = $1`

	sqlAdjustWallet = `
		update students
		set wallet_balance_cents = wallet_balance_cents + $2, updated_at = now()
		where id = $1 and wallet_balance_cents + $2 >= 0
		returning wallet_balance_cents
	`

	sqlAdjustPoints = `
		update students
		set points = points + $2, updated_at = now()
		where id = $1 and points + $2 >= 0
		returning points
	`

	sqlStudentExists = `select exists(select 1 from students where id = $1)`

	sqlInsertAdmin = `
		insert into admins(id, name, email, password_hash, role, created_at)
		values($1, $2, $3, $4, $5, $6)
	`

	sqlAdminColumns = `id::text, name, email, password_hash, role, created_at`

	sqlOfferingColumns = `
		id::text, weekday, meal_slot, title, coalesce(tags::text,'[]'), status, price_cents, created_at, updated_at
	`

	sqlInsertOffering = `
		insert into menu_offerings(id, weekday, meal_slot, title, tags, status, price_cents, created_at, updated_at)
		values($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
	`

	sqlSelectOffering = `
		select ` + sqlOfferingColumns + `
		from menu_offerings
		where id = $1 and deleted_at is null
	`

	sqlUpdateOffering = `
		update menu_offerings
		set weekday = $2, meal_slot = $3, title = $4, tags = $5::jsonb, status = $6, price_cents = $7, updated_at = $8
		where id = $1 and deleted_at is null
	`

	sqlDeleteOffering = `update menu_offerings set deleted_at = $2 where id = $1 and deleted_at is null`

	sqlReservationColumns = `
		id::text, student_id::text, menu_offering_id::text, "date", redemption_code, status, payment_method,
		price_cents, points_charged, created_at, updated_at
	`

	sqlInsertReservation = `
		insert into reservations(
			id, student_id, menu_offering_id, "date", redemption_code, status, payment_method,
			price_cents, points_charged, created_at, updated_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	sqlSelectReservation = `
		select ` + sqlReservationColumns + `
		from reservations
		where id = $1
	`

	sqlSelectReservationForUpdate = sqlSelectReservation + `for update`

	sqlUpdateReservationStatus = `
		update reservations
		set status = $3, updated_at = now()
		where id = $1 and status = $2
	`

	sqlRedemptionCodeExists = `select exists(select 1 from reservations where redemption_code = $1)`

	sqlInsertWalletTransaction = `
		insert into wallet_transactions(id, student_id, kind, amount_cents, description, reservation_id, created_at)
		values($1, $2, $3, $4, $5, nullif($6,'')::uuid, $7)
	`

	sqlListWalletTransactions = `
		select id::text, student_id::text, kind, amount_cents, description, coalesce(reservation_id::text,''), created_at
		from wallet_transactions
		where student_id = $1
		order by created_at desc
	`

	sqlInsertPointsTransaction = `
		insert into points_transactions(id, student_id, kind, points, reason, reservation_id, feedback_id, created_at)
		values($1, $2, $3, $4, $5, nullif($6,'')::uuid, nullif($7,'')::uuid, $8)
	`

	sqlListPointsTransactions = `
		select id::text, student_id::text, kind, points, reason, coalesce(reservation_id::text,''),
			coalesce(feedback_id::text,''), created_at
		from points_transactions
		where student_id = $1
		order by created_at desc
	`

	sqlFeedbackColumns = `
		id::text, student_id::text, menu_offering_id::text, rating, category, comment, sentiment, created_at
	`

	sqlInsertFeedback = `
		insert into feedback(id, student_id, menu_offering_id, rating, category, comment, sentiment, created_at)
		values($1, $2, $3, $4, $5, $6, $7, $8)
	`

	sqlSelectFeedback = `
		select ` + sqlFeedbackColumns + `
		from feedback
		where id = $1 and deleted_at is null
	`

	sqlDeleteFeedback = `update feedback set deleted_at = $2 where id = $1 and deleted_at is null`
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements restaurant.Store using a pgx connection pool (autocommit) or,
// inside WithTx, an open transaction.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// New returns a Store backed by a pgx pool. The schema is the one gormstore migrates.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// WithTx executes fn within a transaction. A transaction-bound store runs fn in place.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore restaurant.Store) error) error {
	if store.pool == nil {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &Store{db: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateStudent(ctx context.Context, student restaurant.Student) error {
	_, err := store.db.Exec(ctx, sqlInsertStudent,
		student.ID.String(),
		student.Number.String(),
		student.Name,
		student.Email,
		student.University,
		student.PasswordHash,
		student.Points.Int64(),
		student.WalletBalance.Int64(),
		student.Active,
		student.CreatedAt,
		student.UpdatedAt,
		student.DeletedAt,
	)
	if isUniqueViolation(err, constraintStudentNumber, constraintStudentEmail) {
		return wrapStoreError(errorSubjectStudent, errorCodeDuplicate, restaurant.ErrDuplicateStudent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetStudent(ctx context.Context, studentID restaurant.StudentID) (restaurant.Student, error) {
	return store.selectStudent(ctx, errorCodeGet, sqlSelectStudentByID, studentID.String())
}

func (store *Store) LockStudent(ctx context.Context, studentID restaurant.StudentID) (restaurant.Student, error) {
	return store.selectStudent(ctx, errorCodeLock, sqlLockStudent, studentID.String())
}

func (store *Store) FindStudentByNumber(ctx context.Context, number restaurant.StudentNumber) (restaurant.Student, error) {
	return store.selectStudent(ctx, errorCodeLookup, sqlSelectStudentByNumber, number.String())
}

func (store *Store) selectStudent(ctx context.Context, code string, query string, argument string) (restaurant.Student, error) {
	student, err := scanStudent(store.db.QueryRow(ctx, query, argument))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Student{}, wrapStoreError(errorSubjectStudent, code, restaurant.ErrUnknownStudent)
		}
		return restaurant.Student{}, wrapStoreError(errorSubjectStudent, code, err)
	}
	return student, nil
}

func (store *Store) UpdateStudent(ctx context.Context, student restaurant.Student) error {
	tag, err := store.db.Exec(ctx, sqlUpdateStudent,
		student.ID.String(),
		student.Name,
		student.Email,
		student.University,
		student.PasswordHash,
		student.Active,
		student.UpdatedAt,
	)
	if isUniqueViolation(err, constraintStudentEmail) {
		return wrapStoreError(errorSubjectStudent, errorCodeDuplicate, restaurant.ErrDuplicateStudent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectStudent, errorCodeUpdate, restaurant.ErrUnknownStudent)
	}
	return nil
}

func (store *Store) SetStudentDeletedAt(ctx context.Context, studentID restaurant.StudentID, deletedAt *time.Time) error {
	tag, err := store.db.Exec(ctx, sqlSetStudentDeletedAt, studentID.String(), deletedAt)
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectStudent, errorCodeDelete, restaurant.ErrUnknownStudent)
	}
	return nil
}

func (store *Store) ListStudents(ctx context.Context, filter restaurant.StudentFilter) ([]restaurant.Student, error) {
	where := newConditions()
	if !filter.IncludeDeleted {
		where.add("deleted_at is null")
	}
	if filter.Active != nil {
		where.add("active = %s", *filter.Active)
	}
	if university := strings.TrimSpace(filter.University); university != "" {
		where.add("university = %s", university)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		where.add("(lower(name) like %[1]s or lower(email) like %[1]s or lower(number) like %[1]s)", pattern)
	}
	query := "select " + sqlStudentColumns + " from students" + where.sql() + " order by number asc" + where.page(filter.Page)
	rows, err := store.db.Query(ctx, query, where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectStudent, errorCodeList, err)
	}
	students, err := collect(rows, scanStudent)
	if err != nil {
		return nil, wrapStoreError(errorSubjectStudent, errorCodeList, err)
	}
	return students, nil
}

func (store *Store) AdjustWallet(ctx context.Context, studentID restaurant.StudentID, delta restaurant.SignedAmountCents) (restaurant.AmountCents, error) {
	balance, err := store.adjust(ctx, sqlAdjustWallet, studentID, delta.Int64(), restaurant.ErrInsufficientBalance)
	if err != nil {
		return 0, err
	}
	return restaurant.AmountCents(balance), nil
}

func (store *Store) AdjustPoints(ctx context.Context, studentID restaurant.StudentID, delta int64) (restaurant.Points, error) {
	points, err := store.adjust(ctx, sqlAdjustPoints, studentID, delta, restaurant.ErrInsufficientPoints)
	if err != nil {
		return 0, err
	}
	return restaurant.Points(points), nil
}

func (store *Store) adjust(ctx context.Context, query string, studentID restaurant.StudentID, delta int64, insufficient error) (int64, error) {
	var value int64
	err := store.db.QueryRow(ctx, query, studentID.String(), delta).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, err)
	}
	var exists bool
	if err := store.db.QueryRow(ctx, sqlStudentExists, studentID.String()).Scan(&exists); err != nil {
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, err)
	}
	if !exists {
		return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, restaurant.ErrUnknownStudent)
	}
	return 0, wrapStoreError(errorSubjectStudent, errorCodeAdjust, insufficient)
}

func (store *Store) CreateAdmin(ctx context.Context, admin restaurant.Admin) error {
	_, err := store.db.Exec(ctx, sqlInsertAdmin,
		admin.ID.String(),
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		admin.CreatedAt,
	)
	if isUniqueViolation(err, constraintAdminEmail) {
		return wrapStoreError(errorSubjectAdmin, errorCodeDuplicate, restaurant.ErrDuplicateAdmin)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAdmin, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAdmin(ctx context.Context, adminID restaurant.AdminID) (restaurant.Admin, error) {
	return store.selectAdmin(ctx, errorCodeGet, "id", adminID.String())
}

func (store *Store) FindAdminByEmail(ctx context.Context, email string) (restaurant.Admin, error) {
	return store.selectAdmin(ctx, errorCodeLookup, "email", email)
}

func (store *Store) selectAdmin(ctx context.Context, code string, column string, value string) (restaurant.Admin, error) {
	var (
		rawID string
		admin restaurant.Admin
	)
	query := "select " + sqlAdminColumns + " from admins where " + column + " = $1"
	err := store.db.QueryRow(ctx, query, value).Scan(&rawID, &admin.Name, &admin.Email, &admin.PasswordHash, &admin.Role, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, code, restaurant.ErrUnknownAdmin)
		}
		return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, code, err)
	}
	adminID, err := restaurant.NewAdminID(rawID)
	if err != nil {
		return restaurant.Admin{}, wrapStoreError(errorSubjectAdmin, errorCodeInvalid, err)
	}
	admin.ID = adminID
	admin.CreatedAt = admin.CreatedAt.UTC()
	return admin, nil
}

func (store *Store) CreateOffering(ctx context.Context, offering restaurant.MenuOffering) error {
	tags, err := tagsJSON(offering.Tags)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
	}
	_, err = store.db.Exec(ctx, sqlInsertOffering,
		offering.ID.String(),
		offering.Weekday.String(),
		offering.MealSlot.String(),
		offering.Title,
		tags,
		offering.Status.String(),
		offering.PriceCents.Int64(),
		offering.CreatedAt,
		offering.UpdatedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetOffering(ctx context.Context, offeringID restaurant.MenuOfferingID) (restaurant.MenuOffering, error) {
	offering, err := scanOffering(store.db.QueryRow(ctx, sqlSelectOffering, offeringID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.MenuOffering{}, wrapStoreError(errorSubjectOffering, errorCodeGet, restaurant.ErrUnknownMenuOffering)
		}
		return restaurant.MenuOffering{}, wrapStoreError(errorSubjectOffering, errorCodeGet, err)
	}
	return offering, nil
}

func (store *Store) UpdateOffering(ctx context.Context, offering restaurant.MenuOffering) error {
	tags, err := tagsJSON(offering.Tags)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeInvalid, err)
	}
	tag, err := store.db.Exec(ctx, sqlUpdateOffering,
		offering.ID.String(),
		offering.Weekday.String(),
		offering.MealSlot.String(),
		offering.Title,
		tags,
		offering.Status.String(),
		offering.PriceCents.Int64(),
		offering.UpdatedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectOffering, errorCodeUpdate, restaurant.ErrUnknownMenuOffering)
	}
	return nil
}

func (store *Store) DeleteOffering(ctx context.Context, offeringID restaurant.MenuOfferingID, deletedAt time.Time) error {
	tag, err := store.db.Exec(ctx, sqlDeleteOffering, offeringID.String(), deletedAt)
	if err != nil {
		return wrapStoreError(errorSubjectOffering, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectOffering, errorCodeDelete, restaurant.ErrUnknownMenuOffering)
	}
	return nil
}

func (store *Store) ListOfferings(ctx context.Context, filter restaurant.MenuFilter) ([]restaurant.MenuOffering, error) {
	where := newConditions()
	where.add("deleted_at is null")
	if filter.Weekday != "" {
		where.add("weekday = %s", filter.Weekday.String())
	}
	if filter.MealSlot != "" {
		where.add("meal_slot = %s", filter.MealSlot.String())
	}
	if filter.Status != "" {
		where.add("status = %s", filter.Status.String())
	}
	query := "select " + sqlOfferingColumns + " from menu_offerings" + where.sql() + " order by created_at asc"
	rows, err := store.db.Query(ctx, query, where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectOffering, errorCodeList, err)
	}
	offerings, err := collect(rows, scanOffering)
	if err != nil {
		return nil, wrapStoreError(errorSubjectOffering, errorCodeList, err)
	}
	return offerings, nil
}

func (store *Store) CreateReservation(ctx context.Context, reservation restaurant.Reservation) error {
	_, err := store.db.Exec(ctx, sqlInsertReservation,
		reservation.ID.String(),
		reservation.StudentID.String(),
		reservation.MenuOfferingID.String(),
		reservation.Date.String(),
		reservation.RedemptionCode,
		reservation.Status.String(),
		reservation.PaymentMethod.String(),
		reservation.PriceCents.Int64(),
		reservation.PointsCharged.Int64(),
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if isUniqueViolation(err, constraintRedemptionCode) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, restaurant.ErrDuplicateRedemptionCode)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	return store.selectReservation(ctx, errorCodeGet, sqlSelectReservation, reservationID)
}

func (store *Store) LockReservation(ctx context.Context, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	return store.selectReservation(ctx, errorCodeLock, sqlSelectReservationForUpdate, reservationID)
}

func (store *Store) selectReservation(ctx context.Context, code string, query string, reservationID restaurant.ReservationID) (restaurant.Reservation, error) {
	reservation, err := scanReservation(store.db.QueryRow(ctx, query, reservationID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Reservation{}, wrapStoreError(errorSubjectReservation, code, restaurant.ErrUnknownReservation)
		}
		return restaurant.Reservation{}, wrapStoreError(errorSubjectReservation, code, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID restaurant.ReservationID, from, to restaurant.ReservationStatus) error {
	tag, err := store.db.Exec(ctx, sqlUpdateReservationStatus, reservationID.String(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, restaurant.ErrReservationClosed)
	}
	return nil
}

func (store *Store) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := store.db.QueryRow(ctx, sqlRedemptionCodeExists, code).Scan(&exists); err != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	return exists, nil
}

func (store *Store) ListReservations(ctx context.Context, filter restaurant.ReservationFilter) ([]restaurant.Reservation, error) {
	where := newConditions()
	if !filter.StudentID.IsZero() {
		where.add("student_id = %s", filter.StudentID.String())
	}
	if !filter.MenuOfferingID.IsZero() {
		where.add("menu_offering_id = %s", filter.MenuOfferingID.String())
	}
	if filter.Status != "" {
		where.add("status = %s", filter.Status.String())
	}
	if !filter.Date.IsZero() {
		where.add(`"date" = %s`, filter.Date.String())
	}
	if !filter.DateFrom.IsZero() {
		where.add(`"date" >= %s`, filter.DateFrom.String())
	}
	if !filter.DateTo.IsZero() {
		where.add(`"date" <= %s`, filter.DateTo.String())
	}
	query := "select " + sqlReservationColumns + " from reservations" + where.sql() + " order by created_at desc" + where.page(filter.Page)
	rows, err := store.db.Query(ctx, query, where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations, err := collect(rows, scanReservation)
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	return reservations, nil
}

func (store *Store) InsertWalletTransaction(ctx context.Context, transaction restaurant.WalletTransaction) error {
	_, err := store.db.Exec(ctx, sqlInsertWalletTransaction,
		transaction.ID,
		transaction.StudentID.String(),
		transaction.Kind.String(),
		transaction.AmountCents.Int64(),
		transaction.Description,
		transaction.ReservationID.String(),
		transaction.CreatedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectWalletTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListWalletTransactions(ctx context.Context, studentID restaurant.StudentID, page restaurant.Page) ([]restaurant.WalletTransaction, error) {
	where := newConditions()
	where.arguments = append(where.arguments, studentID.String())
	rows, err := store.db.Query(ctx, sqlListWalletTransactions+where.page(page), where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectWalletTransaction, errorCodeList, err)
	}
	transactions, err := collect(rows, scanWalletTransaction)
	if err != nil {
		return nil, wrapStoreError(errorSubjectWalletTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func (store *Store) InsertPointsTransaction(ctx context.Context, transaction restaurant.PointsTransaction) error {
	_, err := store.db.Exec(ctx, sqlInsertPointsTransaction,
		transaction.ID,
		transaction.StudentID.String(),
		transaction.Kind.String(),
		transaction.Points,
		transaction.Reason.String(),
		transaction.ReservationID.String(),
		transaction.FeedbackID.String(),
		transaction.CreatedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectPointsTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListPointsTransactions(ctx context.Context, studentID restaurant.StudentID, page restaurant.Page) ([]restaurant.PointsTransaction, error) {
	where := newConditions()
	where.arguments = append(where.arguments, studentID.String())
	rows, err := store.db.Query(ctx, sqlListPointsTransactions+where.page(page), where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectPointsTransaction, errorCodeList, err)
	}
	transactions, err := collect(rows, scanPointsTransaction)
	if err != nil {
		return nil, wrapStoreError(errorSubjectPointsTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func (store *Store) CreateFeedback(ctx context.Context, feedback restaurant.Feedback) error {
	_, err := store.db.Exec(ctx, sqlInsertFeedback,
		feedback.ID.String(),
		feedback.StudentID.String(),
		feedback.MenuOfferingID.String(),
		feedback.Rating.Int(),
		feedback.Category.String(),
		feedback.Comment,
		feedback.Sentiment.String(),
		feedback.CreatedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectFeedback, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetFeedback(ctx context.Context, feedbackID restaurant.FeedbackID) (restaurant.Feedback, error) {
	feedback, err := scanFeedback(store.db.QueryRow(ctx, sqlSelectFeedback, feedbackID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Feedback{}, wrapStoreError(errorSubjectFeedback, errorCodeGet, restaurant.ErrUnknownFeedback)
		}
		return restaurant.Feedback{}, wrapStoreError(errorSubjectFeedback, errorCodeGet, err)
	}
	return feedback, nil
}

func (store *Store) ListFeedback(ctx context.Context, filter restaurant.FeedbackFilter) ([]restaurant.Feedback, error) {
	where := newConditions()
	where.add("deleted_at is null")
	if !filter.StudentID.IsZero() {
		where.add("student_id = %s", filter.StudentID.String())
	}
	if !filter.MenuOfferingID.IsZero() {
		where.add("menu_offering_id = %s", filter.MenuOfferingID.String())
	}
	if filter.Rating != 0 {
		where.add("rating = %s", filter.Rating.Int())
	}
	if filter.Category != restaurant.FeedbackCategoryNone {
		where.add("category = %s", filter.Category.String())
	}
	if filter.Sentiment != "" {
		where.add("sentiment = %s", filter.Sentiment.String())
	}
	if !filter.CreatedFrom.IsZero() {
		where.add("created_at >= %s", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		where.add("created_at < %s", filter.CreatedTo.UTC())
	}
	query := "select " + sqlFeedbackColumns + " from feedback" + where.sql() + " order by created_at desc" + where.page(filter.Page)
	rows, err := store.db.Query(ctx, query, where.arguments...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectFeedback, errorCodeList, err)
	}
	feedback, err := collect(rows, scanFeedback)
	if err != nil {
		return nil, wrapStoreError(errorSubjectFeedback, errorCodeList, err)
	}
	return feedback, nil
}

func (store *Store) DeleteFeedback(ctx context.Context, feedbackID restaurant.FeedbackID, deletedAt time.Time) error {
	tag, err := store.db.Exec(ctx, sqlDeleteFeedback, feedbackID.String(), deletedAt)
	if err != nil {
		return wrapStoreError(errorSubjectFeedback, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectFeedback, errorCodeDelete, restaurant.ErrUnknownFeedback)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return restaurant.WrapError(errorOperationStore, subject, code, err)
}

// conditions accumulates a where clause with positional arguments. Each %s in a
// fragment becomes the placeholder of the argument passed with it.
type conditions struct {
	fragments []string
	arguments []any
}

func newConditions() *conditions {
	return &conditions{}
}

func (where *conditions) add(fragment string, arguments ...any) {
	if len(arguments) == 0 {
		where.fragments = append(where.fragments, fragment)
		return
	}
	where.arguments = append(where.arguments, arguments...)
	placeholders := make([]any, len(arguments))
	for index := range arguments {
		placeholders[index] = fmt.Sprintf("$%d", len(where.arguments)-len(arguments)+index+1)
	}
	where.fragments = append(where.fragments, fmt.Sprintf(fragment, placeholders...))
}

func (where *conditions) sql() string {
	if len(where.fragments) == 0 {
		return ""
	}
	return " where " + strings.Join(where.fragments, " and ")
}

// page appends limit/offset placeholders; a zero limit returns every row.
func (where *conditions) page(page restaurant.Page) string {
	if page.Limit <= 0 {
		return ""
	}
	where.arguments = append(where.arguments, page.Limit, page.Offset)
	return fmt.Sprintf(" limit $%d offset $%d", len(where.arguments)-1, len(where.arguments))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanStudent(row rowScanner) (restaurant.Student, error) {
	var (
		rawID, rawNumber   string
		points, balance    int64
		student            restaurant.Student
		deletedAt          *time.Time
		createdAt, updated time.Time
	)
	if err := row.Scan(&rawID, &rawNumber, &student.Name, &student.Email, &student.University, &student.PasswordHash,
		&points, &balance, &student.Active, &createdAt, &updated, &deletedAt); err != nil {
		return restaurant.Student{}, err
	}
	studentID, err := restaurant.NewStudentID(rawID)
	if err != nil {
		return restaurant.Student{}, invalidRow(errorSubjectStudent, err)
	}
	number, err := restaurant.NewStudentNumber(rawNumber)
	if err != nil {
		return restaurant.Student{}, invalidRow(errorSubjectStudent, err)
	}
	student.Points, err = restaurant.NewPoints(points)
	if err != nil {
		return restaurant.Student{}, invalidRow(errorSubjectStudent, err)
	}
	student.WalletBalance, err = restaurant.NewAmountCents(balance)
	if err != nil {
		return restaurant.Student{}, invalidRow(errorSubjectStudent, err)
	}
	if deletedAt != nil {
		value := deletedAt.UTC()
		student.DeletedAt = &value
	}
	student.ID = studentID
	student.Number = number
	student.CreatedAt = createdAt.UTC()
	student.UpdatedAt = updated.UTC()
	return student, nil
}

func scanOffering(row rowScanner) (restaurant.MenuOffering, error) {
	var (
		rawID, rawWeekday, rawSlot, rawTags, rawStatus string
		price                                          int64
		offering                                       restaurant.MenuOffering
	)
	if err := row.Scan(&rawID, &rawWeekday, &rawSlot, &offering.Title, &rawTags, &rawStatus, &price, &offering.CreatedAt, &offering.UpdatedAt); err != nil {
		return restaurant.MenuOffering{}, err
	}
	var err error
	if offering.ID, err = restaurant.NewMenuOfferingID(rawID); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	if offering.Weekday, err = restaurant.ParseWeekday(rawWeekday); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	if offering.MealSlot, err = restaurant.ParseMealSlot(rawSlot); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	if offering.Status, err = restaurant.ParseMenuStatus(rawStatus); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	if offering.PriceCents, err = restaurant.NewPositiveAmountCents(price); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	offering.Tags = []string{}
	if err := json.Unmarshal([]byte(rawTags), &offering.Tags); err != nil {
		return restaurant.MenuOffering{}, invalidRow(errorSubjectOffering, err)
	}
	offering.CreatedAt = offering.CreatedAt.UTC()
	offering.UpdatedAt = offering.UpdatedAt.UTC()
	return offering, nil
}

func scanReservation(row rowScanner) (restaurant.Reservation, error) {
	var (
		rawID, rawStudentID, rawOfferingID, rawDate, rawStatus, rawMethod string
		price, points                                                     int64
		reservation                                                       restaurant.Reservation
	)
	if err := row.Scan(&rawID, &rawStudentID, &rawOfferingID, &rawDate, &reservation.RedemptionCode, &rawStatus, &rawMethod,
		&price, &points, &reservation.CreatedAt, &reservation.UpdatedAt); err != nil {
		return restaurant.Reservation{}, err
	}
	var err error
	if reservation.ID, err = restaurant.NewReservationID(rawID); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.StudentID, err = restaurant.NewStudentID(rawStudentID); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.MenuOfferingID, err = restaurant.NewMenuOfferingID(rawOfferingID); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.Date, err = restaurant.ParseReservationDate(rawDate); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.Status, err = restaurant.ParseReservationStatus(rawStatus); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.PaymentMethod, err = restaurant.ParsePaymentMethod(rawMethod); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.PriceCents, err = restaurant.NewAmountCents(price); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	if reservation.PointsCharged, err = restaurant.NewPoints(points); err != nil {
		return restaurant.Reservation{}, invalidRow(errorSubjectReservation, err)
	}
	reservation.CreatedAt = reservation.CreatedAt.UTC()
	reservation.UpdatedAt = reservation.UpdatedAt.UTC()
	return reservation, nil
}

func scanWalletTransaction(row rowScanner) (restaurant.WalletTransaction, error) {
	var (
		rawStudentID, rawKind, rawReservationID string
		amount                                  int64
		transaction                             restaurant.WalletTransaction
	)
	if err := row.Scan(&transaction.ID, &rawStudentID, &rawKind, &amount, &transaction.Description, &rawReservationID, &transaction.CreatedAt); err != nil {
		return restaurant.WalletTransaction{}, err
	}
	var err error
	if transaction.StudentID, err = restaurant.NewStudentID(rawStudentID); err != nil {
		return restaurant.WalletTransaction{}, invalidRow(errorSubjectWalletTransaction, err)
	}
	if transaction.Kind, err = restaurant.ParseTransactionKind(rawKind); err != nil {
		return restaurant.WalletTransaction{}, invalidRow(errorSubjectWalletTransaction, err)
	}
	if rawReservationID != "" {
		if transaction.ReservationID, err = restaurant.NewReservationID(rawReservationID); err != nil {
			return restaurant.WalletTransaction{}, invalidRow(errorSubjectWalletTransaction, err)
		}
	}
	transaction.AmountCents = restaurant.SignedAmountCents(amount)
	transaction.CreatedAt = transaction.CreatedAt.UTC()
	return transaction, nil
}

func scanPointsTransaction(row rowScanner) (restaurant.PointsTransaction, error) {
	var (
		rawStudentID, rawKind, rawReason, rawReservationID, rawFeedbackID string
		transaction                                                       restaurant.PointsTransaction
	)
	if err := row.Scan(&transaction.ID, &rawStudentID, &rawKind, &transaction.Points, &rawReason, &rawReservationID, &rawFeedbackID, &transaction.CreatedAt); err != nil {
		return restaurant.PointsTransaction{}, err
	}
	var err error
	if transaction.StudentID, err = restaurant.NewStudentID(rawStudentID); err != nil {
		return restaurant.PointsTransaction{}, invalidRow(errorSubjectPointsTransaction, err)
	}
	if transaction.Kind, err = restaurant.ParseTransactionKind(rawKind); err != nil {
		return restaurant.PointsTransaction{}, invalidRow(errorSubjectPointsTransaction, err)
	}
	if transaction.Reason, err = restaurant.ParsePointsReason(rawReason); err != nil {
		return restaurant.PointsTransaction{}, invalidRow(errorSubjectPointsTransaction, err)
	}
	if rawReservationID != "" {
		if transaction.ReservationID, err = restaurant.NewReservationID(rawReservationID); err != nil {
			return restaurant.PointsTransaction{}, invalidRow(errorSubjectPointsTransaction, err)
		}
	}
	if rawFeedbackID != "" {
		if transaction.FeedbackID, err = restaurant.NewFeedbackID(rawFeedbackID); err != nil {
			return restaurant.PointsTransaction{}, invalidRow(errorSubjectPointsTransaction, err)
		}
	}
	transaction.CreatedAt = transaction.CreatedAt.UTC()
	return transaction, nil
}

func scanFeedback(row rowScanner) (restaurant.Feedback, error) {
	var (
		rawID, rawStudentID, rawOfferingID, rawCategory, rawSentiment string
		rating                                                        int
		feedback                                                      restaurant.Feedback
	)
	if err := row.Scan(&rawID, &rawStudentID, &rawOfferingID, &rating, &rawCategory, &feedback.Comment, &rawSentiment, &feedback.CreatedAt); err != nil {
		return restaurant.Feedback{}, err
	}
	var err error
	if feedback.ID, err = restaurant.NewFeedbackID(rawID); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	if feedback.StudentID, err = restaurant.NewStudentID(rawStudentID); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	if feedback.MenuOfferingID, err = restaurant.NewMenuOfferingID(rawOfferingID); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	if feedback.Rating, err = restaurant.NewRating(rating); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	if feedback.Category, err = restaurant.ParseFeedbackCategory(rawCategory); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	if feedback.Sentiment, err = restaurant.ParseSentiment(rawSentiment); err != nil {
		return restaurant.Feedback{}, invalidRow(errorSubjectFeedback, err)
	}
	feedback.CreatedAt = feedback.CreatedAt.UTC()
	return feedback, nil
}

func invalidRow(subject string, err error) error {
	return wrapStoreError(subject, errorCodeInvalid, err)
}

func tagsJSON(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func isUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolationCode {
		return false
	}
	for _, constraint := range constraints {
		if pgErr.ConstraintName == constraint {
			return true
		}
	}
	return false
}
