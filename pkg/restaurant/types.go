package restaurant

import (
	"fmt"
	"strings"
	"time"
)

// StudentID identifies a student record.
type StudentID struct {
	value string
}

// StudentNumber is the institution-issued login identifier (for example STU001).
type StudentNumber struct {
	value string
}

// AdminID identifies an administrator record.
type AdminID struct {
	value string
}

// MenuOfferingID identifies a menu offering.
type MenuOfferingID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// FeedbackID identifies a feedback submission.
type FeedbackID struct {
	value string
}

// NewStudentID validates and normalizes a student id.
func NewStudentID(raw string) (StudentID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StudentID{}, fmt.Errorf("%w: empty value", ErrInvalidStudentID)
	}
	return StudentID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id StudentID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id StudentID) IsZero() bool {
	return id.value == ""
}

// NewStudentNumber validates and upper-cases a student number.
func NewStudentNumber(raw string) (StudentNumber, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return StudentNumber{}, fmt.Errorf("%w: empty value", ErrInvalidStudentNumber)
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return StudentNumber{}, fmt.Errorf("%w: must not contain whitespace", ErrInvalidStudentNumber)
	}
	return StudentNumber{value: trimmed}, nil
}

// String returns the normalized student number.
func (number StudentNumber) String() string {
	return number.value
}

// NewAdminID validates and normalizes an admin id.
func NewAdminID(raw string) (AdminID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AdminID{}, fmt.Errorf("%w: empty value", ErrInvalidAdminID)
	}
	return AdminID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AdminID) String() string {
	return id.value
}

// NewMenuOfferingID validates and normalizes a menu offering id.
func NewMenuOfferingID(raw string) (MenuOfferingID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return MenuOfferingID{}, fmt.Errorf("%w: empty value", ErrInvalidMenuOfferingID)
	}
	return MenuOfferingID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id MenuOfferingID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id MenuOfferingID) IsZero() bool {
	return id.value == ""
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReservationID{}, fmt.Errorf("%w: empty value", ErrInvalidReservationID)
	}
	return ReservationID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id ReservationID) IsZero() bool {
	return id.value == ""
}

// NewFeedbackID validates and normalizes a feedback id.
func NewFeedbackID(raw string) (FeedbackID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FeedbackID{}, fmt.Errorf("%w: empty value", ErrInvalidFeedbackID)
	}
	return FeedbackID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id FeedbackID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id FeedbackID) IsZero() bool {
	return id.value == ""
}

// ReservationDate is a calendar day without time of day.
type ReservationDate struct {
	value time.Time
}

// ParseReservationDate parses an ISO calendar date (YYYY-MM-DD).
func ParseReservationDate(raw string) (ReservationDate, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return ReservationDate{}, fmt.Errorf("%w: expected YYYY-MM-DD", ErrInvalidReservationDate)
	}
	return ReservationDate{value: parsed}, nil
}

// DateOf returns the calendar day of moment in location.
func DateOf(moment time.Time, location *time.Location) ReservationDate {
	local := moment.In(location)
	return ReservationDate{value: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)}
}

// String renders the date as YYYY-MM-DD.
func (date ReservationDate) String() string {
	if date.IsZero() {
		return ""
	}
	return date.value.Format(dateLayout)
}

// IsZero reports whether the date is unset.
func (date ReservationDate) IsZero() bool {
	return date.value.IsZero()
}

// Before reports whether date is an earlier day than other.
func (date ReservationDate) Before(other ReservationDate) bool {
	return date.value.Before(other.value)
}

// Weekday returns the weekday label of the date.
func (date ReservationDate) Weekday() Weekday {
	return weekdayOrder[(int(date.value.Weekday())+6)%7]
}

// FirstOfMonth returns the first day of the date's month.
func (date ReservationDate) FirstOfMonth() ReservationDate {
	return ReservationDate{value: time.Date(date.value.Year(), date.value.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// LastOfMonth returns the last day of the date's month.
func (date ReservationDate) LastOfMonth() ReservationDate {
	return ReservationDate{value: time.Date(date.value.Year(), date.value.Month()+1, 0, 0, 0, 0, 0, time.UTC)}
}

// Weekday is the display label of an offering's day.
type Weekday string

const (
	WeekdayMonday    Weekday = "Mon"
	WeekdayTuesday   Weekday = "Tue"
	WeekdayWednesday Weekday = "Wed"
	WeekdayThursday  Weekday = "Thu"
	WeekdayFriday    Weekday = "Fri"
	WeekdaySaturday  Weekday = "Sat"
	WeekdaySunday    Weekday = "Sun"
)

var weekdayOrder = []Weekday{
	WeekdayMonday,
	WeekdayTuesday,
	WeekdayWednesday,
	WeekdayThursday,
	WeekdayFriday,
	WeekdaySaturday,
	WeekdaySunday,
}

var weekdayNames = map[string]Weekday{
	"mon": WeekdayMonday, "monday": WeekdayMonday,
	"tue": WeekdayTuesday, "tuesday": WeekdayTuesday,
	"wed": WeekdayWednesday, "wednesday": WeekdayWednesday,
	"thu": WeekdayThursday, "thursday": WeekdayThursday,
	"fri": WeekdayFriday, "friday": WeekdayFriday,
	"sat": WeekdaySaturday, "saturday": WeekdaySaturday,
	"sun": WeekdaySunday, "sunday": WeekdaySunday,
}

// ParseWeekday accepts three-letter or full English day names in any case.
func ParseWeekday(raw string) (Weekday, error) {
	weekday, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeekday, raw)
	}
	return weekday, nil
}

// String returns the label.
func (weekday Weekday) String() string {
	return string(weekday)
}

// Index orders weekdays from Monday (0) to Sunday (6).
func (weekday Weekday) Index() int {
	for index, candidate := range weekdayOrder {
		if candidate == weekday {
			return index
		}
	}
	return len(weekdayOrder)
}

// MealSlot is the service period of an offering.
type MealSlot string

const (
	MealSlotBreakfast MealSlot = "breakfast"
	MealSlotLunch     MealSlot = "lunch"
	MealSlotDinner    MealSlot = "dinner"
)

// ParseMealSlot validates a meal slot label.
func ParseMealSlot(raw string) (MealSlot, error) {
	switch MealSlot(strings.ToLower(strings.TrimSpace(raw))) {
	case MealSlotBreakfast:
		return MealSlotBreakfast, nil
	case MealSlotLunch:
		return MealSlotLunch, nil
	case MealSlotDinner:
		return MealSlotDinner, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMealSlot, raw)
	}
}

// String returns the label.
func (slot MealSlot) String() string {
	return string(slot)
}

// Index orders slots through the day.
func (slot MealSlot) Index() int {
	switch slot {
	case MealSlotBreakfast:
		return 0
	case MealSlotLunch:
		return 1
	case MealSlotDinner:
		return 2
	default:
		return 3
	}
}

// MenuStatus is the availability of an offering.
type MenuStatus string

const (
	MenuStatusAvailable   MenuStatus = "available"
	MenuStatusUnavailable MenuStatus = "unavailable"
)

// ParseMenuStatus validates a menu status label.
func ParseMenuStatus(raw string) (MenuStatus, error) {
	switch MenuStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case MenuStatusAvailable:
		return MenuStatusAvailable, nil
	case MenuStatusUnavailable:
		return MenuStatusUnavailable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMenuStatus, raw)
	}
}

// String returns the label.
func (status MenuStatus) String() string {
	return string(status)
}

// ReservationStatus defines reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// ParseReservationStatus validates a reservation status label.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ReservationStatusPending:
		return ReservationStatusPending, nil
	case ReservationStatusConfirmed:
		return ReservationStatusConfirmed, nil
	case ReservationStatusCancelled:
		return ReservationStatusCancelled, nil
	case ReservationStatusNoShow:
		return ReservationStatusNoShow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the label.
func (status ReservationStatus) String() string {
	return string(status)
}

// PaymentMethod is how a reservation is settled.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodPoints PaymentMethod = "points"
	PaymentMethodCash   PaymentMethod = "cash"
)

// ParsePaymentMethod validates a payment method label.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentMethodWallet:
		return PaymentMethodWallet, nil
	case PaymentMethodPoints:
		return PaymentMethodPoints, nil
	case PaymentMethodCash:
		return PaymentMethodCash, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
}

// String returns the label.
func (method PaymentMethod) String() string {
	return string(method)
}

// TransactionKind tells credits from debits in the transaction logs.
type TransactionKind string

const (
	TransactionKindCredit TransactionKind = "credit"
	TransactionKindDebit  TransactionKind = "debit"
)

// ParseTransactionKind validates a transaction kind label.
func ParseTransactionKind(raw string) (TransactionKind, error) {
	switch TransactionKind(strings.ToLower(strings.TrimSpace(raw))) {
	case TransactionKindCredit:
		return TransactionKindCredit, nil
	case TransactionKindDebit:
		return TransactionKindDebit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionKind, raw)
	}
}

// String returns the label.
func (kind TransactionKind) String() string {
	return string(kind)
}

// PointsReason records why a points balance moved.
type PointsReason string

const (
	PointsReasonReservation PointsReason = "reservation"
	PointsReasonRefund      PointsReason = "refund"
	PointsReasonFeedback    PointsReason = "feedback"
	PointsReasonAdjustment  PointsReason = "adjustment"
)

// ParsePointsReason validates a points reason label.
func ParsePointsReason(raw string) (PointsReason, error) {
	switch PointsReason(strings.ToLower(strings.TrimSpace(raw))) {
	case PointsReasonReservation:
		return PointsReasonReservation, nil
	case PointsReasonRefund:
		return PointsReasonRefund, nil
	case PointsReasonFeedback:
		return PointsReasonFeedback, nil
	case PointsReasonAdjustment:
		return PointsReasonAdjustment, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPointsReason, raw)
	}
}

// String returns the label.
func (reason PointsReason) String() string {
	return string(reason)
}

// Student is a registered diner with a wallet and a points balance.
type Student struct {
	ID            StudentID
	Number        StudentNumber
	Name          string
	Email         string
	University    string
	PasswordHash  string
	Points        Points
	WalletBalance AmountCents
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// CanReserve reports whether the student may place or cancel reservations.
func (student Student) CanReserve() bool {
	return student.Active && student.DeletedAt == nil
}

// Admin is a back-office operator.
type Admin struct {
	ID           AdminID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// MenuOffering is one meal on the weekly menu.
type MenuOffering struct {
	ID         MenuOfferingID
	Weekday    Weekday
	MealSlot   MealSlot
	Title      string
	Tags       []string
	Status     MenuStatus
	PriceCents PositiveAmountCents
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Available reports whether the offering can be reserved.
func (offering MenuOffering) Available() bool {
	return offering.Status == MenuStatusAvailable
}

// Reservation is a booked meal and the payment it carried.
type Reservation struct {
	ID             ReservationID
	StudentID      StudentID
	MenuOfferingID MenuOfferingID
	Date           ReservationDate
	RedemptionCode string
	Status         ReservationStatus
	PaymentMethod  PaymentMethod
	PriceCents     AmountCents
	PointsCharged  Points
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WalletTransaction is an immutable line in a student's wallet log.
type WalletTransaction struct {
	ID            string
	StudentID     StudentID
	Kind          TransactionKind
	AmountCents   SignedAmountCents
	Description   string
	ReservationID ReservationID
	CreatedAt     time.Time
}

// PointsTransaction is an immutable line in a student's points log.
type PointsTransaction struct {
	ID            string
	StudentID     StudentID
	Kind          TransactionKind
	Points        int64
	Reason        PointsReason
	ReservationID ReservationID
	FeedbackID    FeedbackID
	CreatedAt     time.Time
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage applies defaults and bounds to caller-supplied paging values.
func NewPage(limit int, offset int) Page {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// MenuFilter narrows an offering listing; zero fields match everything.
type MenuFilter struct {
	Weekday  Weekday
	MealSlot MealSlot
	Status   MenuStatus
}

// StudentFilter narrows a student listing.
type StudentFilter struct {
	Search         string
	University     string
	Active         *bool
	IncludeDeleted bool
	Page           Page
}

// ReservationFilter narrows a reservation listing. DateFrom and DateTo are inclusive.
// A zero Page.Limit returns every match.
type ReservationFilter struct {
	StudentID      StudentID
	MenuOfferingID MenuOfferingID
	Status         ReservationStatus
	Date           ReservationDate
	DateFrom       ReservationDate
	DateTo         ReservationDate
	Page           Page
}

// FeedbackFilter narrows a feedback listing. CreatedFrom is inclusive and CreatedTo
// exclusive. A zero Page.Limit returns every match.
type FeedbackFilter struct {
	StudentID      StudentID
	MenuOfferingID MenuOfferingID
	Rating         Rating
	Category       FeedbackCategory
	Sentiment      Sentiment
	CreatedFrom    time.Time
	CreatedTo      time.Time
	Page           Page
}
