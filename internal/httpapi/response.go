package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidPayload     = "invalid_payload"
	errorCodeUnauthorized       = "unauthorized"
	errorCodeForbidden          = "forbidden"
	errorCodeInvalidCredentials = "invalid_credentials"
	errorCodeStudentInactive    = "student_inactive"
	errorCodeNotFound           = "not_found"
	errorCodeDuplicate          = "duplicate"
	errorCodeAlreadyCancelled   = "already_cancelled"
	errorCodeReservationClosed  = "reservation_closed"
	errorCodeMenuUnavailable    = "menu_unavailable"
	errorCodeInsufficientFunds  = "insufficient_balance"
	errorCodeInsufficientPoints = "insufficient_points"
	errorCodeValidation         = "validation_failed"
	errorCodeInternal           = "internal_error"
)

type envelope struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Meta    *pageMeta `json:"meta,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func respond(ctx *gin.Context, status int, message string, data any) {
	ctx.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondPage(ctx *gin.Context, message string, data any, page restaurant.Page, count int) {
	ctx.JSON(http.StatusOK, envelope{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    &pageMeta{Limit: page.Limit, Offset: page.Offset, Count: count},
	})
}

func errorResponse(code string, message string) envelope {
	return envelope{Success: false, Message: message, Error: &apiError{Code: code, Message: message}}
}

func abortWithError(ctx *gin.Context, status int, code string, message string) {
	ctx.AbortWithStatusJSON(status, errorResponse(code, message))
}

// writeServiceError maps a service error to a status code and stable error code.
// Infrastructure failures are logged and reported without detail.
func (handler *httpHandler) writeServiceError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		abortWithError(ctx, status, code, "internal error")
		return
	}
	abortWithError(ctx, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, restaurant.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorCodeInvalidCredentials
	case errors.Is(err, restaurant.ErrStudentInactive):
		return http.StatusForbidden, errorCodeStudentInactive
	case errors.Is(err, restaurant.ErrNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, restaurant.ErrDuplicateStudent), errors.Is(err, restaurant.ErrDuplicateAdmin):
		return http.StatusConflict, errorCodeDuplicate
	case errors.Is(err, restaurant.ErrAlreadyCancelled):
		return http.StatusConflict, errorCodeAlreadyCancelled
	case errors.Is(err, restaurant.ErrReservationClosed):
		return http.StatusConflict, errorCodeReservationClosed
	case errors.Is(err, restaurant.ErrMenuUnavailable):
		return http.StatusUnprocessableEntity, errorCodeMenuUnavailable
	case errors.Is(err, restaurant.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, errorCodeInsufficientFunds
	case errors.Is(err, restaurant.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, errorCodeInsufficientPoints
	case restaurant.IsDomainError(err):
		return http.StatusBadRequest, errorCodeValidation
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}

type studentPayload struct {
	ID            string     `json:"id"`
	Number        string     `json:"student_number"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	University    string     `json:"university"`
	Points        int64      `json:"points"`
	WalletCents   int64      `json:"wallet_balance_cents"`
	WalletBalance string     `json:"wallet_balance"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func newStudentPayload(student restaurant.Student) studentPayload {
	return studentPayload{
		ID:            student.ID.String(),
		Number:        student.Number.String(),
		Name:          student.Name,
		Email:         student.Email,
		University:    student.University,
		Points:        student.Points.Int64(),
		WalletCents:   student.WalletBalance.Int64(),
		WalletBalance: student.WalletBalance.String(),
		Active:        student.Active,
		CreatedAt:     student.CreatedAt,
		DeletedAt:     student.DeletedAt,
	}
}

type adminPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type offeringPayload struct {
	ID         string   `json:"id"`
	Weekday    string   `json:"weekday"`
	MealSlot   string   `json:"meal_slot"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
	PriceCents int64    `json:"price_cents"`
	Price      string   `json:"price"`
}

func newOfferingPayload(offering restaurant.MenuOffering) offeringPayload {
	tags := offering.Tags
	if tags == nil {
		tags = []string{}
	}
	return offeringPayload{
		ID:         offering.ID.String(),
		Weekday:    offering.Weekday.String(),
		MealSlot:   offering.MealSlot.String(),
		Title:      offering.Title,
		Tags:       tags,
		Status:     offering.Status.String(),
		PriceCents: offering.PriceCents.Int64(),
		Price:      offering.PriceCents.String(),
	}
}

func newOfferingPayloads(offerings []restaurant.MenuOffering) []offeringPayload {
	payloads := make([]offeringPayload, 0, len(offerings))
	for _, offering := range offerings {
		payloads = append(payloads, newOfferingPayload(offering))
	}
	return payloads
}

type reservationPayload struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	MenuOfferingID string    `json:"menu_offering_id"`
	Date           string    `json:"date"`
	RedemptionCode string    `json:"redemption_code"`
	Status         string    `json:"status"`
	PaymentMethod  string    `json:"payment_method"`
	PriceCents     int64     `json:"price_cents"`
	Price          string    `json:"price"`
	PointsCharged  int64     `json:"points_charged"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newReservationPayload(reservation restaurant.Reservation) reservationPayload {
	return reservationPayload{
		ID:             reservation.ID.String(),
		StudentID:      reservation.StudentID.String(),
		MenuOfferingID: reservation.MenuOfferingID.String(),
		Date:           reservation.Date.String(),
		RedemptionCode: reservation.RedemptionCode,
		Status:         reservation.Status.String(),
		PaymentMethod:  reservation.PaymentMethod.String(),
		PriceCents:     reservation.PriceCents.Int64(),
		Price:          reservation.PriceCents.String(),
		PointsCharged:  reservation.PointsCharged.Int64(),
		CreatedAt:      reservation.CreatedAt,
		UpdatedAt:      reservation.UpdatedAt,
	}
}

func newReservationPayloads(reservations []restaurant.Reservation) []reservationPayload {
	payloads := make([]reservationPayload, 0, len(reservations))
	for _, reservation := range reservations {
		payloads = append(payloads, newReservationPayload(reservation))
	}
	return payloads
}

type walletTransactionPayload struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	AmountCents   int64     `json:"amount_cents"`
	Amount        string    `json:"amount"`
	Description   string    `json:"description"`
	ReservationID string    `json:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type pointsTransactionPayload struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Points        int64     `json:"points"`
	Reason        string    `json:"reason"`
	ReservationID string    `json:"reservation_id,omitempty"`
	FeedbackID    string    `json:"feedback_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type walletPayload struct {
	BalanceCents int64                      `json:"balance_cents"`
	Balance      string                     `json:"balance"`
	Points       int64                      `json:"points"`
	Transactions []walletTransactionPayload `json:"transactions"`
}

func newWalletPayload(summary restaurant.WalletSummary) walletPayload {
	transactions := make([]walletTransactionPayload, 0, len(summary.Transactions))
	for _, transaction := range summary.Transactions {
		transactions = append(transactions, walletTransactionPayload{
			ID:            transaction.ID,
			Kind:          transaction.Kind.String(),
			AmountCents:   transaction.AmountCents.Int64(),
			Amount:        transaction.AmountCents.String(),
			Description:   transaction.Description,
			ReservationID: transaction.ReservationID.String(),
			CreatedAt:     transaction.CreatedAt,
		})
	}
	return walletPayload{
		BalanceCents: summary.Balance.Int64(),
		Balance:      summary.Balance.String(),
		Points:       summary.Points.Int64(),
		Transactions: transactions,
	}
}

type pointsPayload struct {
	Points       int64                      `json:"points"`
	Transactions []pointsTransactionPayload `json:"transactions"`
}

func newPointsPayload(summary restaurant.PointsSummary) pointsPayload {
	transactions := make([]pointsTransactionPayload, 0, len(summary.Transactions))
	for _, transaction := range summary.Transactions {
		transactions = append(transactions, pointsTransactionPayload{
			ID:            transaction.ID,
			Kind:          transaction.Kind.String(),
			Points:        transaction.Points,
			Reason:        transaction.Reason.String(),
			ReservationID: transaction.ReservationID.String(),
			FeedbackID:    transaction.FeedbackID.String(),
			CreatedAt:     transaction.CreatedAt,
		})
	}
	return pointsPayload{Points: summary.Points.Int64(), Transactions: transactions}
}

type feedbackPayload struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	MenuOfferingID string    `json:"menu_offering_id"`
	Rating         int       `json:"rating"`
	Category       string    `json:"category,omitempty"`
	Comment        string    `json:"comment"`
	Sentiment      string    `json:"sentiment"`
	CreatedAt      time.Time `json:"created_at"`
}

func newFeedbackPayload(feedback restaurant.Feedback) feedbackPayload {
	return feedbackPayload{
		ID:             feedback.ID.String(),
		StudentID:      feedback.StudentID.String(),
		MenuOfferingID: feedback.MenuOfferingID.String(),
		Rating:         feedback.Rating.Int(),
		Category:       feedback.Category.String(),
		Comment:        feedback.Comment,
		Sentiment:      feedback.Sentiment.String(),
		CreatedAt:      feedback.CreatedAt,
	}
}

func newFeedbackPayloads(feedback []restaurant.Feedback) []feedbackPayload {
	payloads := make([]feedbackPayload, 0, len(feedback))
	for _, item := range feedback {
		payloads = append(payloads, newFeedbackPayload(item))
	}
	return payloads
}
