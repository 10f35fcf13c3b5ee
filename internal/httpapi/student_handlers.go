package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	University    string `json:"university"`
	Password      string `json:"password"`
}

type studentLoginRequest struct {
	StudentNumber string `json:"student_number"`
	Password      string `json:"password"`
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Student any    `json:"student,omitempty"`
	Admin   any    `json:"admin,omitempty"`
}

type createReservationRequest struct {
	MenuOfferingID string `json:"menu_offering_id"`
	Date           string `json:"date"`
	PaymentMethod  string `json:"payment_method"`
}

type rechargeRequest struct {
	Amount           string `json:"amount"`
	PaymentReference string `json:"payment_reference"`
}

type rechargeResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

type feedbackRequest struct {
	MenuOfferingID string `json:"menu_offering_id"`
	Rating         int    `json:"rating"`
	Category       string `json:"category"`
	Comment        string `json:"comment"`
}

type profileRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	University *string `json:"university"`
	Password   *string `json:"password"`
}

func (request profileRequest) update() restaurant.ProfileUpdate {
	return restaurant.ProfileUpdate{
		Name:       request.Name,
		Email:      request.Email,
		University: request.University,
		Password:   request.Password,
	}
}

func bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil {
		abortWithError(ctx, http.StatusBadRequest, errorCodeInvalidPayload, "expected JSON body")
		return false
	}
	return true
}

func pageFromQuery(ctx *gin.Context) restaurant.Page {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	return restaurant.NewPage(limit, offset)
}

func (handler *httpHandler) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if !bindJSON(ctx, &request) {
		return
	}
	student, err := handler.service.RegisterStudent(ctx.Request.Context(), restaurant.StudentRegistration{
		Number:     request.StudentNumber,
		Name:       request.Name,
		Email:      request.Email,
		University: request.University,
		Password:   request.Password,
	})
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	token, err := handler.issueSession(ctx, restaurant.SessionScopeStudent, student.ID.String(), student.Email, student.Name)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "Registration successful", loginResponse{Token: token, Student: newStudentPayload(student)})
}

func (handler *httpHandler) handleStudentLogin(ctx *gin.Context) {
	var request studentLoginRequest
	if !bindJSON(ctx, &request) {
		return
	}
	number, err := restaurant.NewStudentNumber(request.StudentNumber)
	if err != nil {
		handler.writeServiceError(ctx, restaurant.ErrInvalidCredentials)
		return
	}
	student, err := handler.service.AuthenticateStudent(ctx.Request.Context(), number, request.Password)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	token, err := handler.issueSession(ctx, restaurant.SessionScopeStudent, student.ID.String(), student.Email, student.Name)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Login successful", loginResponse{Token: token, Student: newStudentPayload(student)})
}

func (handler *httpHandler) handleAdminLogin(ctx *gin.Context) {
	var request adminLoginRequest
	if !bindJSON(ctx, &request) {
		return
	}
	admin, err := handler.service.AuthenticateAdmin(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	token, err := handler.issueSession(ctx, restaurant.SessionScopeAdmin, admin.ID.String(), admin.Email, admin.Name)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Login successful", loginResponse{
		Token: token,
		Admin: adminPayload{ID: admin.ID.String(), Name: admin.Name, Email: admin.Email, Role: admin.Role},
	})
}

func (handler *httpHandler) handleLogout(ctx *gin.Context) {
	handler.clearSession(ctx)
	respond(ctx, http.StatusOK, "Logged out", nil)
}

func (handler *httpHandler) handleWeeklyMenu(ctx *gin.Context) {
	filter, ok := handler.menuFilter(ctx)
	if !ok {
		return
	}
	offerings, err := handler.service.WeeklyMenu(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Weekly menu retrieved", newOfferingPayloads(offerings))
}

func (handler *httpHandler) menuFilter(ctx *gin.Context) (restaurant.MenuFilter, bool) {
	var (
		filter restaurant.MenuFilter
		err    error
	)
	if raw := ctx.Query("day"); raw != "" {
		if filter.Weekday, err = restaurant.ParseWeekday(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return filter, false
		}
	}
	if raw := ctx.Query("meal_slot"); raw != "" {
		if filter.MealSlot, err = restaurant.ParseMealSlot(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return filter, false
		}
	}
	if raw := ctx.Query("status"); raw != "" {
		if filter.Status, err = restaurant.ParseMenuStatus(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return filter, false
		}
	}
	return filter, true
}

func (handler *httpHandler) handleMenuOffering(ctx *gin.Context) {
	offeringID, err := restaurant.NewMenuOfferingID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	offering, err := handler.service.GetOffering(ctx.Request.Context(), offeringID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Menu offering retrieved", newOfferingPayload(offering))
}

func (handler *httpHandler) handleListReservations(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	reservations, err := handler.service.ListReservations(ctx.Request.Context(), studentSession(ctx).StudentID, page)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Reservations retrieved", newReservationPayloads(reservations), page, len(reservations))
}

func (handler *httpHandler) handleCreateReservation(ctx *gin.Context) {
	var request createReservationRequest
	if !bindJSON(ctx, &request) {
		return
	}
	offeringID, err := restaurant.NewMenuOfferingID(request.MenuOfferingID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	date, err := restaurant.ParseReservationDate(request.Date)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	method, err := restaurant.ParsePaymentMethod(request.PaymentMethod)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	reservation, err := handler.service.CreateReservation(ctx.Request.Context(), studentSession(ctx).StudentID, offeringID, date, method)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "Reservation created", newReservationPayload(reservation))
}

func (handler *httpHandler) handleGetReservation(ctx *gin.Context) {
	reservationID, err := restaurant.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	reservation, err := handler.service.GetReservation(ctx.Request.Context(), studentSession(ctx).StudentID, reservationID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Reservation retrieved", newReservationPayload(reservation))
}

func (handler *httpHandler) handleCancelReservation(ctx *gin.Context) {
	reservationID, err := restaurant.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	reservation, err := handler.service.CancelReservation(ctx.Request.Context(), studentSession(ctx).StudentID, reservationID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Reservation cancelled", newReservationPayload(reservation))
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	summary, err := handler.service.Wallet(ctx.Request.Context(), studentSession(ctx).StudentID, page)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Wallet retrieved", newWalletPayload(summary), page, len(summary.Transactions))
}

func (handler *httpHandler) handleRecharge(ctx *gin.Context) {
	var request rechargeRequest
	if !bindJSON(ctx, &request) {
		return
	}
	amount, err := restaurant.ParsePositiveAmountCents(request.Amount)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	balance, err := handler.service.RechargeWallet(ctx.Request.Context(), studentSession(ctx).StudentID, amount, request.PaymentReference)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Wallet recharged", rechargeResponse{BalanceCents: balance.Int64(), Balance: balance.String()})
}

func (handler *httpHandler) handlePoints(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	summary, err := handler.service.PointsHistory(ctx.Request.Context(), studentSession(ctx).StudentID, page)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Points retrieved", newPointsPayload(summary), page, len(summary.Transactions))
}

func (handler *httpHandler) handleListFeedback(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	feedback, err := handler.service.ListFeedback(ctx.Request.Context(), studentSession(ctx).StudentID, page)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Feedback retrieved", newFeedbackPayloads(feedback), page, len(feedback))
}

func (handler *httpHandler) handleSubmitFeedback(ctx *gin.Context) {
	var request feedbackRequest
	if !bindJSON(ctx, &request) {
		return
	}
	offeringID, err := restaurant.NewMenuOfferingID(request.MenuOfferingID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	rating, err := restaurant.NewRating(request.Rating)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	category, err := restaurant.ParseFeedbackCategory(request.Category)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	feedback, err := handler.service.SubmitFeedback(ctx.Request.Context(), studentSession(ctx).StudentID, offeringID, rating, category, strings.TrimSpace(request.Comment))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "Feedback submitted", newFeedbackPayload(feedback))
}

func (handler *httpHandler) handleGetFeedback(ctx *gin.Context) {
	feedbackID, err := restaurant.NewFeedbackID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	feedback, err := handler.service.GetFeedback(ctx.Request.Context(), studentSession(ctx).StudentID, feedbackID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Feedback retrieved", newFeedbackPayload(feedback))
}

func (handler *httpHandler) handleProfile(ctx *gin.Context) {
	student, err := handler.service.GetStudent(ctx.Request.Context(), studentSession(ctx).StudentID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Profile retrieved", newStudentPayload(student))
}

func (handler *httpHandler) handleUpdateProfile(ctx *gin.Context) {
	var request profileRequest
	if !bindJSON(ctx, &request) {
		return
	}
	student, err := handler.service.UpdateProfile(ctx.Request.Context(), studentSession(ctx).StudentID, request.update())
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Profile updated", newStudentPayload(student))
}
