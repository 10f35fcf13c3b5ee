package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-gonic/gin"
)

type offeringRequest struct {
	Weekday  *string   `json:"weekday"`
	MealSlot *string   `json:"meal_slot"`
	Title    *string   `json:"title"`
	Tags     *[]string `json:"tags"`
	Status   *string   `json:"status"`
	Price    *string   `json:"price"`
}

type studentRequest struct {
	StudentNumber string  `json:"student_number"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	University    *string `json:"university"`
	Password      *string `json:"password"`
	Active        *bool   `json:"active"`
	WalletBalance string  `json:"wallet_balance"`
	Points        int64   `json:"points"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type countPayload struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

type reservationStatisticsPayload struct {
	From            string         `json:"from"`
	To              string         `json:"to"`
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByPaymentMethod map[string]int `json:"by_payment_method"`
	RevenueCents    int64          `json:"revenue_cents"`
	Revenue         string         `json:"revenue"`
}

type feedbackStatisticsPayload struct {
	From          string                  `json:"from"`
	To            string                  `json:"to"`
	Total         int                     `json:"total"`
	AverageRating float64                 `json:"average_rating"`
	ByRating      map[string]int          `json:"by_rating"`
	ByCategory    map[string]countPayload `json:"by_category"`
	BySentiment   map[string]int          `json:"by_sentiment"`
}

func (handler *httpHandler) handleAdminSession(ctx *gin.Context) {
	session := adminSession(ctx)
	respond(ctx, http.StatusOK, "Session retrieved", adminPayload{
		ID:    session.AdminID.String(),
		Name:  session.Name,
		Email: session.Email,
		Role:  session.Role,
	})
}

func (handler *httpHandler) handleAdminListMenus(ctx *gin.Context) {
	filter, ok := handler.menuFilter(ctx)
	if !ok {
		return
	}
	offerings, err := handler.service.ListOfferings(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Menu offerings retrieved", newOfferingPayloads(offerings))
}

func (handler *httpHandler) handleAdminCreateMenu(ctx *gin.Context) {
	var request offeringRequest
	if !bindJSON(ctx, &request) {
		return
	}
	update, err := request.update()
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	input := restaurant.OfferingInput{}
	if update.Weekday != nil {
		input.Weekday = *update.Weekday
	}
	if update.MealSlot != nil {
		input.MealSlot = *update.MealSlot
	}
	if update.Title != nil {
		input.Title = *update.Title
	}
	if update.Tags != nil {
		input.Tags = *update.Tags
	}
	if update.Status != nil {
		input.Status = *update.Status
	}
	if update.PriceCents != nil {
		input.PriceCents = *update.PriceCents
	}
	offering, err := handler.service.CreateOffering(ctx.Request.Context(), input)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "Menu offering created", newOfferingPayload(offering))
}

func (request offeringRequest) update() (restaurant.OfferingUpdate, error) {
	var update restaurant.OfferingUpdate
	if request.Weekday != nil {
		weekday, err := restaurant.ParseWeekday(*request.Weekday)
		if err != nil {
			return update, err
		}
		update.Weekday = &weekday
	}
	if request.MealSlot != nil {
		slot, err := restaurant.ParseMealSlot(*request.MealSlot)
		if err != nil {
			return update, err
		}
		update.MealSlot = &slot
	}
	if request.Status != nil {
		status, err := restaurant.ParseMenuStatus(*request.Status)
		if err != nil {
			return update, err
		}
		update.Status = &status
	}
	if request.Price != nil {
		price, err := restaurant.ParsePositiveAmountCents(*request.Price)
		if err != nil {
			return update, err
		}
		update.PriceCents = &price
	}
	update.Title = request.Title
	update.Tags = request.Tags
	return update, nil
}

func (handler *httpHandler) handleAdminGetMenu(ctx *gin.Context) {
	handler.handleMenuOffering(ctx)
}

func (handler *httpHandler) handleAdminUpdateMenu(ctx *gin.Context) {
	offeringID, err := restaurant.NewMenuOfferingID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	var request offeringRequest
	if !bindJSON(ctx, &request) {
		return
	}
	update, err := request.update()
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	offering, err := handler.service.UpdateOffering(ctx.Request.Context(), offeringID, update)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Menu offering updated", newOfferingPayload(offering))
}

func (handler *httpHandler) handleAdminDeleteMenu(ctx *gin.Context) {
	offeringID, err := restaurant.NewMenuOfferingID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	if err := handler.service.DeleteOffering(ctx.Request.Context(), offeringID); err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Menu offering deleted", nil)
}

func (handler *httpHandler) handleAdminListStudents(ctx *gin.Context) {
	filter := restaurant.StudentFilter{
		Search:         ctx.Query("search"),
		University:     ctx.Query("university"),
		IncludeDeleted: ctx.Query("include_deleted") == "true",
		Page:           pageFromQuery(ctx),
	}
	if raw := ctx.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(ctx, http.StatusBadRequest, errorCodeValidation, "active must be true or false")
			return
		}
		filter.Active = &active
	}
	students, err := handler.service.ListStudents(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	payloads := make([]studentPayload, 0, len(students))
	for _, student := range students {
		payloads = append(payloads, newStudentPayload(student))
	}
	respondPage(ctx, "Students retrieved", payloads, filter.Page, len(payloads))
}

func (handler *httpHandler) handleAdminCreateStudent(ctx *gin.Context) {
	var request studentRequest
	if !bindJSON(ctx, &request) {
		return
	}
	enrollment := restaurant.StudentEnrollment{
		StudentRegistration: restaurant.StudentRegistration{
			Number:     request.StudentNumber,
			Name:       stringValue(request.Name),
			Email:      stringValue(request.Email),
			University: stringValue(request.University),
			Password:   stringValue(request.Password),
		},
	}
	if strings.TrimSpace(request.WalletBalance) != "" {
		wallet, err := restaurant.ParseAmountCents(request.WalletBalance)
		if err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
		enrollment.InitialWallet = wallet
	}
	points, err := restaurant.NewPoints(request.Points)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	enrollment.InitialPoints = points
	student, err := handler.service.CreateStudent(ctx.Request.Context(), enrollment)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "Student created", newStudentPayload(student))
}

func (handler *httpHandler) handleAdminGetStudent(ctx *gin.Context) {
	studentID, err := restaurant.NewStudentID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	student, err := handler.service.GetStudent(ctx.Request.Context(), studentID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Student retrieved", newStudentPayload(student))
}

func (handler *httpHandler) handleAdminUpdateStudent(ctx *gin.Context) {
	studentID, err := restaurant.NewStudentID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	var request studentRequest
	if !bindJSON(ctx, &request) {
		return
	}
	student, err := handler.service.UpdateStudent(ctx.Request.Context(), studentID, restaurant.StudentUpdate{
		ProfileUpdate: restaurant.ProfileUpdate{
			Name:       request.Name,
			Email:      request.Email,
			University: request.University,
			Password:   request.Password,
		},
		Active: request.Active,
	})
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Student updated", newStudentPayload(student))
}

func (handler *httpHandler) handleAdminDeleteStudent(ctx *gin.Context) {
	studentID, err := restaurant.NewStudentID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	if err := handler.service.DeleteStudent(ctx.Request.Context(), studentID); err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Student deleted", nil)
}

func (handler *httpHandler) handleAdminRestoreStudent(ctx *gin.Context) {
	studentID, err := restaurant.NewStudentID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	student, err := handler.service.RestoreStudent(ctx.Request.Context(), studentID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Student restored", newStudentPayload(student))
}

func (handler *httpHandler) handleAdminListReservations(ctx *gin.Context) {
	filter := restaurant.ReservationFilter{Page: pageFromQuery(ctx)}
	var err error
	if raw := ctx.Query("status"); raw != "" {
		if filter.Status, err = restaurant.ParseReservationStatus(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("student_id"); raw != "" {
		if filter.StudentID, err = restaurant.NewStudentID(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("menu_offering_id"); raw != "" {
		if filter.MenuOfferingID, err = restaurant.NewMenuOfferingID(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	for key, target := range map[string]*restaurant.ReservationDate{"date": &filter.Date, "from": &filter.DateFrom, "to": &filter.DateTo} {
		if raw := ctx.Query(key); raw != "" {
			if *target, err = restaurant.ParseReservationDate(raw); err != nil {
				handler.writeServiceError(ctx, err)
				return
			}
		}
	}
	reservations, err := handler.service.AdminListReservations(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Reservations retrieved", newReservationPayloads(reservations), filter.Page, len(reservations))
}

func (handler *httpHandler) handleAdminGetReservation(ctx *gin.Context) {
	reservationID, err := restaurant.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	reservation, err := handler.service.AdminGetReservation(ctx.Request.Context(), reservationID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Reservation retrieved", newReservationPayload(reservation))
}

func (handler *httpHandler) handleAdminUpdateReservationStatus(ctx *gin.Context) {
	reservationID, err := restaurant.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	var request statusRequest
	if !bindJSON(ctx, &request) {
		return
	}
	status, err := restaurant.ParseReservationStatus(request.Status)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	reservation, err := handler.service.OverrideReservationStatus(ctx.Request.Context(), reservationID, status)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Reservation status updated", newReservationPayload(reservation))
}

func (handler *httpHandler) dateRangeFromQuery(ctx *gin.Context) (restaurant.ReservationDate, restaurant.ReservationDate, bool) {
	var from, to restaurant.ReservationDate
	var err error
	if raw := ctx.Query("from"); raw != "" {
		if from, err = restaurant.ParseReservationDate(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return from, to, false
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if to, err = restaurant.ParseReservationDate(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return from, to, false
		}
	}
	return from, to, true
}

func (handler *httpHandler) handleAdminReservationStatistics(ctx *gin.Context) {
	from, to, ok := handler.dateRangeFromQuery(ctx)
	if !ok {
		return
	}
	statistics, err := handler.service.ReservationStatistics(ctx.Request.Context(), from, to)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	payload := reservationStatisticsPayload{
		From:            statistics.Range.From.String(),
		To:              statistics.Range.To.String(),
		Total:           statistics.Total,
		ByStatus:        map[string]int{},
		ByPaymentMethod: map[string]int{},
		RevenueCents:    statistics.RevenueCents.Int64(),
		Revenue:         statistics.RevenueCents.String(),
	}
	for status, count := range statistics.ByStatus {
		payload.ByStatus[status.String()] = count
	}
	for method, count := range statistics.ByPaymentMethod {
		payload.ByPaymentMethod[method.String()] = count
	}
	respond(ctx, http.StatusOK, "Reservation statistics retrieved", payload)
}

func (handler *httpHandler) handleAdminListFeedback(ctx *gin.Context) {
	filter := restaurant.FeedbackFilter{Page: pageFromQuery(ctx)}
	var err error
	if raw := ctx.Query("student_id"); raw != "" {
		if filter.StudentID, err = restaurant.NewStudentID(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("menu_offering_id"); raw != "" {
		if filter.MenuOfferingID, err = restaurant.NewMenuOfferingID(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("rating"); raw != "" {
		value, _ := strconv.Atoi(raw)
		if filter.Rating, err = restaurant.NewRating(value); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("category"); raw != "" {
		if filter.Category, err = restaurant.ParseFeedbackCategory(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	if raw := ctx.Query("sentiment"); raw != "" {
		if filter.Sentiment, err = restaurant.ParseSentiment(raw); err != nil {
			handler.writeServiceError(ctx, err)
			return
		}
	}
	from, to, ok := handler.dateRangeFromQuery(ctx)
	if !ok {
		return
	}
	if !from.IsZero() {
		filter.CreatedFrom, _ = handler.service.DayBounds(restaurant.DateRange{From: from, To: from})
	}
	if !to.IsZero() {
		_, filter.CreatedTo = handler.service.DayBounds(restaurant.DateRange{From: to, To: to})
	}
	feedback, err := handler.service.AdminListFeedback(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respondPage(ctx, "Feedback retrieved", newFeedbackPayloads(feedback), filter.Page, len(feedback))
}

func (handler *httpHandler) handleAdminGetFeedback(ctx *gin.Context) {
	feedbackID, err := restaurant.NewFeedbackID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	feedback, err := handler.service.AdminGetFeedback(ctx.Request.Context(), feedbackID)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Feedback retrieved", newFeedbackPayload(feedback))
}

func (handler *httpHandler) handleAdminDeleteFeedback(ctx *gin.Context) {
	feedbackID, err := restaurant.NewFeedbackID(ctx.Param("id"))
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	if err := handler.service.DeleteFeedback(ctx.Request.Context(), feedbackID); err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "Feedback deleted", nil)
}

func (handler *httpHandler) handleAdminFeedbackStatistics(ctx *gin.Context) {
	from, to, ok := handler.dateRangeFromQuery(ctx)
	if !ok {
		return
	}
	statistics, err := handler.service.FeedbackStatistics(ctx.Request.Context(), from, to)
	if err != nil {
		handler.writeServiceError(ctx, err)
		return
	}
	payload := feedbackStatisticsPayload{
		From:          statistics.Range.From.String(),
		To:            statistics.Range.To.String(),
		Total:         statistics.Total,
		AverageRating: statistics.AverageRating,
		ByRating:      map[string]int{},
		ByCategory:    map[string]countPayload{},
		BySentiment:   map[string]int{},
	}
	for rating, count := range statistics.ByRating {
		payload.ByRating[strconv.Itoa(rating.Int())] = count
	}
	for category, summary := range statistics.ByCategory {
		payload.ByCategory[category.String()] = countPayload{Count: summary.Count, AverageRating: summary.AverageRating}
	}
	for sentiment, count := range statistics.BySentiment {
		payload.BySentiment[sentiment.String()] = count
	}
	respond(ctx, http.StatusOK, "Feedback statistics retrieved", payload)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
