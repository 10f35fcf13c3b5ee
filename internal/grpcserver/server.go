// Package grpcserver exposes the reservation workflow over gRPC. Messages are
// google.protobuf.Struct values keyed by snake_case field names.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "restaurant.v1.ReservationService"

	methodCreateReservation = "CreateReservation"
	methodCancelReservation = "CancelReservation"
	methodSubmitFeedback    = "SubmitFeedback"
	methodGetBalance        = "GetBalance"

	fieldStudentID      = "student_id"
	fieldMenuOfferingID = "menu_offering_id"
	fieldReservationID  = "reservation_id"
	fieldDate           = "date"
	fieldPaymentMethod  = "payment_method"
	fieldRating         = "rating"
	fieldCategory       = "category"
	fieldComment        = "comment"

	errorInvalidArgument     = "invalid_argument"
	errorInvalidStudentID    = "invalid_student_id"
	errorInvalidOfferingID   = "invalid_menu_offering_id"
	errorInvalidReservation  = "invalid_reservation_id"
	errorInvalidDate         = "invalid_date"
	errorInvalidPayment      = "invalid_payment_method"
	errorInvalidRating       = "invalid_rating"
	errorInvalidCategory     = "invalid_category"
	errorInvalidComment      = "invalid_comment"
	errorInsufficientBalance = "insufficient_balance"
	errorInsufficientPoints  = "insufficient_points"
	errorMenuUnavailable     = "menu_unavailable"
	errorAlreadyCancelled    = "already_cancelled"
	errorReservationClosed   = "reservation_closed"
	errorStudentInactive     = "student_inactive"
	errorUnknownStudent      = "unknown_student"
	errorUnknownOffering     = "unknown_menu_offering"
	errorUnknownReservation  = "unknown_reservation"
	errorNotFound            = "not_found"
	errorInternal            = "internal"
)

// ReservationService is the server contract registered under ServiceName.
type ReservationService interface {
	CreateReservation(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

// ReservationServiceServer adapts restaurant.Service to ReservationService.
type ReservationServiceServer struct {
	restaurantService *restaurant.Service
}

// NewReservationServiceServer constructs a gRPC server for the restaurant service.
func NewReservationServiceServer(restaurantService *restaurant.Service) *ReservationServiceServer {
	return &ReservationServiceServer{restaurantService: restaurantService}
}

// Register attaches server to registrar.
func Register(registrar grpc.ServiceRegistrar, server ReservationService) {
	registrar.RegisterService(&serviceDesc, server)
}

func (server *ReservationServiceServer) CreateReservation(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	studentID, err := restaurant.NewStudentID(stringField(request, fieldStudentID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	offeringID, err := restaurant.NewMenuOfferingID(stringField(request, fieldMenuOfferingID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	date, err := restaurant.ParseReservationDate(stringField(request, fieldDate))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	method, err := restaurant.ParsePaymentMethod(stringField(request, fieldPaymentMethod))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reservation, err := server.restaurantService.CreateReservation(ctx, studentID, offeringID, date, method)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return reservationStruct(reservation)
}

func (server *ReservationServiceServer) CancelReservation(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	studentID, err := restaurant.NewStudentID(stringField(request, fieldStudentID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reservationID, err := restaurant.NewReservationID(stringField(request, fieldReservationID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reservation, err := server.restaurantService.CancelReservation(ctx, studentID, reservationID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return reservationStruct(reservation)
}

func (server *ReservationServiceServer) SubmitFeedback(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	studentID, err := restaurant.NewStudentID(stringField(request, fieldStudentID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	offeringID, err := restaurant.NewMenuOfferingID(stringField(request, fieldMenuOfferingID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	rating, err := ratingField(request)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	category, err := restaurant.ParseFeedbackCategory(stringField(request, fieldCategory))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	feedback, err := server.restaurantService.SubmitFeedback(ctx, studentID, offeringID, rating, category, strings.TrimSpace(stringField(request, fieldComment)))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return newStruct(map[string]any{
		"id":               feedback.ID.String(),
		"student_id":       feedback.StudentID.String(),
		"menu_offering_id": feedback.MenuOfferingID.String(),
		"rating":           feedback.Rating.Int(),
		"category":         feedback.Category.String(),
		"sentiment":        feedback.Sentiment.String(),
		"points_awarded":   restaurant.FeedbackRewardPoints.Int64(),
	})
}

func (server *ReservationServiceServer) GetBalance(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	studentID, err := restaurant.NewStudentID(stringField(request, fieldStudentID))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	student, err := server.restaurantService.GetStudent(ctx, studentID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return newStruct(map[string]any{
		"student_id":    student.ID.String(),
		"balance_cents": student.WalletBalance.Int64(),
		"balance":       student.WalletBalance.String(),
		"points":        student.Points.Int64(),
	})
}

func reservationStruct(reservation restaurant.Reservation) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"id":               reservation.ID.String(),
		"student_id":       reservation.StudentID.String(),
		"menu_offering_id": reservation.MenuOfferingID.String(),
		"date":             reservation.Date.String(),
		"redemption_code":  reservation.RedemptionCode,
		"status":           reservation.Status.String(),
		"payment_method":   reservation.PaymentMethod.String(),
		"price_cents":      reservation.PriceCents.Int64(),
		"points_charged":   reservation.PointsCharged.Int64(),
	})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("%s: %v", errorInternal, err))
	}
	return message, nil
}

// ratingField accepts only whole numbers; a fractional rating is rejected rather than truncated.
func ratingField(request *structpb.Struct) (restaurant.Rating, error) {
	value := request.GetFields()[fieldRating].GetNumberValue()
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v is not a whole number", restaurant.ErrInvalidRating, value)
	}
	return restaurant.NewRating(int(value))
}

func stringField(request *structpb.Struct, name string) string {
	return request.GetFields()[name].GetStringValue()
}

func mapToGRPCError(source error) error {
	if errors.Is(source, restaurant.ErrInvalidStudentID) {
		return status.Error(codes.InvalidArgument, errorInvalidStudentID)
	}
	if errors.Is(source, restaurant.ErrInvalidMenuOfferingID) {
		return status.Error(codes.InvalidArgument, errorInvalidOfferingID)
	}
	if errors.Is(source, restaurant.ErrInvalidReservationID) {
		return status.Error(codes.InvalidArgument, errorInvalidReservation)
	}
	if errors.Is(source, restaurant.ErrInvalidReservationDate) {
		return status.Error(codes.InvalidArgument, errorInvalidDate)
	}
	if errors.Is(source, restaurant.ErrInvalidPaymentMethod) {
		return status.Error(codes.InvalidArgument, errorInvalidPayment)
	}
	if errors.Is(source, restaurant.ErrInvalidRating) {
		return status.Error(codes.InvalidArgument, errorInvalidRating)
	}
	if errors.Is(source, restaurant.ErrInvalidFeedbackCategory) {
		return status.Error(codes.InvalidArgument, errorInvalidCategory)
	}
	if errors.Is(source, restaurant.ErrInvalidFeedbackComment) {
		return status.Error(codes.InvalidArgument, errorInvalidComment)
	}
	if errors.Is(source, restaurant.ErrInsufficientBalance) {
		return status.Error(codes.FailedPrecondition, errorInsufficientBalance)
	}
	if errors.Is(source, restaurant.ErrInsufficientPoints) {
		return status.Error(codes.FailedPrecondition, errorInsufficientPoints)
	}
	if errors.Is(source, restaurant.ErrMenuUnavailable) {
		return status.Error(codes.FailedPrecondition, errorMenuUnavailable)
	}
	if errors.Is(source, restaurant.ErrStudentInactive) {
		return status.Error(codes.PermissionDenied, errorStudentInactive)
	}
	if errors.Is(source, restaurant.ErrAlreadyCancelled) {
		return status.Error(codes.FailedPrecondition, errorAlreadyCancelled)
	}
	if errors.Is(source, restaurant.ErrReservationClosed) {
		return status.Error(codes.FailedPrecondition, errorReservationClosed)
	}
	if errors.Is(source, restaurant.ErrUnknownStudent) {
		return status.Error(codes.NotFound, errorUnknownStudent)
	}
	if errors.Is(source, restaurant.ErrUnknownMenuOffering) {
		return status.Error(codes.NotFound, errorUnknownOffering)
	}
	if errors.Is(source, restaurant.ErrUnknownReservation) {
		return status.Error(codes.NotFound, errorUnknownReservation)
	}
	if errors.Is(source, restaurant.ErrNotFound) {
		return status.Error(codes.NotFound, errorNotFound)
	}
	if restaurant.IsDomainError(source) {
		return status.Error(codes.InvalidArgument, errorInvalidArgument)
	}
	return status.Error(codes.Internal, source.Error())
}
