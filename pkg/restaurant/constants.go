package restaurant

const (
	operationCreateReservation   = "create_reservation"
	operationCancelReservation   = "cancel_reservation"
	operationOverrideReservation = "override_reservation"
	operationSubmitFeedback      = "submit_feedback"
	operationDeleteFeedback      = "delete_feedback"
	operationRechargeWallet      = "recharge_wallet"
	operationRegisterStudent     = "register_student"
	operationCreateStudent       = "create_student"
	operationUpdateStudent       = "update_student"
	operationDeleteStudent       = "delete_student"
	operationRestoreStudent      = "restore_student"
	operationCreateAdmin         = "create_admin"
	operationCreateOffering      = "create_offering"
	operationUpdateOffering      = "update_offering"
	operationDeleteOffering      = "delete_offering"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// PointsRedemptionCost is the fixed number of points one meal costs.
	PointsRedemptionCost  Points              = 100
	// FeedbackRewardPoints is credited for every accepted feedback submission.
	FeedbackRewardPoints  Points              = 10
	// DefaultMealPriceCents applies to offerings created without an explicit price.
	DefaultMealPriceCents PositiveAmountCents = 350

	// MinimumRechargeCents and MaximumRechargeCents bound a single wallet top-up.
	MinimumRechargeCents PositiveAmountCents = 100
	MaximumRechargeCents PositiveAmountCents = 100000

	redemptionCodePrefix      = "RES-"
	redemptionCodeLength      = 10
	redemptionCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	redemptionCodeMaxAttempts = 16

	maxFeedbackCommentLength = 1000
	minPasswordLength        = 6

	defaultListLimit = 20
	maxListLimit     = 200

	dateLayout = "2006-01-02"
)
