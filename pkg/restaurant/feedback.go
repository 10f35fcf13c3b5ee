package restaurant

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Rating is a 1 to 5 score; zero means unset in filters.
type Rating int

// NewRating validates a rating.
func NewRating(raw int) (Rating, error) {
	if raw < 1 || raw > 5 {
		return 0, fmt.Errorf("%w: must be between 1 and 5", ErrInvalidRating)
	}
	return Rating(raw), nil
}

// Int returns the raw score.
func (rating Rating) Int() int {
	return int(rating)
}

// FeedbackCategory optionally classifies feedback; empty means uncategorised.
type FeedbackCategory string

const (
	FeedbackCategoryNone    FeedbackCategory = ""
	FeedbackCategoryTaste   FeedbackCategory = "taste"
	FeedbackCategoryTiming  FeedbackCategory = "timing"
	FeedbackCategoryService FeedbackCategory = "service"
	FeedbackCategoryHygiene FeedbackCategory = "hygiene"
)

// ParseFeedbackCategory validates a category; an empty input yields FeedbackCategoryNone.
func ParseFeedbackCategory(raw string) (FeedbackCategory, error) {
	switch FeedbackCategory(strings.ToLower(strings.TrimSpace(raw))) {
	case FeedbackCategoryNone:
		return FeedbackCategoryNone, nil
	case FeedbackCategoryTaste:
		return FeedbackCategoryTaste, nil
	case FeedbackCategoryTiming:
		return FeedbackCategoryTiming, nil
	case FeedbackCategoryService:
		return FeedbackCategoryService, nil
	case FeedbackCategoryHygiene:
		return FeedbackCategoryHygiene, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedbackCategory, raw)
	}
}

// String returns the label.
func (category FeedbackCategory) String() string {
	return string(category)
}

// Sentiment is the derived tone of a feedback submission.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment validates a sentiment label.
func ParseSentiment(raw string) (Sentiment, error) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(raw))) {
	case SentimentPositive:
		return SentimentPositive, nil
	case SentimentNeutral:
		return SentimentNeutral, nil
	case SentimentNegative:
		return SentimentNegative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSentiment, raw)
	}
}

// String returns the label.
func (sentiment Sentiment) String() string {
	return string(sentiment)
}

var (
	negativeKeywords = []string{"bad", "poor", "terrible", "awful", "disappointing"}
	positiveKeywords = []string{"good", "great", "excellent", "amazing", "delicious"}
)

// DeriveSentiment decides the tone from the rating, falling back to comment keywords for a middle rating.
func DeriveSentiment(rating Rating, comment string) Sentiment {
	if rating >= 4 {
		return SentimentPositive
	}
	if rating <= 2 {
		return SentimentNegative
	}
	lowered := strings.ToLower(comment)
	for _, keyword := range negativeKeywords {
		if strings.Contains(lowered, keyword) {
			return SentimentNegative
		}
	}
	for _, keyword := range positiveKeywords {
		if strings.Contains(lowered, keyword) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// Feedback is one rating submitted by a student about an offering.
type Feedback struct {
	ID             FeedbackID
	StudentID      StudentID
	MenuOfferingID MenuOfferingID
	Rating         Rating
	Category       FeedbackCategory
	Comment        string
	Sentiment      Sentiment
	CreatedAt      time.Time
}

// SubmitFeedback records feedback and credits the reward points in one atomic unit.
func (service *Service) SubmitFeedback(ctx context.Context, studentID StudentID, offeringID MenuOfferingID, rating Rating, category FeedbackCategory, comment string) (Feedback, error) {
	feedback, operationError := service.submitFeedback(ctx, studentID, offeringID, rating, category, comment)
	service.logOperation(ctx, OperationLog{
		Operation:      operationSubmitFeedback,
		StudentID:      studentID,
		MenuOfferingID: offeringID,
		FeedbackID:     feedback.ID,
		Points:         FeedbackRewardPoints,
		Error:          operationError,
	})
	return feedback, operationError
}

func (service *Service) submitFeedback(ctx context.Context, studentID StudentID, offeringID MenuOfferingID, rating Rating, category FeedbackCategory, comment string) (Feedback, error) {
	if _, err := NewRating(rating.Int()); err != nil {
		return Feedback{}, err
	}
	if _, err := ParseFeedbackCategory(category.String()); err != nil {
		return Feedback{}, err
	}
	trimmedComment := strings.TrimSpace(comment)
	if utf8.RuneCountInString(trimmedComment) > maxFeedbackCommentLength {
		return Feedback{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidFeedbackComment, maxFeedbackCommentLength)
	}

	var created Feedback
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		student, err := transactionStore.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if !student.CanReserve() {
			return ErrStudentInactive
		}
		if _, err := transactionStore.GetOffering(ctx, offeringID); err != nil {
			return err
		}
		feedbackID, err := NewFeedbackID(service.newID())
		if err != nil {
			return err
		}
		feedback := Feedback{
			ID:             feedbackID,
			StudentID:      studentID,
			MenuOfferingID: offeringID,
			Rating:         rating,
			Category:       category,
			Comment:        trimmedComment,
			Sentiment:      DeriveSentiment(rating, trimmedComment),
			CreatedAt:      service.nowFn().UTC(),
		}
		if err := transactionStore.CreateFeedback(ctx, feedback); err != nil {
			return err
		}
		memo := LedgerMemo{Reason: PointsReasonFeedback, FeedbackID: feedbackID}
		if _, err := service.ledger(transactionStore).CreditPoints(ctx, studentID, FeedbackRewardPoints, memo); err != nil {
			return err
		}
		created = feedback
		return nil
	})
	if transactionError != nil {
		return Feedback{}, wrapFailure(ErrFeedbackFailed, transactionError)
	}
	return created, nil
}

// ListFeedback returns the student's own feedback, newest first.
func (service *Service) ListFeedback(ctx context.Context, studentID StudentID, page Page) ([]Feedback, error) {
	return service.store.ListFeedback(ctx, FeedbackFilter{StudentID: studentID, Page: NewPage(page.Limit, page.Offset)})
}

// GetFeedback returns one of the student's own feedback submissions.
func (service *Service) GetFeedback(ctx context.Context, studentID StudentID, feedbackID FeedbackID) (Feedback, error) {
	feedback, err := service.store.GetFeedback(ctx, feedbackID)
	if err != nil {
		return Feedback{}, err
	}
	if feedback.StudentID != studentID {
		return Feedback{}, ErrUnknownFeedback
	}
	return feedback, nil
}

// AdminListFeedback lists feedback across students.
func (service *Service) AdminListFeedback(ctx context.Context, filter FeedbackFilter) ([]Feedback, error) {
	filter.Page = NewPage(filter.Page.Limit, filter.Page.Offset)
	return service.store.ListFeedback(ctx, filter)
}

// AdminGetFeedback returns any feedback submission.
func (service *Service) AdminGetFeedback(ctx context.Context, feedbackID FeedbackID) (Feedback, error) {
	return service.store.GetFeedback(ctx, feedbackID)
}

// DeleteFeedback hides a feedback submission; awarded points are kept.
func (service *Service) DeleteFeedback(ctx context.Context, feedbackID FeedbackID) error {
	operationError := service.store.DeleteFeedback(ctx, feedbackID, service.nowFn().UTC())
	service.logOperation(ctx, OperationLog{
		Operation:  operationDeleteFeedback,
		FeedbackID: feedbackID,
		Error:      operationError,
	})
	return operationError
}
