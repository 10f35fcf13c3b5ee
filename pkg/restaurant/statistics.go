package restaurant

import (
	"context"
	"fmt"
	"time"
)

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From ReservationDate
	To   ReservationDate
}

// ReservationStatistics summarises reservations whose date falls in a range.
type ReservationStatistics struct {
	Range           DateRange
	Total           int
	ByStatus        map[ReservationStatus]int
	ByPaymentMethod map[PaymentMethod]int
	RevenueCents    AmountCents
}

// CategoryStatistics is the count and mean rating of one feedback category.
type CategoryStatistics struct {
	Count         int
	AverageRating float64
}

// FeedbackStatistics summarises feedback submitted in a range.
type FeedbackStatistics struct {
	Range         DateRange
	Total         int
	AverageRating float64
	ByRating      map[Rating]int
	ByCategory    map[FeedbackCategory]CategoryStatistics
	BySentiment   map[Sentiment]int
}

// ResolveDateRange fills missing bounds with the current month and rejects inverted ranges.
func (service *Service) ResolveDateRange(from ReservationDate, to ReservationDate) (DateRange, error) {
	today := service.Today()
	if from.IsZero() {
		from = today.FirstOfMonth()
	}
	if to.IsZero() {
		to = today.LastOfMonth()
	}
	if to.Before(from) {
		return DateRange{}, fmt.Errorf("%w: %s is after %s", ErrInvalidDateRange, from, to)
	}
	return DateRange{From: from, To: to}, nil
}

// ReservationStatistics counts reservations by status and payment method; revenue sums confirmed prices.
func (service *Service) ReservationStatistics(ctx context.Context, from ReservationDate, to ReservationDate) (ReservationStatistics, error) {
	dateRange, err := service.ResolveDateRange(from, to)
	if err != nil {
		return ReservationStatistics{}, err
	}
	reservations, err := service.store.ListReservations(ctx, ReservationFilter{DateFrom: dateRange.From, DateTo: dateRange.To})
	if err != nil {
		return ReservationStatistics{}, err
	}
	statistics := ReservationStatistics{
		Range: dateRange,
		ByStatus: map[ReservationStatus]int{
			ReservationStatusPending:   0,
			ReservationStatusConfirmed: 0,
			ReservationStatusCancelled: 0,
			ReservationStatusNoShow:    0,
		},
		ByPaymentMethod: map[PaymentMethod]int{},
	}
	for _, reservation := range reservations {
		statistics.Total++
		statistics.ByStatus[reservation.Status]++
		statistics.ByPaymentMethod[reservation.PaymentMethod]++
		if reservation.Status == ReservationStatusConfirmed {
			statistics.RevenueCents += reservation.PriceCents
		}
	}
	return statistics, nil
}

// FeedbackStatistics aggregates ratings, categories and sentiments of feedback created in the range.
func (service *Service) FeedbackStatistics(ctx context.Context, from ReservationDate, to ReservationDate) (FeedbackStatistics, error) {
	dateRange, err := service.ResolveDateRange(from, to)
	if err != nil {
		return FeedbackStatistics{}, err
	}
	createdFrom, createdTo := service.DayBounds(dateRange)
	feedback, err := service.store.ListFeedback(ctx, FeedbackFilter{CreatedFrom: createdFrom, CreatedTo: createdTo})
	if err != nil {
		return FeedbackStatistics{}, err
	}
	statistics := FeedbackStatistics{
		Range:       dateRange,
		ByRating:    map[Rating]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		ByCategory:  map[FeedbackCategory]CategoryStatistics{},
		BySentiment: map[Sentiment]int{SentimentPositive: 0, SentimentNeutral: 0, SentimentNegative: 0},
	}
	ratingSum := 0
	categorySums := map[FeedbackCategory]int{}
	for _, item := range feedback {
		statistics.Total++
		ratingSum += item.Rating.Int()
		statistics.ByRating[item.Rating]++
		statistics.BySentiment[item.Sentiment]++
		if item.Category != FeedbackCategoryNone {
			category := statistics.ByCategory[item.Category]
			category.Count++
			statistics.ByCategory[item.Category] = category
			categorySums[item.Category] += item.Rating.Int()
		}
	}
	if statistics.Total > 0 {
		statistics.AverageRating = roundTwoPlaces(float64(ratingSum) / float64(statistics.Total))
	}
	for category, summary := range statistics.ByCategory {
		summary.AverageRating = roundTwoPlaces(float64(categorySums[category]) / float64(summary.Count))
		statistics.ByCategory[category] = summary
	}
	return statistics, nil
}

// DayBounds converts an inclusive day range into a half-open UTC instant range in the service time zone.
func (service *Service) DayBounds(dateRange DateRange) (time.Time, time.Time) {
	start := time.Date(dateRange.From.value.Year(), dateRange.From.value.Month(), dateRange.From.value.Day(), 0, 0, 0, 0, service.location)
	end := time.Date(dateRange.To.value.Year(), dateRange.To.value.Month(), dateRange.To.value.Day()+1, 0, 0, 0, 0, service.location)
	return start.UTC(), end.UTC()
}

func roundTwoPlaces(value float64) float64 {
	return float64(int64(value*100+0.5)) / 100
}
