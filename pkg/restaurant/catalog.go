package restaurant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const maxMenuTitleLength = 255

// OfferingInput carries the fields of a new offering. Zero Status means available
// and zero PriceCents means DefaultMealPriceCents.
type OfferingInput struct {
	Weekday    Weekday
	MealSlot   MealSlot
	Title      string
	Tags       []string
	Status     MenuStatus
	PriceCents PositiveAmountCents
}

// OfferingUpdate carries a partial change; nil fields are left untouched.
type OfferingUpdate struct {
	Weekday    *Weekday
	MealSlot   *MealSlot
	Title      *string
	Tags       *[]string
	Status     *MenuStatus
	PriceCents *PositiveAmountCents
}

// GetOffering returns one offering.
func (service *Service) GetOffering(ctx context.Context, offeringID MenuOfferingID) (MenuOffering, error) {
	return service.store.GetOffering(ctx, offeringID)
}

// WeeklyMenu lists available offerings ordered by weekday and meal slot.
func (service *Service) WeeklyMenu(ctx context.Context, filter MenuFilter) ([]MenuOffering, error) {
	filter.Status = MenuStatusAvailable
	return service.ListOfferings(ctx, filter)
}

// ListOfferings lists offerings of any status ordered by weekday and meal slot.
func (service *Service) ListOfferings(ctx context.Context, filter MenuFilter) ([]MenuOffering, error) {
	offerings, err := service.store.ListOfferings(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(offerings, func(left, right int) bool {
		if offerings[left].Weekday != offerings[right].Weekday {
			return offerings[left].Weekday.Index() < offerings[right].Weekday.Index()
		}
		return offerings[left].MealSlot.Index() < offerings[right].MealSlot.Index()
	})
	return offerings, nil
}

// CreateOffering adds an offering to the weekly menu.
func (service *Service) CreateOffering(ctx context.Context, input OfferingInput) (MenuOffering, error) {
	offering, operationError := service.createOffering(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation:      operationCreateOffering,
		MenuOfferingID: offering.ID,
		Amount:         offering.PriceCents.ToAmountCents(),
		Error:          operationError,
	})
	return offering, operationError
}

func (service *Service) createOffering(ctx context.Context, input OfferingInput) (MenuOffering, error) {
	offeringID, err := NewMenuOfferingID(service.newID())
	if err != nil {
		return MenuOffering{}, err
	}
	nowUTC := service.nowFn().UTC()
	offering := MenuOffering{
		ID:         offeringID,
		Weekday:    input.Weekday,
		MealSlot:   input.MealSlot,
		Title:      input.Title,
		Tags:       input.Tags,
		Status:     input.Status,
		PriceCents: input.PriceCents,
		CreatedAt:  nowUTC,
		UpdatedAt:  nowUTC,
	}
	if offering.Status == "" {
		offering.Status = MenuStatusAvailable
	}
	if offering.PriceCents == 0 {
		offering.PriceCents = DefaultMealPriceCents
	}
	normalized, err := normalizeOffering(offering)
	if err != nil {
		return MenuOffering{}, err
	}
	if err := service.store.CreateOffering(ctx, normalized); err != nil {
		return MenuOffering{}, err
	}
	return normalized, nil
}

// UpdateOffering applies a partial change to an offering.
func (service *Service) UpdateOffering(ctx context.Context, offeringID MenuOfferingID, update OfferingUpdate) (MenuOffering, error) {
	var updated MenuOffering
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		offering, err := transactionStore.GetOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		if update.Weekday != nil {
			offering.Weekday = *update.Weekday
		}
		if update.MealSlot != nil {
			offering.MealSlot = *update.MealSlot
		}
		if update.Title != nil {
			offering.Title = *update.Title
		}
		if update.Tags != nil {
			offering.Tags = *update.Tags
		}
		if update.Status != nil {
			offering.Status = *update.Status
		}
		if update.PriceCents != nil {
			offering.PriceCents = *update.PriceCents
		}
		offering.UpdatedAt = service.nowFn().UTC()
		normalized, err := normalizeOffering(offering)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateOffering(ctx, normalized); err != nil {
			return err
		}
		updated = normalized
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:      operationUpdateOffering,
		MenuOfferingID: offeringID,
		Amount:         updated.PriceCents.ToAmountCents(),
		Error:          operationError,
	})
	if operationError != nil {
		return MenuOffering{}, operationError
	}
	return updated, nil
}

// DeleteOffering removes an offering from the menu. Existing reservations keep their reference.
func (service *Service) DeleteOffering(ctx context.Context, offeringID MenuOfferingID) error {
	operationError := service.store.DeleteOffering(ctx, offeringID, service.nowFn().UTC())
	service.logOperation(ctx, OperationLog{
		Operation:      operationDeleteOffering,
		MenuOfferingID: offeringID,
		Error:          operationError,
	})
	return operationError
}

func normalizeOffering(offering MenuOffering) (MenuOffering, error) {
	if _, err := ParseWeekday(offering.Weekday.String()); err != nil {
		return MenuOffering{}, err
	}
	if _, err := ParseMealSlot(offering.MealSlot.String()); err != nil {
		return MenuOffering{}, err
	}
	if _, err := ParseMenuStatus(offering.Status.String()); err != nil {
		return MenuOffering{}, err
	}
	if offering.PriceCents <= 0 {
		return MenuOffering{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidAmountCents)
	}
	offering.Title = strings.TrimSpace(offering.Title)
	if offering.Title == "" {
		return MenuOffering{}, fmt.Errorf("%w: empty value", ErrInvalidMenuTitle)
	}
	if utf8.RuneCountInString(offering.Title) > maxMenuTitleLength {
		return MenuOffering{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidMenuTitle, maxMenuTitleLength)
	}
	tags, err := normalizeTags(offering.Tags)
	if err != nil {
		return MenuOffering{}, err
	}
	offering.Tags = tags
	return offering, nil
}

func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			return nil, fmt.Errorf("%w: empty tag", ErrInvalidMenuTag)
		}
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		tags = append(tags, normalized)
	}
	return tags, nil
}
