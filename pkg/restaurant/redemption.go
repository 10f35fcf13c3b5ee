package restaurant

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// NewRedemptionCode returns "RES-" followed by ten random uppercase alphanumerics.
func NewRedemptionCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(redemptionCodeAlphabet)))
	var builder strings.Builder
	builder.Grow(len(redemptionCodePrefix) + redemptionCodeLength)
	builder.WriteString(redemptionCodePrefix)
	for index := 0; index < redemptionCodeLength; index++ {
		position, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("redemption code: %w", err)
		}
		builder.WriteByte(redemptionCodeAlphabet[position.Int64()])
	}
	return builder.String(), nil
}

func (service *Service) issueRedemptionCode(ctx context.Context, store ReservationStore) (string, error) {
	for attempt := 0; attempt < redemptionCodeMaxAttempts; attempt++ {
		code, err := service.newRedemptionCode()
		if err != nil {
			return "", err
		}
		exists, err := store.RedemptionCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free code after %d attempts", ErrDuplicateRedemptionCode, redemptionCodeMaxAttempts)
}
