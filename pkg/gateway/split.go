package gateway

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// ValidateSplit rejects split lists that route more than 100% of a payment
// or contain non-positive entries.
func ValidateSplit(entries []SplitEntry) error {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.WalletID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "split wallet id is required")
		}
		if entry.Percentage.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, "split percentage must be positive")
		}
		total = total.Add(entry.Percentage)
	}
	if total.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "split percentages exceed 100%").
			WithDetails(map[string]string{"total": total.String()})
	}
	return nil
}
