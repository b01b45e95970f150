package inventory

import (
	"fmt"
	"time"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

// CheckPurchasable validates visibility, the sales window and per-order
// quantity bounds for one ticket type before any reservation is attempted.
// The sales window is half-open: the start instant sells, the end instant
// does not.
func CheckPurchasable(tt models.TicketType, qty int, now time.Time) error {
	if tt.Hidden {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%q is not available for sale", tt.Name))
	}
	if tt.SalesStartAt != nil && now.Before(*tt.SalesStartAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sales for %q have not started", tt.Name))
	}
	if tt.SalesEndAt != nil && !now.Before(*tt.SalesEndAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sales for %q have ended", tt.Name))
	}
	if tt.MinPerOrder > 0 && qty < tt.MinPerOrder {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum of %d per order for %q", tt.MinPerOrder, tt.Name))
	}
	if tt.MaxPerOrder > 0 && qty > tt.MaxPerOrder {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("maximum of %d per order for %q", tt.MaxPerOrder, tt.Name))
	}
	return nil
}
