package promos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the discount in cents for a valid code applied to the
// given subtotal. Percent codes truncate fractional cents and honor the
// code's max discount cap; fixed codes are capped at the subtotal so the
// order never goes negative.
func Discount(p models.PromoCode, subtotalCents int64) int64 {
	switch p.DiscountType {
	case enums.PromoDiscountPercent:
		cents := decimal.NewFromInt(subtotalCents).Mul(p.DiscountValue).Div(hundred).IntPart()
		if p.MaxDiscountCents > 0 && cents > p.MaxDiscountCents {
			cents = p.MaxDiscountCents
		}
		if cents > subtotalCents {
			return subtotalCents
		}
		return cents
	case enums.PromoDiscountFixed:
		cents := p.DiscountValue.Mul(hundred).IntPart()
		if cents > subtotalCents {
			return subtotalCents
		}
		return cents
	default:
		return 0
	}
}

// Applicable reports whether every requested ticket type is covered by the
// code's allow-list. An empty allow-list covers all of the event's types.
func Applicable(p models.PromoCode, ticketTypeIDs []uuid.UUID) bool {
	allowed := p.AllowedTicketTypes()
	if len(allowed) == 0 {
		return true
	}
	set := make(map[uuid.UUID]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range ticketTypeIDs {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// Validate checks every redemption rule and returns the discount in cents.
// buyerUses is how many live orders of this buyer already carry the code.
func Validate(p models.PromoCode, subtotalCents int64, ticketTypeIDs []uuid.UUID, buyerUses int, now time.Time) (int64, error) {
	if !p.Active {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not active")
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not yet valid")
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code has expired")
	}
	if p.MinSubtotal > 0 && subtotalCents < p.MinSubtotal {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below promo code minimum")
	}
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code usage limit reached")
	}
	if p.MaxUsesPerBuyer > 0 && buyerUses >= p.MaxUsesPerBuyer {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code already used by this buyer")
	}
	if !Applicable(p, ticketTypeIDs) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code does not apply to the selected tickets")
	}

	discount := Discount(p, subtotalCents)
	if discount < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "promo code discount is invalid")
	}
	return discount, nil
}
