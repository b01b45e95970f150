package promos

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func activePercent(value string) models.PromoCode {
	return models.PromoCode{
		Active:        true,
		DiscountType:  enums.PromoDiscountPercent,
		DiscountValue: decimal.RequireFromString(value),
	}
}

func TestDiscountPercentTruncatesFractionalCents(t *testing.T) {
	p := activePercent("12.5")
	// 12.5% of R$99.99 is 1249.875 cents
	assert.Equal(t, int64(1249), Discount(p, 9999))
}

func TestDiscountFixedCappedAtSubtotal(t *testing.T) {
	p := models.PromoCode{
		Active:        true,
		DiscountType:  enums.PromoDiscountFixed,
		DiscountValue: decimal.RequireFromString("50.00"),
	}
	assert.Equal(t, int64(5000), Discount(p, 12000))
	assert.Equal(t, int64(3000), Discount(p, 3000))
}

func TestValidateHappyPath(t *testing.T) {
	now := time.Now()
	p := activePercent("10")

	discount, err := Validate(p, 10000, nil, 0, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), discount)
}

func TestDiscountPercentHonorsMaxDiscountCap(t *testing.T) {
	p := activePercent("50")
	p.MaxDiscountCents = 2000

	assert.Equal(t, int64(2000), Discount(p, 10000))
	assert.Equal(t, int64(1000), Discount(p, 2000))
}

func TestValidateTicketTypeAllowList(t *testing.T) {
	now := time.Now()
	allowed := uuid.New()
	other := uuid.New()

	p := activePercent("10")
	raw, err := json.Marshal([]uuid.UUID{allowed})
	require.NoError(t, err)
	p.TicketTypeIDs = raw

	discount, err := Validate(p, 10000, []uuid.UUID{allowed}, 0, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), discount)

	_, err = Validate(p, 10000, []uuid.UUID{allowed, other}, 0, now)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestValidateRejections(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		promo     func() models.PromoCode
		subtotal  int64
		buyerUses int
	}{
		{
			name: "inactive",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.Active = false
				return p
			},
			subtotal: 10000,
		},
		{
			name: "not yet started",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.StartsAt = &future
				return p
			},
			subtotal: 10000,
		},
		{
			name: "expired",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.EndsAt = &past
				return p
			},
			subtotal: 10000,
		},
		{
			name: "below minimum subtotal",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.MinSubtotal = 20000
				return p
			},
			subtotal: 10000,
		},
		{
			name: "usage limit reached",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.MaxUses = 3
				p.UsedCount = 3
				return p
			},
			subtotal: 10000,
		},
		{
			name: "buyer cap reached",
			promo: func() models.PromoCode {
				p := activePercent("10")
				p.MaxUsesPerBuyer = 1
				return p
			},
			subtotal:  10000,
			buyerUses: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.promo(), tc.subtotal, nil, tc.buyerUses, now)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "VERAO10", NormalizeCode("  verao10 "))
}
