package promos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:promos_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.PromoCode{}, &models.Order{}))
	return conn
}

func seedPromo(t *testing.T, db *gorm.DB, promo models.PromoCode) models.PromoCode {
	t.Helper()
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	if promo.EventID == uuid.Nil {
		promo.EventID = uuid.New()
	}
	if promo.DiscountType == "" {
		promo.DiscountType = enums.PromoDiscountPercent
		promo.DiscountValue = decimal.RequireFromString("10")
	}
	require.NoError(t, db.Create(&promo).Error)
	return promo
}

func TestFindByEventAndCodeNormalizes(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := seedPromo(t, db, models.PromoCode{Code: "VERAO10", Active: true})

	got, err := repo.FindByEventAndCode(ctx, promo.EventID, " verao10 ")
	require.NoError(t, err)
	assert.Equal(t, promo.ID, got.ID)

	_, err = repo.FindByEventAndCode(ctx, promo.EventID, "OUTRO")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIncrementUsageGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := seedPromo(t, db, models.PromoCode{Code: "LIMITADO", Active: true, MaxUses: 2, UsedCount: 1})

	ok, err := repo.IncrementUsage(ctx, promo.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// limit hit, guard refuses
	ok, err = repo.IncrementUsage(ctx, promo.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	var got models.PromoCode
	require.NoError(t, db.First(&got, "id = ?", promo.ID).Error)
	assert.Equal(t, 2, got.UsedCount)
}

func TestIncrementUsageUnlimited(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := seedPromo(t, db, models.PromoCode{Code: "LIVRE", Active: true, MaxUses: 0, UsedCount: 99})

	ok, err := repo.IncrementUsage(ctx, promo.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountBuyerUsesIgnoresReleasedOrders(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := seedPromo(t, db, models.PromoCode{Code: "VERAO10", Active: true})
	buyer := uuid.New()

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelled,
		enums.OrderStatusExpired,
	} {
		order := models.Order{
			ID:          uuid.New(),
			BuyerID:     buyer,
			EventID:     promo.EventID,
			Status:      status,
			PromoCodeID: &promo.ID,
		}
		require.NoError(t, db.Create(&order).Error)
	}

	count, err := repo.CountBuyerUses(ctx, promo.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	eventID := uuid.New()
	first := models.PromoCode{
		ID:            uuid.New(),
		EventID:       eventID,
		Code:          "verao10",
		DiscountType:  enums.PromoDiscountPercent,
		DiscountValue: decimal.RequireFromString("10"),
		Active:        true,
	}
	created, err := repo.Create(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, "VERAO10", created.Code)

	dup := models.PromoCode{
		ID:            uuid.New(),
		EventID:       eventID,
		Code:          "VERAO10",
		DiscountType:  enums.PromoDiscountPercent,
		DiscountValue: decimal.RequireFromString("5"),
		Active:        true,
	}
	_, err = repo.Create(ctx, &dup)
	require.Error(t, err)
}

func TestDeactivate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := seedPromo(t, db, models.PromoCode{Code: "VERAO10", Active: true})

	ok, err := repo.Deactivate(ctx, promo.EventID, promo.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Deactivate(ctx, promo.EventID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
