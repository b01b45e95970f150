package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.TicketType{}); err != nil {
		t.Fatalf("migrate ticket types: %v", err)
	}
	return db
}

func seedTicketType(t *testing.T, db *gorm.DB, tt models.TicketType) models.TicketType {
	t.Helper()
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	if tt.EventID == uuid.Nil {
		tt.EventID = uuid.New()
	}
	if err := db.Create(&tt).Error; err != nil {
		t.Fatalf("seed ticket type: %v", err)
	}
	return tt
}

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	typeA := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 5})
	typeB := seedTicketType(t, db, models.TicketType{Name: "Camarote", TotalQty: 1})

	requests := []ReservationRequest{
		{TicketTypeID: typeA.ID, Qty: 3},
		{TicketTypeID: typeA.ID, Qty: 4},
		{TicketTypeID: typeB.ID, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Reserve(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[1].Reserved || results[1].Reason == "" {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var a, b models.TicketType
	if err := db.First(&a, "id = ?", typeA.ID).Error; err != nil {
		t.Fatalf("load ticket type a: %v", err)
	}
	if err := db.First(&b, "id = ?", typeB.ID).Error; err != nil {
		t.Fatalf("load ticket type b: %v", err)
	}
	if a.ReservedQty != 3 || a.SoldQty != 0 {
		t.Fatalf("unexpected type a state: %+v", a)
	}
	if b.ReservedQty != 1 {
		t.Fatalf("unexpected type b state: %+v", b)
	}
}

func TestReserveHalfPricePool(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 10, HalfPriceQty: 2})

	results, err := Reserve(ctx, db, []ReservationRequest{
		{TicketTypeID: tt.ID, Qty: 2, HalfPrice: true},
		{TicketTypeID: tt.ID, Qty: 1, HalfPrice: true},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatal("expected half-price reservation inside quota to succeed")
	}
	if results[1].Reserved {
		t.Fatal("expected half-price reservation over quota to fail")
	}

	var got models.TicketType
	if err := db.First(&got, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("load ticket type: %v", err)
	}
	if got.HalfPriceReserved != 2 || got.ReservedQty != 2 {
		t.Fatalf("half-price seats must come out of the shared pool: %+v", got)
	}
}

func TestHalfPriceSharesSeatsWithFullPrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 10, HalfPriceQty: 10})

	results, err := Reserve(ctx, db, []ReservationRequest{
		{TicketTypeID: tt.ID, Qty: 10},
		{TicketTypeID: tt.ID, Qty: 10, HalfPrice: true},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatal("expected full-price reservation to succeed")
	}
	if results[1].Reserved {
		t.Fatal("half-price must not sell seats the full pool already holds")
	}

	if err := Commit(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 10}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var got models.TicketType
	if err := db.First(&got, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("load ticket type: %v", err)
	}
	if got.SoldQty != 10 || got.HalfPriceSold != 0 {
		t.Fatalf("sold seats exceed capacity: %+v", got)
	}
	if got.AvailableFull() != 0 || got.AvailableHalf() != 0 {
		t.Fatalf("no availability should remain: %+v", got)
	}
}

func TestHalfPriceCommitAndReleaseMoveBothPools(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 10, HalfPriceQty: 4})

	if _, err := Reserve(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 4, HalfPrice: true}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := Commit(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 2, HalfPrice: true}}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := Release(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 2, HalfPrice: true}}); err != nil {
		t.Fatalf("release: %v", err)
	}

	var got models.TicketType
	if err := db.First(&got, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("load ticket type: %v", err)
	}
	if got.SoldQty != 2 || got.HalfPriceSold != 2 {
		t.Fatalf("commit must mark the seat sold in both pools: %+v", got)
	}
	if got.ReservedQty != 0 || got.HalfPriceReserved != 0 {
		t.Fatalf("release must return the seat to both pools: %+v", got)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 5})

	_, err := Reserve(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommitMovesReservedToSold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 5, ReservedQty: 3})

	if err := Commit(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 3}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var got models.TicketType
	if err := db.First(&got, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("load ticket type: %v", err)
	}
	if got.ReservedQty != 0 || got.SoldQty != 3 {
		t.Fatalf("unexpected state after commit: %+v", got)
	}

	// second commit has nothing reserved left
	err := Commit(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 3}})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double commit, got %v", err)
	}
}

func TestReleaseReturnsSeats(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tt := seedTicketType(t, db, models.TicketType{Name: "Pista", TotalQty: 5, ReservedQty: 2})

	if err := Release(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 2}}); err != nil {
		t.Fatalf("release: %v", err)
	}

	var got models.TicketType
	if err := db.First(&got, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("load ticket type: %v", err)
	}
	if got.ReservedQty != 0 {
		t.Fatalf("expected reserved_qty back to 0, got %+v", got)
	}

	err := Release(ctx, db, []ReservationRequest{{TicketTypeID: tt.ID, Qty: 1}})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict releasing more than reserved, got %v", err)
	}
}
