package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:events_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Event{},
		&models.TicketType{},
	))
	return conn
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	return svc
}

func validCreateInput() CreateEventInput {
	starts := time.Now().Add(72 * time.Hour)
	return CreateEventInput{
		Name:     "Baile do Ingresso",
		Venue:    "Audio Club",
		StartsAt: starts,
	}
}

func TestCreateEventStartsAsDraft(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	organizerID := uuid.New()

	event, err := svc.Create(context.Background(), organizerID, validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusDraft, event.Status)
	assert.Equal(t, organizerID, event.OrganizerID)
}

func TestCreateEventRejectsPastStart(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	input := validCreateInput()
	input.StartsAt = time.Now().Add(-time.Hour)

	_, err := svc.Create(context.Background(), uuid.New(), input)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPublishRequiresTicketTypes(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)

	_, err = svc.Publish(ctx, organizerID, event.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	_, err = svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{
		Name:       "Pista",
		PriceCents: 5000,
		TotalQty:   100,
	})
	require.NoError(t, err)

	published, err := svc.Publish(ctx, organizerID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusPublished, published.Status)
}

func TestPublicListingOnlyShowsPublished(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	draft, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)

	toPublish, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)
	_, err = svc.AddTicketType(ctx, organizerID, toPublish.ID, CreateTicketTypeInput{Name: "Pista", PriceCents: 5000, TotalQty: 50})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, organizerID, toPublish.ID)
	require.NoError(t, err)

	listed, err := svc.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, toPublish.ID, listed[0].ID)

	_, err = svc.GetPublished(ctx, draft.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestHideRemovesEventFromSale(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)
	_, err = svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{Name: "Pista", PriceCents: 5000, TotalQty: 50})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, organizerID, event.ID)
	require.NoError(t, err)

	hidden, err := svc.Hide(ctx, organizerID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusHidden, hidden.Status)

	listed, err := svc.ListPublished(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestForeignEventReadsAsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	event, err := svc.Create(ctx, uuid.New(), validCreateInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, uuid.New(), event.ID, UpdateEventInput{Venue: strPtr("Elsewhere")})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestResizeTicketTypeGuardsSoldSeats(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)
	tt, err := svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{
		Name:       "Pista",
		PriceCents: 5000,
		TotalQty:   100,
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.TicketType{}).
		Where("id = ?", tt.ID).
		Updates(map[string]any{"sold_qty": 30, "reserved_qty": 10}).Error)

	// 35 < 30 sold + 10 reserved
	_, err = svc.ResizeTicketType(ctx, organizerID, tt.ID, ResizeTicketTypeInput{TotalQty: 35})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	resized, err := svc.ResizeTicketType(ctx, organizerID, tt.ID, ResizeTicketTypeInput{TotalQty: 40, HalfPriceQty: 0})
	require.NoError(t, err)
	assert.Equal(t, 40, resized.TotalQty)
}

func TestHalfPriceQuotaBoundedByTotal(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)

	_, err = svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{
		Name:         "Pista",
		PriceCents:   5000,
		TotalQty:     50,
		HalfPriceQty: 60,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	tt, err := svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{
		Name:         "Pista",
		PriceCents:   5000,
		TotalQty:     50,
		HalfPriceQty: 20,
	})
	require.NoError(t, err)

	_, err = svc.ResizeTicketType(ctx, organizerID, tt.ID, ResizeTicketTypeInput{TotalQty: 30, HalfPriceQty: 40})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestTicketTypeVisibilityToggle(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)
	tt, err := svc.AddTicketType(ctx, organizerID, event.ID, CreateTicketTypeInput{
		Name:       "Camarote",
		PriceCents: 20000,
		TotalQty:   10,
	})
	require.NoError(t, err)
	require.False(t, tt.Hidden)

	hidden, err := svc.SetTicketTypeHidden(ctx, organizerID, tt.ID, true)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	// hidden tiers stay off the public listing but remain visible to the
	// organizer
	sellable, err := svc.ListSellableTicketTypes(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, sellable)

	all, err := svc.ListTicketTypes(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	shown, err := svc.SetTicketTypeHidden(ctx, organizerID, tt.ID, false)
	require.NoError(t, err)
	assert.False(t, shown.Hidden)

	sellable, err = svc.ListSellableTicketTypes(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, sellable, 1)

	// another organizer cannot toggle it
	_, err = svc.SetTicketTypeHidden(ctx, uuid.New(), tt.ID, true)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateEventPartialEdit(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	organizerID := uuid.New()

	event, err := svc.Create(ctx, organizerID, validCreateInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, organizerID, event.ID, UpdateEventInput{Venue: strPtr("Espaco das Americas")})
	require.NoError(t, err)
	assert.Equal(t, "Espaco das Americas", updated.Venue)
	assert.Equal(t, event.Name, updated.Name)
}

func strPtr(s string) *string { return &s }
