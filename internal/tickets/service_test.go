package tickets

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

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
	dsn := "file:tickets_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.TicketInstance{}))
	return conn
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(NewRepository(db), nil), db
}

func attendeesJSON(t *testing.T, attendees ...models.Attendee) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(attendees)
	require.NoError(t, err)
	return raw
}

func TestGenerateCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "TKT-"), code)
		assert.Len(t, code, 4+16)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestMintForOrder(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	order := models.Order{ID: uuid.New(), BuyerID: uuid.New(), EventID: uuid.New()}
	items := []models.OrderItem{
		{
			TicketTypeID: uuid.New(),
			Quantity:     2,
			Attendees: attendeesJSON(t,
				models.Attendee{Name: "Ana Souza", Email: "ana@example.com", CPF: "52998224725"},
				models.Attendee{Name: "Bruno Lima"},
			),
		},
		{
			TicketTypeID: uuid.New(),
			Quantity:     1,
			HalfPrice:    true,
			Attendees:    attendeesJSON(t, models.Attendee{Name: "Carla Dias"}),
		},
	}

	var minted []models.TicketInstance
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		minted, terr = svc.MintForOrder(ctx, tx, order, items)
		return terr
	})
	require.NoError(t, err)
	require.Len(t, minted, 3)

	for _, ticket := range minted {
		assert.Equal(t, order.ID, ticket.OrderID)
		assert.Equal(t, order.BuyerID, ticket.HolderID)
		assert.Equal(t, enums.TicketStatusActive, ticket.Status)
		assert.True(t, strings.HasPrefix(ticket.Code, "TKT-"))
	}
	require.NotNil(t, minted[0].AttendeeName)
	assert.Equal(t, "Ana Souza", *minted[0].AttendeeName)
	require.NotNil(t, minted[0].AttendeeEmail)
	assert.Equal(t, "ana@example.com", *minted[0].AttendeeEmail)
	require.NotNil(t, minted[0].AttendeeCPF)
	assert.Equal(t, "52998224725", *minted[0].AttendeeCPF)
	assert.Nil(t, minted[1].AttendeeEmail)
	assert.Nil(t, minted[1].AttendeeCPF)
	assert.True(t, minted[2].HalfPrice)

	var count int64
	require.NoError(t, db.Model(&models.TicketInstance{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestMintForOrderLegacyNameList(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	// rows written before attendees carried email and cpf hold a bare
	// string array
	raw, err := json.Marshal([]string{"Ana Souza", "Bruno Lima"})
	require.NoError(t, err)

	order := models.Order{ID: uuid.New(), BuyerID: uuid.New(), EventID: uuid.New()}
	items := []models.OrderItem{{TicketTypeID: uuid.New(), Quantity: 2, Attendees: raw}}

	var minted []models.TicketInstance
	err = db.Transaction(func(tx *gorm.DB) error {
		var terr error
		minted, terr = svc.MintForOrder(ctx, tx, order, items)
		return terr
	})
	require.NoError(t, err)
	require.Len(t, minted, 2)
	require.NotNil(t, minted[0].AttendeeName)
	assert.Equal(t, "Ana Souza", *minted[0].AttendeeName)
	assert.Nil(t, minted[0].AttendeeEmail)
	require.NotNil(t, minted[1].AttendeeName)
	assert.Equal(t, "Bruno Lima", *minted[1].AttendeeName)
}

func TestMintForOrderWithoutAttendees(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	order := models.Order{ID: uuid.New(), BuyerID: uuid.New(), EventID: uuid.New()}
	items := []models.OrderItem{{TicketTypeID: uuid.New(), Quantity: 2}}

	err := db.Transaction(func(tx *gorm.DB) error {
		minted, terr := svc.MintForOrder(ctx, tx, order, items)
		if terr != nil {
			return terr
		}
		for _, ticket := range minted {
			assert.Nil(t, ticket.AttendeeName)
		}
		return nil
	})
	require.NoError(t, err)
}

func seedTicket(t *testing.T, db *gorm.DB, ticket models.TicketInstance) models.TicketInstance {
	t.Helper()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Code == "" {
		code, err := GenerateCode()
		require.NoError(t, err)
		ticket.Code = code
	}
	if ticket.Status == "" {
		ticket.Status = enums.TicketStatusActive
	}
	if ticket.OrderID == uuid.Nil {
		ticket.OrderID = uuid.New()
	}
	if ticket.EventID == uuid.Nil {
		ticket.EventID = uuid.New()
	}
	if ticket.TicketTypeID == uuid.Nil {
		ticket.TicketTypeID = uuid.New()
	}
	if ticket.HolderID == uuid.Nil {
		ticket.HolderID = uuid.New()
	}
	require.NoError(t, db.Create(&ticket).Error)
	return ticket
}

func TestCheckInHappyPathAndDuplicate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	operator := uuid.New()

	ticket := seedTicket(t, db, models.TicketInstance{})

	gate := "Portao A"
	checked, err := svc.CheckIn(ctx, ticket.Code, operator, CheckInMeta{Location: &gate})
	require.NoError(t, err)
	assert.Equal(t, enums.TicketStatusCheckedIn, checked.Status)
	require.NotNil(t, checked.CheckedInAt)
	require.NotNil(t, checked.CheckedInBy)
	assert.Equal(t, operator, *checked.CheckedInBy)
	require.NotNil(t, checked.CheckedInLocation)
	assert.Equal(t, gate, *checked.CheckedInLocation)

	_, err = svc.CheckIn(ctx, ticket.Code, operator, CheckInMeta{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCheckInUnknownCode(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CheckIn(context.Background(), "TKT-NAOEXISTE0000000", uuid.New(), CheckInMeta{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCheckInCancelledTicket(t *testing.T) {
	svc, db := newService(t)

	ticket := seedTicket(t, db, models.TicketInstance{Status: enums.TicketStatusCancelled})

	_, err := svc.CheckIn(context.Background(), ticket.Code, uuid.New(), CheckInMeta{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransfer(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	from := uuid.New()
	to := uuid.New()
	ticket := seedTicket(t, db, models.TicketInstance{HolderID: from})

	name := "Novo Titular"
	moved, err := svc.Transfer(ctx, ticket.ID, from, to, &name)
	require.NoError(t, err)
	assert.Equal(t, to, moved.HolderID)
	require.NotNil(t, moved.TransferredFrom)
	assert.Equal(t, from, *moved.TransferredFrom)
	require.NotNil(t, moved.AttendeeName)
	assert.Equal(t, name, *moved.AttendeeName)

	// original holder lost the ticket
	_, err = svc.Transfer(ctx, ticket.ID, from, uuid.New(), nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestTransferCheckedInTicketRefused(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	from := uuid.New()
	ticket := seedTicket(t, db, models.TicketInstance{HolderID: from})

	_, err := svc.CheckIn(ctx, ticket.Code, uuid.New(), CheckInMeta{})
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, ticket.ID, from, uuid.New(), nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransferToSelfRejected(t *testing.T) {
	svc, _ := newService(t)
	buyer := uuid.New()

	_, err := svc.Transfer(context.Background(), uuid.New(), buyer, buyer, nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCancelForOrder(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	orderID := uuid.New()
	seedTicket(t, db, models.TicketInstance{OrderID: orderID})
	seedTicket(t, db, models.TicketInstance{OrderID: orderID})
	other := seedTicket(t, db, models.TicketInstance{})

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CancelForOrder(ctx, tx, orderID)
	})
	require.NoError(t, err)

	var cancelled int64
	require.NoError(t, db.Model(&models.TicketInstance{}).
		Where("order_id = ? AND status = ?", orderID, enums.TicketStatusCancelled).
		Count(&cancelled).Error)
	assert.Equal(t, int64(2), cancelled)

	var untouched models.TicketInstance
	require.NoError(t, db.First(&untouched, "id = ?", other.ID).Error)
	assert.Equal(t, enums.TicketStatusActive, untouched.Status)
}
