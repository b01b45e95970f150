package inventory

import (
	"testing"
	"time"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func TestCheckPurchasable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name     string
		tt       models.TicketType
		qty      int
		wantCode pkgerrors.Code
	}{
		{
			name: "inside window and bounds",
			tt:   models.TicketType{Name: "Pista", SalesStartAt: &before, SalesEndAt: &after, MinPerOrder: 1, MaxPerOrder: 4},
			qty:  2,
		},
		{
			name:     "sales not started",
			tt:       models.TicketType{Name: "Pista", SalesStartAt: &after},
			qty:      1,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "sales ended",
			tt:       models.TicketType{Name: "Pista", SalesEndAt: &before},
			qty:      1,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name: "sale at the start instant",
			tt:   models.TicketType{Name: "Pista", SalesStartAt: &now},
			qty:  1,
		},
		{
			name:     "sale at the end instant",
			tt:       models.TicketType{Name: "Pista", SalesEndAt: &now},
			qty:      1,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "hidden tier",
			tt:       models.TicketType{Name: "Camarote", Hidden: true},
			qty:      1,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "below minimum",
			tt:       models.TicketType{Name: "Mesa", MinPerOrder: 4},
			qty:      2,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "above maximum",
			tt:       models.TicketType{Name: "Pista", MaxPerOrder: 4},
			qty:      5,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name: "no window set",
			tt:   models.TicketType{Name: "Pista"},
			qty:  1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPurchasable(tc.tt, tc.qty, now)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}
