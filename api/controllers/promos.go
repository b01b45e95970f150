package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/api/validators"
	"github.com/ingressolab/ingresso-backend/internal/events"
	"github.com/ingressolab/ingresso-backend/internal/promos"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type createPromoRequest struct {
	Code            string      `json:"code" validate:"required,min=3,max=40"`
	DiscountType    string      `json:"discountType" validate:"required,oneof=percent fixed"`
	DiscountValue   string      `json:"discountValue" validate:"required"`
	MaxUses         int         `json:"maxUses" validate:"gte=0"`
	MaxUsesPerBuyer int         `json:"maxUsesPerBuyer" validate:"gte=0"`
	MinSubtotal     int64       `json:"minSubtotalCents" validate:"gte=0"`
	MaxDiscount     int64       `json:"maxDiscountCents" validate:"gte=0"`
	TicketTypeIDs   []uuid.UUID `json:"ticketTypeIds,omitempty"`
	StartsAt        *time.Time  `json:"startsAt,omitempty"`
	EndsAt          *time.Time  `json:"endsAt,omitempty"`
}

// ownedEventID resolves the eventId path param and verifies the caller owns
// the event. Foreign events read as not found so ownership cannot be
// enumerated.
func ownedEventID(r *http.Request, eventSvc events.Service, organizerID uuid.UUID) (uuid.UUID, error) {
	eventID, err := pathUUID(r, "eventId")
	if err != nil {
		return uuid.Nil, err
	}
	event, err := eventSvc.Get(r.Context(), eventID)
	if err != nil {
		return uuid.Nil, err
	}
	if event.OrganizerID != organizerID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event.ID, nil
}

// PromoCreate registers a discount code on an owned event.
func PromoCreate(eventSvc events.Service, repo promos.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := ownedEventID(r, eventSvc, organizerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input createPromoRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParsePromoDiscountType(input.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		discountValue, err := decimal.NewFromString(input.DiscountValue)
		if err != nil || discountValue.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount value"))
			return
		}
		if discountType == enums.PromoDiscountPercent && discountValue.GreaterThan(decimal.NewFromInt(100)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "percent discount cannot exceed 100"))
			return
		}
		if input.StartsAt != nil && input.EndsAt != nil && input.EndsAt.Before(*input.StartsAt) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "endsAt must come after startsAt"))
			return
		}

		promo := &models.PromoCode{
			EventID:          eventID,
			Code:             input.Code,
			DiscountType:     discountType,
			DiscountValue:    discountValue,
			MaxUses:          input.MaxUses,
			MaxUsesPerBuyer:  input.MaxUsesPerBuyer,
			MinSubtotal:      input.MinSubtotal,
			MaxDiscountCents: input.MaxDiscount,
			StartsAt:         input.StartsAt,
			EndsAt:           input.EndsAt,
			Active:           true,
		}
		if len(input.TicketTypeIDs) > 0 {
			raw, err := json.Marshal(input.TicketTypeIDs)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding ticket type allow-list"))
				return
			}
			promo.TicketTypeIDs = raw
		}
		created, err := repo.Create(r.Context(), promo)
		if err != nil {
			if db.IsUniqueViolation(err, "ux_promo_codes_event_code") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "promo code already exists for this event"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create promo code"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// PromoList returns every code on an owned event, including inactive ones.
func PromoList(eventSvc events.Service, repo promos.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := ownedEventID(r, eventSvc, organizerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := repo.ListByEvent(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list promo codes"))
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// PromoDeactivate turns a code off while keeping its redemption history.
func PromoDeactivate(eventSvc events.Service, repo promos.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := ownedEventID(r, eventSvc, organizerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promoID, err := pathUUID(r, "promoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ok, err := repo.Deactivate(r.Context(), eventID, promoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate promo code"))
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"deactivated": true})
	}
}
