package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/api/validators"
	"github.com/ingressolab/ingresso-backend/internal/tickets"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type checkInRequest struct {
	Code     string  `json:"code" validate:"required"`
	Location *string `json:"location,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type transferRequest struct {
	ToBuyerID    uuid.UUID `json:"toBuyerId" validate:"required"`
	AttendeeName *string   `json:"attendeeName,omitempty"`
}

// TicketWallet lists the tickets the caller currently holds.
func TicketWallet(svc *tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByHolder(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// TicketCheckIn consumes a ticket code at the door.
func TicketCheckIn(svc *tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operatorID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input checkInRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticket, err := svc.CheckIn(r.Context(), input.Code, operatorID, tickets.CheckInMeta{
			Location: input.Location,
			Notes:    input.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}

// TicketTransfer moves a ticket from the caller to another account.
func TicketTransfer(svc *tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketID, err := pathUUID(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input transferRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticket, err := svc.Transfer(r.Context(), ticketID, buyerID, input.ToBuyerID, input.AttendeeName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}
