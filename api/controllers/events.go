package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/api/validators"
	"github.com/ingressolab/ingresso-backend/internal/events"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

// PublicEventList returns published events for browsing.
func PublicEventList(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "events service unavailable"))
			return
		}
		list, err := svc.ListPublished(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// PublicEventDetail returns one published event with its ticket types.
func PublicEventDetail(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "events service unavailable"))
			return
		}
		eventID, err := pathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.GetPublished(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		types, err := svc.ListSellableTicketTypes(r.Context(), event.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"event":        event,
			"ticket_types": types,
		})
	}
}

// OrganizerEventCreate creates a draft event for the caller.
func OrganizerEventCreate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input events.CreateEventInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Create(r.Context(), organizerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, event)
	}
}

// OrganizerEventList returns every event the caller owns.
func OrganizerEventList(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMine(r.Context(), organizerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrganizerEventUpdate applies a partial edit to an owned event.
func OrganizerEventUpdate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := pathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input events.UpdateEventInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Update(r.Context(), organizerID, eventID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

// OrganizerEventPublish puts an event on sale.
func OrganizerEventPublish(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return eventTransition(logg, svc.Publish)
}

// OrganizerEventHide takes an event off sale.
func OrganizerEventHide(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return eventTransition(logg, svc.Hide)
}

func eventTransition(logg *logger.Logger, apply func(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := pathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := apply(r.Context(), organizerID, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

// OrganizerTicketTypeCreate adds a tier to an owned event.
func OrganizerTicketTypeCreate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := pathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input events.CreateTicketTypeInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tt, err := svc.AddTicketType(r.Context(), organizerID, eventID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tt)
	}
}

type ticketTypeVisibilityRequest struct {
	Hidden *bool `json:"hidden" validate:"required"`
}

// OrganizerTicketTypeVisibility hides a tier from sale or puts it back.
func OrganizerTicketTypeVisibility(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketTypeID, err := pathUUID(r, "ticketTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input ticketTypeVisibilityRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tt, err := svc.SetTicketTypeHidden(r.Context(), organizerID, ticketTypeID, *input.Hidden)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tt)
	}
}

// OrganizerTicketTypeResize adjusts a tier's inventory pools.
func OrganizerTicketTypeResize(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketTypeID, err := pathUUID(r, "ticketTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input events.ResizeTicketTypeInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tt, err := svc.ResizeTicketType(r.Context(), organizerID, ticketTypeID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tt)
	}
}
