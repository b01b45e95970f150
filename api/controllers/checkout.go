package controllers

import (
	"net/http"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/api/validators"
	"github.com/ingressolab/ingresso-backend/internal/buyers"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type checkoutResponse struct {
	Order   *models.Order   `json:"order"`
	Payment *models.Payment `json:"payment,omitempty"`
}

// Checkout reserves seats, creates the order and, for paid orders, opens a
// payment with the gateway. Free orders come back already confirmed.
func Checkout(buyerSvc buyers.Service, orderSvc orders.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if buyerSvc == nil || orderSvc == nil || paymentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input orders.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyer, err := buyerSvc.GetByID(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithBuyerID(r.Context(), buyerID.String())
		order, err := orderSvc.Checkout(ctx, *buyer, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result := checkoutResponse{Order: order}
		if !order.IsFree() {
			payment, err := paymentSvc.CreateForOrder(logg.WithOrderID(ctx, order.ID.String()), order.ID)
			if err != nil {
				// The order stays pending. The buyer can retry via the
				// payment sync endpoint or let the expiry sweep reclaim it.
				responses.WriteError(ctx, logg, w, err)
				return
			}
			result.Payment = payment
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
