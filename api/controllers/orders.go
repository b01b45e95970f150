package controllers

import (
	"net/http"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type orderDetailResponse struct {
	Order   *models.Order      `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Payment *models.Payment    `json:"payment,omitempty"`
}

// OrderList returns the caller's orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one of the caller's orders with its items and the
// active payment, when one exists.
func OrderDetail(orderSvc orders.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orderSvc.GetForBuyer(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := orderSvc.Items(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := orderDetailResponse{Order: order, Items: items}
		payment, err := paymentSvc.GetActiveForOrder(r.Context(), order.ID)
		if err == nil {
			result.Payment = payment
		} else if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// OrderCancel voids a pending order and its open payment.
func OrderCancel(orderSvc orders.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := orderSvc.Cancel(ctx, orderID, buyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := paymentSvc.CancelActiveForOrder(ctx, order.ID); err != nil {
			// The order is already cancelled locally. Leave the gateway
			// charge for the reconciliation sweep rather than failing the
			// buyer's request.
			logg.Error(ctx, "order.cancel.gateway_void_failed", err)
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderPaymentSync pulls the gateway's view of the order's payment and
// applies any status change.
func OrderPaymentSync(orderSvc orders.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := orderSvc.GetForBuyer(r.Context(), orderID, buyerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		payment, err := paymentSvc.Sync(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
