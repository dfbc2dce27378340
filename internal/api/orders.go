package api

import (
	"context"
	"net/http"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/telemetry"
)

// orderScope limits non-staff callers to their own orders.
func (h *Handler) orderScope(ctx context.Context, id *auth.Identity) (store.OrderScope, error) {
	if id.IsStaff() {
		return store.AllOrders(), nil
	}

	customer, err := store.GetOrCreateCustomer(ctx, h.db, id.UserID)
	if err != nil {
		return store.OrderScope{}, err
	}
	return store.CustomerOrders(customer.ID), nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.ResourceOrder, auth.ActionRead)
	if !ok {
		return
	}

	cursor, limit, err := h.cursorParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	scope, err := h.orderScope(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := store.ListOrders(r.Context(), h.db, scope, cursor, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.ResourceOrder, auth.ActionRead)
	if !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	scope, err := h.orderScope(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := store.GetOrder(r.Context(), h.db, scope, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// placeOrder checks out a cart. The order-placed event is published only
// after the checkout transaction commits; a failed publish is logged and
// does not fail the request.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.ResourceOrder, auth.ActionCreate)
	if !ok {
		return
	}

	var req store.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	order, err := store.Checkout(r.Context(), h.db, id.UserID, req)
	if err != nil {
		outcome := telemetry.OutcomeFailed
		if status, _ := translateError(err); status < http.StatusInternalServerError {
			outcome = telemetry.OutcomeRejected
		}
		h.metrics.Record(r.Context(), outcome, 0, time.Since(start))
		h.writeError(w, r, err)
		return
	}
	h.metrics.Record(r.Context(), telemetry.OutcomePlaced, len(order.Items), time.Since(start))

	if h.publisher != nil {
		if err := h.publisher.PublishOrderPlaced(r.Context(), events.NewOrderPlaced(id.UserID, order)); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.InfoContext(r.Context(), "order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"items", len(order.Items),
	)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceOrder, auth.ActionUpdate); !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.UpdateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := store.UpdatePaymentStatus(r.Context(), h.db, orderID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "order payment status updated", "order_id", order.ID, "payment_status", order.PaymentStatus)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceOrder, auth.ActionDelete); !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteOrder(r.Context(), h.db, orderID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "order deleted", "order_id", orderID)
	w.WriteHeader(http.StatusNoContent)
}
