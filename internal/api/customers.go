package api

import (
	"encoding/json"
	"net/http"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/store"
)

// customerUpdate accepts a customer as returned by GET, so the read-only
// id and user_id may be echoed back. They are ignored.
type customerUpdate struct {
	store.UpdateCustomerRequest
	ID     json.RawMessage `json:"id"`
	UserID json.RawMessage `json:"user_id"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCustomer, auth.ActionRead); !ok {
		return
	}

	page, pageSize, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customers, err := store.ListCustomers(r.Context(), h.db, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCustomer, auth.ActionRead); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCustomer, auth.ActionUpdate); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req customerUpdate
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := store.UpdateCustomer(r.Context(), h.db, id, req.UpdateCustomerRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

// getMe returns the caller's customer profile, creating it on first access.
func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.ResourceProfile, auth.ActionRead)
	if !ok {
		return
	}

	customer, err := store.GetOrCreateCustomer(r.Context(), h.db, id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.ResourceProfile, auth.ActionUpdate)
	if !ok {
		return
	}

	var req customerUpdate
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := store.GetOrCreateCustomer(r.Context(), h.db, id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err = store.UpdateCustomer(r.Context(), h.db, customer.ID, req.UpdateCustomerRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) customerHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceHistory, auth.ActionRead); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cursor, limit, err := h.cursorParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := store.ListOrders(r.Context(), h.db, store.CustomerOrders(customer.ID), cursor, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}
