package api

import (
	"net/http"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/store"
)

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionCreate); !ok {
		return
	}

	cart, err := store.CreateCart(r.Context(), h.db)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, cart)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionRead); !ok {
		return
	}

	id, err := cartID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := store.GetCart(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) deleteCart(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionDelete); !ok {
		return
	}

	id, err := cartID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteCart(r.Context(), h.db, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCartItems(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionRead); !ok {
		return
	}

	id, err := cartID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := store.ListCartItems(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getCartItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionRead); !ok {
		return
	}

	id, itemID, err := cartItemIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := store.GetCartItem(r.Context(), h.db, id, itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionUpdate); !ok {
		return
	}

	id, err := cartID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := store.AddCartItem(r.Context(), h.db, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionUpdate); !ok {
		return
	}

	id, itemID, err := cartItemIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.UpdateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := store.UpdateCartItem(r.Context(), h.db, id, itemID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteCartItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCart, auth.ActionUpdate); !ok {
		return
	}

	id, itemID, err := cartItemIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteCartItem(r.Context(), h.db, id, itemID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
