package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

func (h *Handler) productFilter(r *http.Request) (store.ProductFilter, error) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}

	if v := q.Get("collection_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			return filter, database.NewValidationError("collection_id", "Select a valid choice.", nil)
		}
		filter.CollectionID = id
	}

	var err error
	if filter.UnitPriceGT, err = priceParam(q.Get("unit_price__gt"), "unit_price__gt"); err != nil {
		return filter, err
	}
	if filter.UnitPriceLT, err = priceParam(q.Get("unit_price__lt"), "unit_price__lt"); err != nil {
		return filter, err
	}

	if !store.ValidProductOrdering(filter.Ordering) {
		return filter, database.NewValidationError("ordering", "Select a valid choice.", nil)
	}

	filter.Page, filter.PageSize, err = h.pageParams(r)
	return filter, err
}

func priceParam(v, param string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(v)
	if err != nil {
		return nil, database.NewValidationError(param, "Enter a number.", nil)
	}
	return &price, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceProduct, auth.ActionRead); !ok {
		return
	}

	filter, err := h.productFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := store.ListProducts(r.Context(), h.db, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if products, ok := page.Items.([]models.Product); ok {
		for i := range products {
			products[i].ApplyTax(h.cfg.TaxRate)
		}
	}

	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceProduct, auth.ActionRead); !ok {
		return
	}

	id, err := pathID(r, "product_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := store.GetProduct(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product.ApplyTax(h.cfg.TaxRate)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceProduct, auth.ActionCreate); !ok {
		return
	}

	var req store.CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := store.CreateProduct(r.Context(), h.db, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product.ApplyTax(h.cfg.TaxRate)
	h.logger.InfoContext(r.Context(), "product created", "product_id", product.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) replaceProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, true)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, false)
}

func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request, replace bool) {
	if _, ok := h.authorize(w, r, auth.ResourceProduct, auth.ActionUpdate); !ok {
		return
	}

	id, err := pathID(r, "product_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if replace {
		if err := req.Complete(); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	product, err := store.UpdateProduct(r.Context(), h.db, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product.ApplyTax(h.cfg.TaxRate)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceProduct, auth.ActionDelete); !ok {
		return
	}

	id, err := pathID(r, "product_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteProduct(r.Context(), h.db, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCollection, auth.ActionRead); !ok {
		return
	}

	collections, err := store.ListCollections(r.Context(), h.db)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, collections)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCollection, auth.ActionRead); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	collection, err := store.GetCollection(r.Context(), h.db, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, collection)
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCollection, auth.ActionCreate); !ok {
		return
	}

	var req store.CollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	collection, err := store.CreateCollection(r.Context(), h.db, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "collection created", "collection_id", collection.ID)
	h.writeJSON(w, http.StatusCreated, collection)
}

func (h *Handler) updateCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCollection, auth.ActionUpdate); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.CollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	collection, err := store.UpdateCollection(r.Context(), h.db, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, collection)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceCollection, auth.ActionDelete); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteCollection(r.Context(), h.db, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "collection deleted", "collection_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceReview, auth.ActionRead); !ok {
		return
	}

	productID, err := h.existingProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reviews, err := store.ListReviews(r.Context(), h.db, productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reviews)
}

func (h *Handler) getReview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceReview, auth.ActionRead); !ok {
		return
	}

	productID, id, err := reviewIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	review, err := store.GetReview(r.Context(), h.db, productID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceReview, auth.ActionCreate); !ok {
		return
	}

	productID, err := pathID(r, "product_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req store.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	review, err := store.CreateReview(r.Context(), h.db, productID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) replaceReview(w http.ResponseWriter, r *http.Request) {
	var req store.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.saveReview(w, r, store.UpdateReviewRequest{Name: &req.Name, Description: &req.Description})
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) {
	var req store.UpdateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.saveReview(w, r, req)
}

func (h *Handler) saveReview(w http.ResponseWriter, r *http.Request, req store.UpdateReviewRequest) {
	if _, ok := h.authorize(w, r, auth.ResourceReview, auth.ActionUpdate); !ok {
		return
	}

	productID, id, err := reviewIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	review, err := store.UpdateReview(r.Context(), h.db, productID, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ResourceReview, auth.ActionDelete); !ok {
		return
	}

	productID, id, err := reviewIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := store.DeleteReview(r.Context(), h.db, productID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// existingProduct resolves the product in the path, so listing the reviews
// of a missing product is a 404 rather than an empty list.
func (h *Handler) existingProduct(r *http.Request) (int64, error) {
	id, err := pathID(r, "product_id")
	if err != nil {
		return 0, err
	}
	if _, err := store.GetProduct(r.Context(), h.db, id); err != nil {
		return 0, err
	}
	return id, nil
}

func reviewIDs(r *http.Request) (productID, id int64, err error) {
	if productID, err = pathID(r, "product_id"); err != nil {
		return 0, 0, err
	}
	if id, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	return productID, id, nil
}
