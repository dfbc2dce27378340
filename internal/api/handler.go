// Package api exposes the storefront over HTTP.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/telemetry"
)

// OrderPublisher announces placed orders to downstream consumers.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, event events.OrderPlaced) error
}

type Handler struct {
	db        *sql.DB
	logger    *slog.Logger
	cfg       config.StoreConfig
	publisher OrderPublisher
	metrics   *telemetry.CheckoutMetrics
	allow     func(id *auth.Identity, resource auth.Resource, action auth.Action) error
}

// NewHandler wires the HTTP handlers. publisher and metrics may be nil.
func NewHandler(db *sql.DB, logger *slog.Logger, cfg config.StoreConfig, publisher OrderPublisher, metrics *telemetry.CheckoutMetrics) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		cfg:       cfg,
		publisher: publisher,
		metrics:   metrics,
		allow:     auth.Allow,
	}
}

// Routes builds the router. metricsHandler is mounted at /metrics when non-nil.
func (h *Handler) Routes(metricsHandler http.Handler) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(tagRoute, h.logRequests, auth.Middleware)

	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	product := api.PathPrefix("/products/{product_id:[0-9]+}").Subrouter()
	product.HandleFunc("", h.getProduct).Methods(http.MethodGet)
	product.HandleFunc("", h.replaceProduct).Methods(http.MethodPut)
	product.HandleFunc("", h.updateProduct).Methods(http.MethodPatch)
	product.HandleFunc("", h.deleteProduct).Methods(http.MethodDelete)
	product.HandleFunc("/reviews", h.listReviews).Methods(http.MethodGet)
	product.HandleFunc("/reviews", h.createReview).Methods(http.MethodPost)
	product.HandleFunc("/reviews/{id:[0-9]+}", h.getReview).Methods(http.MethodGet)
	product.HandleFunc("/reviews/{id:[0-9]+}", h.replaceReview).Methods(http.MethodPut)
	product.HandleFunc("/reviews/{id:[0-9]+}", h.updateReview).Methods(http.MethodPatch)
	product.HandleFunc("/reviews/{id:[0-9]+}", h.deleteReview).Methods(http.MethodDelete)

	api.HandleFunc("/collections", h.listCollections).Methods(http.MethodGet)
	api.HandleFunc("/collections", h.createCollection).Methods(http.MethodPost)
	api.HandleFunc("/collections/{id:[0-9]+}", h.getCollection).Methods(http.MethodGet)
	api.HandleFunc("/collections/{id:[0-9]+}", h.updateCollection).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/collections/{id:[0-9]+}", h.deleteCollection).Methods(http.MethodDelete)

	api.HandleFunc("/carts", h.createCart).Methods(http.MethodPost)
	cart := api.PathPrefix("/carts/{cart_id}").Subrouter()
	cart.HandleFunc("", h.getCart).Methods(http.MethodGet)
	cart.HandleFunc("", h.deleteCart).Methods(http.MethodDelete)
	cart.HandleFunc("/items", h.listCartItems).Methods(http.MethodGet)
	cart.HandleFunc("/items", h.addCartItem).Methods(http.MethodPost)
	cart.HandleFunc("/items/{id:[0-9]+}", h.getCartItem).Methods(http.MethodGet)
	cart.HandleFunc("/items/{id:[0-9]+}", h.updateCartItem).Methods(http.MethodPatch)
	cart.HandleFunc("/items/{id:[0-9]+}", h.deleteCartItem).Methods(http.MethodDelete)

	api.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers/me", h.getMe).Methods(http.MethodGet)
	api.HandleFunc("/customers/me", h.updateMe).Methods(http.MethodPut)
	api.HandleFunc("/customers/{id:[0-9]+}", h.getCustomer).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id:[0-9]+}", h.updateCustomer).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/customers/{id:[0-9]+}/history", h.customerHistory).Methods(http.MethodGet)

	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", h.updateOrder).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id:[0-9]+}", h.deleteOrder).Methods(http.MethodDelete)

	return otelhttp.NewHandler(r, "storefront-api")
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, errorResponse{Code: codeNotFound, Message: "Not found."})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Code:    "method_not_allowed",
		Message: fmt.Sprintf("Method %q not allowed.", r.Method),
	})
}

// authorize checks the caller against the policy and writes the error
// response when denied.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, resource auth.Resource, action auth.Action) (*auth.Identity, bool) {
	id := auth.FromContext(r.Context())
	if err := h.allow(id, resource, action); err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

var errInvalidBody = errors.New("invalid request body")

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return database.NewValidationError("body", "Request body is required.", errInvalidBody)
		}
		return database.NewValidationError("body", err.Error(), errInvalidBody)
	}
	return nil
}

// pathID parses a numeric path variable. The routes constrain these to
// digits, so a failure means the value overflowed.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := parseID(mux.Vars(r)[name])
	if err != nil {
		return 0, errNotFound
	}
	return id, nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", v)
	}
	return id, nil
}

// cartID parses the cart path variable. Malformed ids cannot name a cart.
func cartID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["cart_id"])
	if err != nil {
		return uuid.Nil, database.ErrCartNotFound
	}
	return id, nil
}

func cartItemIDs(r *http.Request) (uuid.UUID, int64, error) {
	id, err := cartID(r)
	if err != nil {
		return uuid.Nil, 0, err
	}
	itemID, err := pathID(r, "id")
	if err != nil {
		return uuid.Nil, 0, err
	}
	return id, itemID, nil
}

func (h *Handler) pageParams(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()

	page = 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, database.NewValidationError("page", "Invalid page.", nil)
		}
	}

	pageSize = h.cfg.DefaultPageSize
	if v := q.Get("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 {
			return 0, 0, database.NewValidationError("page_size", "A valid integer is required.", nil)
		}
	}
	if pageSize > h.cfg.MaxPageSize {
		pageSize = h.cfg.MaxPageSize
	}

	return page, pageSize, nil
}

// cursorParams reads the keyset pagination parameters used by order lists.
func (h *Handler) cursorParams(r *http.Request) (cursor string, limit int, err error) {
	q := r.URL.Query()

	limit = h.cfg.DefaultPageSize
	if v := q.Get("page_size"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return "", 0, database.NewValidationError("page_size", "A valid integer is required.", nil)
		}
	}
	if limit > h.cfg.MaxPageSize {
		limit = h.cfg.MaxPageSize
	}

	return q.Get("cursor"), limit, nil
}
