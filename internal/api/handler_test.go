package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/models"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.OrderPlaced
	err    error
}

func (p *fakePublisher) PublishOrderPlaced(ctx context.Context, event events.OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type testServer struct {
	handler   http.Handler
	mock      sqlmock.Sqlmock
	publisher *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	publisher := &fakePublisher{}
	cfg := config.StoreConfig{
		TaxRate:         decimal.RequireFromString("0.10"),
		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHandler(db, logger, cfg, publisher, nil)
	return &testServer{handler: h.Routes(nil), mock: mock, publisher: publisher}
}

type caller struct {
	userID      string
	staff       bool
	permissions string
}

var (
	anonymous = caller{}
	customer  = caller{userID: "42"}
	staff     = caller{userID: "1", staff: true}
)

func (s *testServer) do(t *testing.T, as caller, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as.userID != "" {
		req.Header.Set(auth.HeaderUserID, as.userID)
	}
	if as.staff {
		req.Header.Set(auth.HeaderStaff, "true")
	}
	if as.permissions != "" {
		req.Header.Set(auth.HeaderPermissions, as.permissions)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

var productColumns = []string{"id", "title", "description", "slug", "inventory", "unit_price", "collection_id", "last_update"}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, anonymous, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, anonymous, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decodeError(t, rec).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, staff, http.MethodPut, "/orders", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListProductsAppliesTax(t *testing.T) {
	s := newTestServer(t)

	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products p`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.mock.ExpectQuery(`ORDER BY p.unit_price ASC, p.id ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow(int64(1), "Coffee", "", "coffee", 3, "10.00", int64(4), time.Now()))

	rec := s.do(t, anonymous, http.MethodGet, "/products?ordering=unit_price", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []models.Product `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].PriceWithTax.Equal(decimal.RequireFromString("11.00")), "price_with_tax = %s", page.Items[0].PriceWithTax)
	assert.Equal(t, int64(1), page.Total)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestListProductsRejectsBadFilters(t *testing.T) {
	tests := []struct {
		query string
		field string
	}{
		{"ordering=price", "ordering"},
		{"unit_price__gt=cheap", "unit_price__gt"},
		{"collection_id=x", "collection_id"},
		{"page=0", "page"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, anonymous, http.MethodGet, "/products?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, codeValidation, body.Code)
			assert.Contains(t, body.Fields, tt.field)
		})
	}
}

func TestCatalogWritesRequireStaff(t *testing.T) {
	s := newTestServer(t)
	body := `{"title":"Coffee","slug":"coffee","inventory":1,"unit_price":"5.00","collection":1}`

	rec := s.do(t, anonymous, http.MethodPost, "/products", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, customer, http.MethodPost, "/products", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, decodeError(t, rec).Code)

	rec = s.do(t, customer, http.MethodDelete, "/collections/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestCatalogReadsConsultPolicy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var consulted []auth.Resource
	h := NewHandler(db, slog.New(slog.NewTextHandler(io.Discard, nil)), config.StoreConfig{}, nil, nil)
	h.allow = func(id *auth.Identity, resource auth.Resource, action auth.Action) error {
		assert.Equal(t, auth.ActionRead, action)
		consulted = append(consulted, resource)
		return auth.ErrForbidden
	}
	s := &testServer{handler: h.Routes(nil), mock: mock}

	paths := map[string]auth.Resource{
		"/products":             auth.ResourceProduct,
		"/products/1":           auth.ResourceProduct,
		"/collections":          auth.ResourceCollection,
		"/collections/1":        auth.ResourceCollection,
		"/products/1/reviews":   auth.ResourceReview,
		"/products/1/reviews/2": auth.ResourceReview,
	}
	for path, resource := range paths {
		consulted = nil
		rec := s.do(t, customer, http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, []auth.Resource{resource}, consulted, path)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductInUseIsConflict(t *testing.T) {
	s := newTestServer(t)

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT id FROM products WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM order_items`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.mock.ExpectRollback()

	rec := s.do(t, staff, http.MethodDelete, "/products/3", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeConflict, decodeError(t, rec).Code)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestListReviewsOfMissingProduct(t *testing.T) {
	s := newTestServer(t)

	s.mock.ExpectQuery(`FROM products p WHERE p.id = \$1`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(productColumns))

	rec := s.do(t, anonymous, http.MethodGet, "/products/8/reviews", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProductRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, staff, http.MethodPost, "/products", `{"title":"Coffee","price":"5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "body")
}

func TestMalformedCartIDIsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, anonymous, http.MethodGet, "/carts/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, anonymous, http.MethodPost, "/carts/not-a-uuid/items", `{"product_id":1,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCartItemUnknownProduct(t *testing.T) {
	s := newTestServer(t)
	cartID := uuid.New()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT id FROM carts WHERE id = \$1 FOR SHARE`).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(cartID.String()))
	s.mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM products WHERE id = \$1\)`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	s.mock.ExpectRollback()

	rec := s.do(t, anonymous, http.MethodPost, "/carts/"+cartID.String()+"/items", `{"product_id":99,"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "product_id")
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestGetCartReturnsTotal(t *testing.T) {
	s := newTestServer(t)
	cartID := uuid.New()

	s.mock.ExpectQuery(`SELECT created_at FROM carts WHERE id = \$1`).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	s.mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "product_id", "title", "unit_price"}).
			AddRow(int64(1), 2, int64(10), "Coffee", "5.00").
			AddRow(int64(2), 1, int64(11), "Tea", "3.00"))

	rec := s.do(t, anonymous, http.MethodGet, "/carts/"+cartID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	assert.Equal(t, cartID, cart.ID)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("13.00")), "total = %s", cart.TotalPrice)
	require.Len(t, cart.Items, 2)
	assert.True(t, cart.Items[0].TotalPrice.Equal(decimal.RequireFromString("10.00")))
}
