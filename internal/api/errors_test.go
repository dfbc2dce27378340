package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", database.NewValidationError("quantity", "too small", nil), http.StatusBadRequest, codeValidation},
		{"validation wrapping not found", database.NewValidationError("cart_id", "missing", database.ErrCartNotFound), http.StatusBadRequest, codeValidation},
		{"not found", database.ErrOrderNotFound, http.StatusNotFound, codeNotFound},
		{"wrapped not found", fmt.Errorf("get cart: %w", database.ErrCartNotFound), http.StatusNotFound, codeNotFound},
		{"product in use", database.ErrProductInUse, http.StatusConflict, codeConflict},
		{"collection in use", database.ErrCollectionInUse, http.StatusConflict, codeConflict},
		{"unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, codeForbidden},
		{"lock timeout", database.ErrLockTimeout, http.StatusServiceUnavailable, codeUnavailable},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := translateError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestTranslateErrorHidesInternalDetail(t *testing.T) {
	_, body := translateError(errors.New("pq: password authentication failed"))
	assert.NotContains(t, body.Message, "password")
}

func TestTranslateErrorCarriesField(t *testing.T) {
	_, body := translateError(database.NewValidationError("product_id", "No product with the given ID was found.", database.ErrProductNotFound))
	assert.Equal(t, map[string]string{"product_id": "No product with the given ID was found."}, body.Fields)
}
