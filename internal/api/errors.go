package api

import (
	"errors"
	"net/http"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
)

const (
	codeValidation      = "validation_error"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeUnauthenticated = "not_authenticated"
	codeForbidden       = "permission_denied"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

var errNotFound = errors.New("not found")

var notFoundErrors = []error{
	errNotFound,
	database.ErrProductNotFound,
	database.ErrCollectionNotFound,
	database.ErrReviewNotFound,
	database.ErrCartNotFound,
	database.ErrCartItemNotFound,
	database.ErrCustomerNotFound,
	database.ErrOrderNotFound,
}

var conflictErrors = []error{
	database.ErrProductInUse,
	database.ErrCollectionInUse,
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// translateError maps a store or auth error onto a status and response body.
// Validation errors are checked first: they may wrap a not-found sentinel
// that refers to a request field rather than the addressed resource.
func translateError(err error) (int, errorResponse) {
	var vErr *database.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorResponse{
			Code:    codeValidation,
			Message: "Invalid input.",
			Fields:  map[string]string{vErr.Field: vErr.Message},
		}
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Code: codeUnauthenticated, Message: err.Error()}
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, errorResponse{Code: codeForbidden, Message: err.Error()}
	case matchAny(err, notFoundErrors):
		return http.StatusNotFound, errorResponse{Code: codeNotFound, Message: "Not found."}
	case matchAny(err, conflictErrors):
		return http.StatusConflict, errorResponse{Code: codeConflict, Message: conflictMessage(err)}
	case errors.Is(err, database.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorResponse{Code: codeUnavailable, Message: "The request could not be completed, try again."}
	}

	return http.StatusInternalServerError, errorResponse{Code: codeInternal, Message: "Internal server error."}
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, database.ErrProductInUse):
		return "Product cannot be deleted because it is associated with an order item."
	case errors.Is(err, database.ErrCollectionInUse):
		return "Collection cannot be deleted because it includes one or more products."
	}
	return err.Error()
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := translateError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	h.writeJSON(w, status, body)
}
