// Package auth carries the caller identity through a request and decides
// which actions that identity may perform.
//
// Authentication itself happens upstream: the gateway in front of the API
// verifies the caller and forwards the result in the X-User-* headers.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderUserID      = "X-User-ID"
	HeaderStaff       = "X-User-Staff"
	HeaderPermissions = "X-User-Permissions"
)

// PermissionViewHistory allows reading any customer's order history.
const PermissionViewHistory = "store.view_history"

var (
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	ErrForbidden       = errors.New("you do not have permission to perform this action")
)

type Identity struct {
	UserID      int64
	Staff       bool
	Permissions []string
}

func (i *Identity) Authenticated() bool {
	return i != nil && i.UserID > 0
}

func (i *Identity) IsStaff() bool {
	return i.Authenticated() && i.Staff
}

// HasPermission reports whether the identity holds perm. Staff hold every permission.
func (i *Identity) HasPermission(perm string) bool {
	if !i.Authenticated() {
		return false
	}
	if i.Staff {
		return true
	}
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, or nil for an anonymous request.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Middleware reads the forwarded identity headers. Requests without a valid
// user id continue as anonymous.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := identityFromHeaders(r.Header); id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromHeaders(h http.Header) *Identity {
	userID, err := strconv.ParseInt(h.Get(HeaderUserID), 10, 64)
	if err != nil || userID <= 0 {
		return nil
	}

	staff, _ := strconv.ParseBool(h.Get(HeaderStaff))

	var perms []string
	for _, p := range strings.Split(h.Get(HeaderPermissions), ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}

	return &Identity{UserID: userID, Staff: staff, Permissions: perms}
}
