package httpx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Identity headers populated by the upstream auth gateway.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderHomeLocation = "X-Home-Location"
)

// PrincipalFromHeaders parses the identity headers into a Principal.
func PrincipalFromHeaders(r *http.Request) (shared.Principal, error) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	if err != nil || userID <= 0 {
		return shared.Principal{}, fmt.Errorf("%w: missing user identity", shared.ErrForbidden)
	}
	role, err := shared.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", shared.ErrForbidden, err)
	}
	p := shared.Principal{UserID: userID, Role: role}
	if raw := r.Header.Get(HeaderHomeLocation); raw != "" {
		home, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return shared.Principal{}, fmt.Errorf("%w: bad home location", shared.ErrForbidden)
		}
		p.HomeLocationID = home
	}
	if role == shared.RoleBranchManager && p.HomeLocationID == 0 {
		return shared.Principal{}, fmt.Errorf("%w: branch manager without home location", shared.ErrForbidden)
	}
	return p, nil
}

// Identity is middleware that stores the header principal in the request
// context and rejects anonymous calls.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := PrincipalFromHeaders(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// CurrentPrincipal returns the principal installed by Identity.
func CurrentPrincipal(r *http.Request) (shared.Principal, error) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return shared.Principal{}, fmt.Errorf("%w: no principal", shared.ErrForbidden)
	}
	return p, nil
}

// RequireHQAdmin rejects callers whose role is not HQ_Admin.
func RequireHQAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := CurrentPrincipal(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		if p.Role != shared.RoleHQAdmin {
			Problem(w, http.StatusForbidden, "Forbidden", "HQ_Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
