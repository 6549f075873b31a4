package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

func TestIdentityMiddleware(t *testing.T) {
	var got shared.Principal
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := CurrentPrincipal(r)
		require.NoError(t, err)
		got = p
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "7")
	req.Header.Set(HeaderUserRole, "Branch_Manager")
	req.Header.Set(HeaderHomeLocation, "2")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, shared.Principal{UserID: 7, Role: shared.RoleBranchManager, HomeLocationID: 2}, got)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, anon)
	require.Equal(t, http.StatusForbidden, rr.Code)

	noHome := httptest.NewRequest(http.MethodGet, "/", nil)
	noHome.Header.Set(HeaderUserID, "7")
	noHome.Header.Set(HeaderUserRole, "Branch_Manager")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, noHome)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireHQAdmin(t *testing.T) {
	h := RequireHQAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(p *shared.Principal) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if p != nil {
			req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *p))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusNoContent, call(&shared.Principal{UserID: 1, Role: shared.RoleHQAdmin}))
	require.Equal(t, http.StatusForbidden, call(&shared.Principal{UserID: 2, Role: shared.RoleBranchManager, HomeLocationID: 2}))
	require.Equal(t, http.StatusForbidden, call(nil))
}
