package fx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	h := NewHandler(quietLogger(), NewResolver(repo, nil, quietLogger()))
	r := chi.NewRouter()
	r.Use(httpx.Identity)
	h.MountRoutes(r)
	return r
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set(httpx.HeaderUserID, "1")
	req.Header.Set(httpx.HeaderUserRole, "HQ_Admin")
	return req
}

func TestHandlerResolve(t *testing.T) {
	repo := &memoryRepo{rates: []ExchangeRate{
		{FromCurrency: "KRW", ToCurrency: "VND", EffectiveDate: day("2024-01-01"), Rate: decimal.RequireFromString("18.2")},
	}}
	router := newTestRouter(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asAdmin(httptest.NewRequest(http.MethodGet, "/fx/resolve?from=KRW&to=VND&date=2024-02-10", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var body resolveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "18.2", body.Rate)
	require.Equal(t, "2024-01-01", body.EffectiveDate)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asAdmin(httptest.NewRequest(http.MethodGet, "/fx/resolve?from=VND&to=KRW&date=2024-02-10", nil)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "rate_not_found")
}

func TestHandlerUpsertRequiresHQAdmin(t *testing.T) {
	router := newTestRouter(&memoryRepo{})
	body := `{"from_currency":"KRW","to_currency":"VND","effective_date":"2024-01-01","rate":"18.2"}`

	req := httptest.NewRequest(http.MethodPost, "/fx/rates", strings.NewReader(body))
	req.Header.Set(httpx.HeaderUserID, "5")
	req.Header.Set(httpx.HeaderUserRole, "Branch_Manager")
	req.Header.Set(httpx.HeaderHomeLocation, "2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/fx/rates", strings.NewReader(body))))
	require.Equal(t, http.StatusCreated, rr.Code)
}
