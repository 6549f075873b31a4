package audit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
)

func newTestRouter(repo *stubRepo) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	h.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(httpx.Identity)
	h.MountRoutes(r)
	return r
}

func auditRequest(path, role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(httpx.HeaderUserID, "9")
	req.Header.Set(httpx.HeaderUserRole, role)
	req.Header.Set(httpx.HeaderHomeLocation, "3")
	return req
}

func TestHandlerTimelineDefaults(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(1)}
	rr := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(rr, auditRequest("/audit/?entity=stock&actor_id=7", "HQ_Admin"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)
	require.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
	require.Equal(t, int64(7), repo.lastFilter.ActorID)
	require.Equal(t, "stock", repo.lastFilter.Entity)
	require.Contains(t, rr.Body.String(), `"has_next":false`)
}

func TestHandlerRejectsBranchManagers(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(&stubRepo{}).ServeHTTP(rr, auditRequest("/audit/", "Branch_Manager"))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlerValidatesFilters(t *testing.T) {
	router := newTestRouter(&stubRepo{})
	for _, path := range []string{
		"/audit/?from=2026-03-11&to=2026-03-01",
		"/audit/?from=2025-01-01&to=2026-03-01",
		"/audit/?to=03-01-2026",
		"/audit/?page=0",
		"/audit/?actor_id=abc",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, auditRequest(path, "HQ_Admin"))
		require.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestHandlerExportCSV(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(&stubRepo{rows: sampleRows(2)}).ServeHTTP(rr, auditRequest("/audit/export.csv", "HQ_Admin"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "id,at,actor_id,action,entity,entity_id,meta\n")
}
