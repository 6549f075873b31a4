package transfers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// ScopeProvider computes the locations a principal may touch.
type ScopeProvider interface {
	Scope(ctx context.Context, p shared.Principal) (locations.Scope, error)
}

// Handler exposes transfer request endpoints. Requests are raised by the
// destination and decided by whoever manages the source.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	scopes    ScopeProvider
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, scopes ScopeProvider) *Handler {
	return &Handler{logger: logger, service: service, scopes: scopes, validator: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transfers", h.handleList)
	r.Post("/transfers", h.handleCreate)
	r.Get("/transfers/{id}", h.handleGet)
	r.Get("/transfers/{id}/history", h.handleHistory)
	r.Post("/transfers/{id}/approve", h.handleApprove)
	r.Post("/transfers/{id}/reject", h.handleReject)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	if p.Role != shared.RoleHQAdmin {
		filter.LocationIDs = scope.IDs()
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	reqs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transfer requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transfers": reqs})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := scope.Require(in.ToLocationID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), p.UserID, in)
	if err != nil {
		h.fail(w, "create transfer request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	req, ok := h.view(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

type historyEntry struct {
	Action  shared.ApprovalAction `json:"action"`
	ActorID int64                 `json:"actor_id"`
	Note    string                `json:"note,omitempty"`
	At      time.Time             `json:"at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	req, ok := h.view(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), req)
	if err != nil {
		h.fail(w, "transfer request history", err)
		return
	}
	entries := make([]historyEntry, len(logs))
	for i, l := range logs {
		entries[i] = historyEntry{Action: l.Action, ActorID: l.ActorID, Note: l.Note, At: l.At}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ref": req.Ref, "history": entries})
}

// view loads the request when either end is in the caller's scope.
func (h *Handler) view(w http.ResponseWriter, r *http.Request) (Request, bool) {
	req, ok := h.load(w, r)
	if !ok {
		return Request{}, false
	}
	_, scope, ok := h.scope(w, r)
	if !ok {
		return Request{}, false
	}
	if !scope.Contains(req.FromLocationID) && !scope.Contains(req.ToLocationID) {
		httpx.RespondError(w, scope.Require(req.ToLocationID))
		return Request{}, false
	}
	return req, true
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, p, ok := h.decide(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Approve(r.Context(), req.ID, p.UserID)
	if err != nil {
		h.fail(w, "approve transfer request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var in RejectInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, p, ok := h.decide(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Reject(r.Context(), req.ID, p.UserID, in.Reason)
	if err != nil {
		h.fail(w, "reject transfer request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// decide loads the request and checks the caller manages its source.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request) (Request, shared.Principal, bool) {
	req, ok := h.load(w, r)
	if !ok {
		return Request{}, shared.Principal{}, false
	}
	p, scope, ok := h.scope(w, r)
	if !ok {
		return Request{}, shared.Principal{}, false
	}
	if err := scope.Require(req.FromLocationID); err != nil {
		httpx.RespondError(w, err)
		return Request{}, shared.Principal{}, false
	}
	return req, p, true
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Request, bool) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Request{}, false
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get transfer request", err)
		return Request{}, false
	}
	return req, true
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (shared.Principal, locations.Scope, bool) {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Principal{}, locations.Scope{}, false
	}
	scope, err := h.scopes.Scope(r.Context(), p)
	if err != nil {
		h.fail(w, "transfer scope", err)
		return shared.Principal{}, locations.Scope{}, false
	}
	return p, scope, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
