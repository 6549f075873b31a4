package locations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the location tree.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs location handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/locations", h.handleList)
	r.Get("/locations/tree", h.handleTree)
	r.Get("/locations/{id}/breadcrumbs", h.handleBreadcrumbs)
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireHQAdmin)
		r.Post("/locations", h.handleCreate)
		r.Post("/locations/{id}/deactivate", h.handleDeactivate)
		r.Post("/locations/{id}/reparent", h.handleReparent)
	})
}

type reparentRequest struct {
	ParentID int64 `json:"parent_id" validate:"required,gt=0"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locs, err := h.service.AccessibleLocations(r.Context(), p.Role, p.HomeLocationID)
	if err != nil {
		h.fail(w, "list locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tree, err := h.service.Tree(r.Context(), p)
	if err != nil {
		h.fail(w, "location tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tree": tree})
}

func (h *Handler) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	crumbs, err := h.service.Breadcrumbs(r.Context(), id)
	if err != nil {
		h.fail(w, "breadcrumbs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"breadcrumbs": crumbs})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	loc, err := h.service.Create(r.Context(), p.UserID, in)
	if err != nil {
		h.fail(w, "create location", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	if err := h.service.Deactivate(r.Context(), p.UserID, id); err != nil {
		h.fail(w, "deactivate location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReparent(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reparentRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	loc, err := h.service.Reparent(r.Context(), p.UserID, id, req.ParentID)
	if err != nil {
		h.fail(w, "reparent location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
