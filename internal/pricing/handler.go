package pricing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// Handler wires HTTP endpoints for pricing.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	scopes    ScopeProvider
	validator *validator.Validate
}

// NewHandler constructs the pricing handler.
func NewHandler(logger *slog.Logger, service *Service, scopes ScopeProvider) *Handler {
	return &Handler{logger: logger, service: service, scopes: scopes, validator: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pricing/compute", h.handleCompute)
	r.Get("/pricing/chain", h.handleChain)
	r.Get("/pricing/configs", h.handleListConfigs)
	r.Post("/pricing/configs/sub-branch", h.handleSaveSubBranch)
	r.Get("/pricing/templates", h.handleListTemplates)
	r.Get("/pricing/templates/{id}/applications", h.handleListApplications)
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireHQAdmin)
		r.Post("/pricing/configs/branch", h.handleSaveBranch)
		r.Post("/pricing/templates", h.handleCreateTemplate)
		r.Put("/pricing/templates/{id}", h.handleUpdateTemplate)
		r.Post("/pricing/templates/{id}/apply", h.handleApply)
	})
}

type chainResponse struct {
	ProductID  int64      `json:"product_id"`
	LocationID int64      `json:"location_id"`
	Chain      []ChainHop `json:"chain"`
	Error      string     `json:"error,omitempty"`
	BrokenAt   int64      `json:"broken_at,omitempty"`
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	var in ComputeInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Compute(in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locationID, err := httpx.QueryInt64(r, "location_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.requireScope(r, locationID); err != nil {
		h.fail(w, "price chain scope", err)
		return
	}
	hops, err := h.service.ResolveChain(r.Context(), productID, locationID)
	resp := chainResponse{ProductID: productID, LocationID: locationID, Chain: hops}
	var chainErr *shared.ChainIncompleteError
	switch {
	case err == nil:
	case errors.As(err, &chainErr):
		resp.Error = "chain_incomplete"
		resp.BrokenAt = chainErr.BrokenAt
	default:
		h.fail(w, "resolve price chain", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, err := h.scopes.Scope(r.Context(), p)
	if err != nil {
		h.fail(w, "pricing scope", err)
		return
	}
	q := r.URL.Query()
	filter := ConfigFilter{LocationIDs: scope.IDs()}
	if raw := q.Get("location_id"); raw != "" {
		id, err := httpx.QueryInt64(r, "location_id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := scope.Require(id); err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.LocationIDs = []int64{id}
	}
	if raw := q.Get("product_id"); raw != "" {
		id, err := httpx.QueryInt64(r, "product_id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.ProductID = id
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	configs, err := h.service.ListConfigs(r.Context(), filter)
	if err != nil {
		h.fail(w, "list pricing configs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"configs": configs})
}

func (h *Handler) handleSaveBranch(w http.ResponseWriter, r *http.Request) {
	var in BranchConfigInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	cfg, err := h.service.SaveBranchConfig(r.Context(), p.UserID, in)
	if err != nil {
		h.fail(w, "save branch config", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleSaveSubBranch(w http.ResponseWriter, r *http.Request) {
	var in SubBranchConfigInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.requireScope(r, in.LocationID); err != nil {
		h.fail(w, "sub-branch config scope", err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	cfg, err := h.service.SaveSubBranchConfig(r.Context(), p.UserID, in)
	if err != nil {
		h.fail(w, "save sub-branch config", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, "list templates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	apps, err := h.service.ListApplications(r.Context(), id)
	if err != nil {
		h.fail(w, "list template applications", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in TemplateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	t, err := h.service.CreateTemplate(r.Context(), p.UserID, in)
	if err != nil {
		h.fail(w, "create template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in TemplateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	t, err := h.service.UpdateTemplate(r.Context(), p.UserID, id, in)
	if err != nil {
		h.fail(w, "update template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ApplyInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := httpx.CurrentPrincipal(r)
	app, err := h.service.ApplyTemplate(r.Context(), p.UserID, id, in)
	if err != nil {
		h.fail(w, "apply template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows_written": app.RowsWritten, "application": app})
}

func (h *Handler) requireScope(r *http.Request, locationIDs ...int64) error {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		return err
	}
	scope, err := h.scopes.Scope(r.Context(), p)
	if err != nil {
		return err
	}
	return scope.Require(locationIDs...)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
