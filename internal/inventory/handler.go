package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// ScopeProvider computes the locations a principal may touch.
type ScopeProvider interface {
	Scope(ctx context.Context, p shared.Principal) (locations.Scope, error)
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger     *slog.Logger
	ledger     *Ledger
	scopes     ScopeProvider
	validator  *validator.Validate
	expiryDays int
}

// NewHandler constructs inventory handler. expiryDays is the default near-expiry window.
func NewHandler(logger *slog.Logger, ledger *Ledger, scopes ScopeProvider, expiryDays int) *Handler {
	return &Handler{logger: logger, ledger: ledger, scopes: scopes, validator: validator.New(), expiryDays: expiryDays}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/batches", h.handleListBatches)
	r.Get("/stock/batches/{id}", h.handleGetBatch)
	r.Put("/stock/batches/{id}/quality", h.handleQuality)
	r.Get("/stock/available", h.handleAvailable)
	r.Get("/stock/near-expiry", h.handleNearExpiry)
	r.Get("/stock/movements", h.handleMovements)
	r.Post("/stock/receive", h.handleReceive)
	r.Post("/stock/allocate", h.handleAllocate)
	r.Post("/stock/reserve", h.handleReserve)
	r.Post("/stock/release", h.handleRelease)
	r.Post("/stock/transfer", h.handleTransfer)
	r.Post("/stock/sales", h.handleSale)
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := BatchFilter{LocationIDs: scope.IDs(), IncludeEmpty: q.Get("include_empty") == "true"}
	if q.Get("location_id") != "" {
		id, err := httpx.QueryInt64(r, "location_id")
		if err == nil {
			err = scope.Require(id)
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.LocationIDs = []int64{id}
	}
	if q.Get("product_id") != "" {
		id, err := httpx.QueryInt64(r, "product_id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.ProductID = id
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	batches, err := h.ledger.ListBatches(r.Context(), filter)
	if err != nil {
		h.fail(w, "list batches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.ledger.GetBatch(r.Context(), id)
	if err != nil {
		h.fail(w, "get batch", err)
		return
	}
	if !h.requireScope(w, r, b.LocationID) {
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleQuality(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in QualityInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	current, err := h.ledger.GetBatch(r.Context(), id)
	if err != nil {
		h.fail(w, "get batch", err)
		return
	}
	if !h.requireScope(w, r, current.LocationID) {
		return
	}
	in.ActorID = actorID(r)
	b, err := h.ledger.UpdateQuality(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update quality", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	locationID, err := httpx.QueryInt64(r, "location_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.requireScope(w, r, locationID) {
		return
	}
	qty, err := h.ledger.AvailableQty(r.Context(), locationID, productID)
	if err != nil {
		h.fail(w, "available qty", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location_id": locationID, "product_id": productID, "qty_available": qty})
}

func (h *Handler) handleNearExpiry(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	days := h.expiryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			httpx.RespondError(w, shared.Validationf("days must be a non-negative integer"))
			return
		}
		days = v
	}
	batches, err := h.ledger.NearExpiry(r.Context(), days, scope.IDs())
	if err != nil {
		h.fail(w, "near expiry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"days": days, "batches": batches})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := MovementFilter{LocationIDs: scope.IDs()}
	if q.Get("location_id") != "" {
		id, err := httpx.QueryInt64(r, "location_id")
		if err == nil {
			err = scope.Require(id)
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.LocationIDs = []int64{id}
	}
	if q.Get("product_id") != "" {
		id, err := httpx.QueryInt64(r, "product_id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.ProductID = id
	}
	if raw := q.Get("ref"); raw != "" {
		ref, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("ref must be a uuid"))
			return
		}
		filter.Ref = ref
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	movements, err := h.ledger.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var in ReceiveInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.requireScope(w, r, in.LocationID) {
		return
	}
	in.ActorID = actorID(r)
	batches, err := h.ledger.Receive(r.Context(), in)
	if err != nil {
		h.fail(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"batches": batches})
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	h.stockRequest(w, r, "allocate stock", func(ctx context.Context, req StockRequest) (any, error) {
		plan, err := h.ledger.Allocate(ctx, req)
		return map[string]any{"allocations": plan}, err
	})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.stockRequest(w, r, "reserve stock", func(ctx context.Context, req StockRequest) (any, error) {
		if err := h.ledger.Reserve(ctx, req); err != nil {
			return nil, err
		}
		return map[string]any{"reserved": req.Qty}, nil
	})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.stockRequest(w, r, "release stock", func(ctx context.Context, req StockRequest) (any, error) {
		plan, err := h.ledger.Release(ctx, req)
		return map[string]any{"released": plan}, err
	})
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	h.stockRequest(w, r, "consume for sale", func(ctx context.Context, req StockRequest) (any, error) {
		plan, err := h.ledger.ConsumeForSale(ctx, req)
		return map[string]any{"consumed": plan}, err
	})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var in TransferInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.requireScope(w, r, in.FromLocationID, in.ToLocationID) {
		return
	}
	in.ActorID = actorID(r)
	result, err := h.ledger.Transfer(r.Context(), in)
	if err != nil {
		h.fail(w, "transfer stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) stockRequest(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, StockRequest) (any, error)) {
	var req StockRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.requireScope(w, r, req.LocationID) {
		return
	}
	req.ActorID = actorID(r)
	body, err := fn(r.Context(), req)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (locations.Scope, bool) {
	p, err := httpx.CurrentPrincipal(r)
	if err != nil {
		httpx.RespondError(w, err)
		return locations.Scope{}, false
	}
	scope, err := h.scopes.Scope(r.Context(), p)
	if err != nil {
		h.fail(w, "stock scope", err)
		return locations.Scope{}, false
	}
	return scope, true
}

func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request, ids ...int64) bool {
	scope, ok := h.scope(w, r)
	if !ok {
		return false
	}
	if err := scope.Require(ids...); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	p, _ := httpx.CurrentPrincipal(r)
	return p.UserID
}
