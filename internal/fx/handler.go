package fx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Handler exposes exchange rates over HTTP.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs the fx handler.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, validator: validator.New(), now: time.Now}
}

// MountRoutes registers fx routes. Writing rates is reserved to HQ admins.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fx/rates", h.handleList)
	r.Get("/fx/resolve", h.handleResolve)
	r.With(httpx.RequireHQAdmin).Post("/fx/rates", h.handleUpsert)
}

type resolveResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Rate string `json:"rate"`
	// EffectiveDate is the date of the row that matched.
	EffectiveDate string `json:"effective_date"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := ParseDay(q.Get("date"), h.now())
	if err != nil {
		httpx.RespondError(w, shared.Validationf("date must be YYYY-MM-DD"))
		return
	}
	rate, err := h.resolver.Lookup(r.Context(), q.Get("from"), q.Get("to"), day)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("resolve rate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{
		From:          rate.FromCurrency,
		To:            rate.ToCurrency,
		Date:          day.Format(DateLayout),
		Rate:          rate.Rate.String(),
		EffectiveDate: rate.EffectiveDate.Format(DateLayout),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	rates, err := h.resolver.List(r.Context(), ListFilter{
		FromCurrency: q.Get("from"),
		ToCurrency:   q.Get("to"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("list rates", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rates": rates})
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var in UpsertInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.resolver.Upsert(r.Context(), in)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("upsert rate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}
