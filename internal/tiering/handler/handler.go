package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hmdamart/internal/geography"
	"hmdamart/internal/platform/middleware"
	"hmdamart/internal/tiering"
	"hmdamart/pkg/platform/httputil"
)

// Service tiers the tracts of one region.
type Service interface {
	TierRegion(ctx context.Context, msa string, year int, mode geography.Mode) (*tiering.RegionTiers, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts tier lookups on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/regions/{msa}/tiers", h.HandleRegionTiers)
	r.Get("/v1/tiers/fixed", h.HandleFixedTier)
}

// HandleRegionTiers handles GET /v1/regions/{msa}/tiers?year=2019&mode=quartile.
// mode defaults to quartile.
func (h *Handler) HandleRegionTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msa := chi.URLParam(r, "msa")

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		httputil.WriteError(w, httputil.BadRequest("year must be an integer"))
		return
	}
	mode := geography.ModeQuartile
	if raw := r.URL.Query().Get("mode"); raw != "" {
		if mode, err = geography.ParseMode(raw); err != nil {
			httputil.WriteError(w, httputil.BadRequest(err.Error()))
			return
		}
	}

	res, err := h.service.TierRegion(ctx, msa, year, mode)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, FromRegion(res))
	case errors.Is(err, tiering.ErrInvalidRequest):
		httputil.WriteError(w, httputil.BadRequest(err.Error()))
	case errors.Is(err, geography.ErrInsufficientData):
		httputil.WriteError(w, httputil.NewError(http.StatusUnprocessableEntity, "insufficient_data", err.Error()))
	default:
		h.logger.ErrorContext(ctx, "tier lookup failed",
			"request_id", middleware.GetRequestID(ctx),
			"msa", msa,
			"year", year,
			"error", err,
		)
		httputil.WriteError(w, err)
	}
}

// HandleFixedTier handles GET /v1/tiers/fixed?pct=42.5.
func (h *Handler) HandleFixedTier(w http.ResponseWriter, r *http.Request) {
	pct, err := strconv.ParseFloat(r.URL.Query().Get("pct"), 64)
	if err != nil || pct < 0 || pct > 100 {
		httputil.WriteError(w, httputil.BadRequest("pct must be a number between 0 and 100"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTract(tiering.TierTract(pct)))
}
