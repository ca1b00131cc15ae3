package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"hmdamart/internal/incremental"
	"hmdamart/internal/incremental/ports"
	"hmdamart/internal/platform/middleware"
	"hmdamart/pkg/platform/httputil"
	"hmdamart/pkg/platform/sentinel"
)

// Service is the controller surface the handler needs.
type Service interface {
	Run(ctx context.Context) (*incremental.RunResult, error)
	Rematerialize(ctx context.Context, year int) (*incremental.RunResult, error)
	State() incremental.State
	LastResult() *incremental.RunResult
}

// PartitionLister lists committed years for the status endpoint.
type PartitionLister interface {
	Partitions(ctx context.Context) ([]ports.PartitionInfo, error)
}

// Handler exposes run triggers and run status.
type Handler struct {
	service    Service
	partitions PartitionLister
	logger     *slog.Logger

	// base outlives requests; background runs are cancelled with it.
	base context.Context
	wg   sync.WaitGroup
}

// New constructs a run handler. Background runs started by POST /v1/runs use
// base as their parent context.
func New(base context.Context, service Service, partitions PartitionLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service:    service,
		partitions: partitions,
		logger:     logger,
		base:       base,
	}
}

// Register mounts run endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/runs", h.HandleRun)
	r.Post("/v1/years/{year}/rematerialize", h.HandleRematerialize)
	r.Get("/v1/status", h.HandleStatus)
}

// Wait blocks until background runs have returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HandleRun handles POST /v1/runs. By default the run continues in the
// background and 202 is returned; with ?wait=true the response carries the
// run result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if h.service.State() == incremental.StateMaterializing {
		httputil.WriteError(w, incremental.ErrRunInProgress)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		res, err := h.service.Run(ctx)
		h.writeResult(w, r, res, err)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		res, err := h.service.Run(h.base)
		if err != nil {
			h.logger.ErrorContext(h.base, "background run failed",
				"request_id", requestID,
				"error", err,
			)
			return
		}
		h.logger.InfoContext(h.base, "background run finished",
			"request_id", requestID,
			"run_id", res.RunID,
			"years", res.Years(),
		)
	}()
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleRematerialize handles POST /v1/years/{year}/rematerialize.
func (h *Handler) HandleRematerialize(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		httputil.WriteError(w, httputil.BadRequest("year must be a positive integer"))
		return
	}
	res, err := h.service.Rematerialize(r.Context(), year)
	h.writeResult(w, r, res, err)
}

// HandleStatus handles GET /v1/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{State: h.service.State().String()}
	if last := h.service.LastResult(); last != nil {
		run := FromResult(last, nil)
		resp.LastRun = &run
	}
	if h.partitions != nil {
		parts, err := h.partitions.Partitions(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list partitions",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		resp.Partitions = FromPartitions(parts)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res *incremental.RunResult, err error) {
	ctx := r.Context()
	var runErr *incremental.RunError
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, FromResult(res, nil))
	case errors.As(err, &runErr) && res != nil:
		h.logger.ErrorContext(ctx, "run failed",
			"request_id", middleware.GetRequestID(ctx),
			"run_id", runErr.RunID,
			"failed_years", runErr.FailedYears,
			"error", err,
		)
		status := http.StatusInternalServerError
		if errors.Is(err, sentinel.ErrNotFound) {
			status = http.StatusNotFound
		}
		httputil.WriteJSON(w, status, FromResult(res, err))
	default:
		httputil.WriteError(w, err)
	}
}
