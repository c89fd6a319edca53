// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/api/job"
	"github.com/newthinker/fastquant/internal/api/response"
	"github.com/newthinker/fastquant/internal/app"
	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/metrics"
)

// PolygonKeyHeader carries the caller's market data API key.
const PolygonKeyHeader = "X-Polygon-API-Key"

const defaultJobTimeout = 5 * time.Minute

// Runner executes backtests. *app.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, req app.Request) (*backtest.Result, error)
	RunBatch(ctx context.Context, reqs []app.Request) []app.BatchItem
}

// BatchRequest is the request body of a batch run.
type BatchRequest struct {
	Requests []app.Request `json:"requests"`
}

// BacktestHandler starts backtests as background jobs.
type BacktestHandler struct {
	jobs    *job.Store
	runner  Runner
	metrics *metrics.Registry
	logger  *zap.Logger
	timeout time.Duration
}

// NewBacktestHandler creates a new backtest handler. metrics may be nil.
func NewBacktestHandler(jobs *job.Store, runner Runner, m *metrics.Registry, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobs:    jobs,
		runner:  runner,
		metrics: m,
		logger:  logger,
		timeout: defaultJobTimeout,
	}
}

// SetTimeout bounds how long one job may run.
func (h *BacktestHandler) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// Create starts a backtest of the strategy named in the path.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, err := core.ParseStrategyName(r.PathValue("strategy"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	var req app.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrBadRequest, err))
		return
	}
	req.Strategy = name
	req.APIKey = r.Header.Get(PolygonKeyHeader)

	if err := validate(req); err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobs.Create("backtest")
	go h.execute(j.ID, func(ctx context.Context) (any, error) {
		return h.runner.Run(ctx, req)
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// Batch starts one job running every request of the body in parallel.
func (h *BacktestHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Fail(w, core.WrapError(core.ErrBadRequest, err))
		return
	}
	if len(body.Requests) == 0 {
		response.Fail(w, core.WrapError(core.ErrBadRequest, errors.New("requests is empty")))
		return
	}

	apiKey := r.Header.Get(PolygonKeyHeader)
	for i := range body.Requests {
		name, err := core.ParseStrategyName(string(body.Requests[i].Strategy))
		if err != nil {
			response.Fail(w, err)
			return
		}
		body.Requests[i].Strategy = name
		body.Requests[i].APIKey = apiKey
		if err := validate(body.Requests[i]); err != nil {
			response.Fail(w, err)
			return
		}
	}

	j := h.jobs.Create("batch")
	go h.execute(j.ID, func(ctx context.Context) (any, error) {
		return h.runner.RunBatch(ctx, body.Requests), nil
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
		"count":  len(body.Requests),
	})
}

// GetJob returns the status of a job, with its result once complete.
func (h *BacktestHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"type":     j.Type,
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// validate rejects requests that would fail before any data is loaded.
func validate(req app.Request) error {
	if _, err := app.DecodeParams(req.Strategy, req.Params); err != nil {
		return err
	}
	if _, err := req.Period(); err != nil {
		return err
	}
	return nil
}

func (h *BacktestHandler) execute(jobID string, fn func(ctx context.Context) (any, error)) {
	if h.metrics != nil {
		h.metrics.JobStarted()
		defer h.metrics.JobFinished()
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	out, err := fn(ctx)

	if err != nil {
		h.logger.Warn("job failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		return
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = out
	})
}

func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return core.WrapError(core.ErrBacktestFailed, err)
}
