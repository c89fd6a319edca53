// internal/api/handler/api/backtest_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/fastquant/internal/api/job"
	"github.com/newthinker/fastquant/internal/api/response"
	"github.com/newthinker/fastquant/internal/app"
	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []app.Request
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, req app.Request) (*backtest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &backtest.Result{ID: "1", Strategy: req.Strategy, TradeCount: 3}, nil
}

func (f *fakeRunner) RunBatch(ctx context.Context, reqs []app.Request) []app.BatchItem {
	items := make([]app.BatchItem, len(reqs))
	for i, req := range reqs {
		r, err := f.Run(ctx, req)
		items[i] = app.BatchItem{Request: req, Result: r}
		if err != nil {
			items[i].Error = err.Error()
		}
	}
	return items
}

func (f *fakeRunner) requests() []app.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]app.Request(nil), f.reqs...)
}

func newMux(h *BacktestHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/backtests/batch", h.Batch)
	mux.HandleFunc("POST /api/v1/backtests/{strategy}", h.Create)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.GetJob)
	return mux
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data %T", resp.Data)
	}
	return data
}

func waitDone(t *testing.T, store *job.Store, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.Get(id)
		if err != nil {
			t.Fatalf("job lookup: %v", err)
		}
		if j.Status.Done() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func TestBacktestHandler_Create(t *testing.T) {
	jobs := job.NewStore(100, time.Hour)
	runner := &fakeRunner{}
	mux := newMux(NewBacktestHandler(jobs, runner, nil, nil))

	body := bytes.NewBufferString(`{"ticker":"X:BTCUSD","from":"2023-01-01","to":"2024-01-01","params":{"lookback":10}}`)
	req := httptest.NewRequest("POST", "/api/v1/backtests/donchian", body)
	req.Header.Set(PolygonKeyHeader, "poly-key")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["status"] != "pending" {
		t.Errorf("expected pending status, got %v", data["status"])
	}

	j := waitDone(t, jobs, data["job_id"].(string))
	if j.Status != job.StatusComplete {
		t.Fatalf("expected complete, got %s", j.Status)
	}

	reqs := runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(reqs))
	}
	if reqs[0].Strategy != core.StrategyDonchianChannel {
		t.Errorf("strategy = %s", reqs[0].Strategy)
	}
	if reqs[0].APIKey != "poly-key" {
		t.Errorf("api key not forwarded, got %q", reqs[0].APIKey)
	}
}

func TestBacktestHandler_Create_Rejects(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"unknown strategy", "/api/v1/backtests/macd", `{}`, "UNKNOWN_STRATEGY"},
		{"malformed body", "/api/v1/backtests/donchian", `{`, "BAD_REQUEST"},
		{"invalid params", "/api/v1/backtests/donchian", `{"params":{"lookback":0}}`, "INVALID_PARAMS"},
		{"reversed dates", "/api/v1/backtests/pair", `{"from":"2024-02-01","to":"2024-01-01"}`, "INVALID_PARAMS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := job.NewStore(100, time.Hour)
			mux := newMux(NewBacktestHandler(jobs, &fakeRunner{}, nil, nil))

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", tt.path, bytes.NewBufferString(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			var resp response.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error.Code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, resp.Error.Code)
			}
			if n := len(jobs.List()); n != 0 {
				t.Errorf("rejected request created %d jobs", n)
			}
		})
	}
}

func TestBacktestHandler_FailedJob(t *testing.T) {
	jobs := job.NewStore(100, time.Hour)
	runner := &fakeRunner{err: errors.New("boom")}
	mux := newMux(NewBacktestHandler(jobs, runner, nil, nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/backtests/ema-stop", bytes.NewBufferString(`{"prices":[1,2,3]}`)))
	id := decodeData(t, w)["job_id"].(string)
	waitDone(t, jobs, id)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/jobs/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["status"] != "failed" {
		t.Fatalf("expected failed, got %v", data["status"])
	}
	detail := data["error"].(map[string]any)
	if detail["code"] != "BACKTEST_FAILED" {
		t.Errorf("expected BACKTEST_FAILED, got %v", detail["code"])
	}
	if _, ok := data["result"]; ok {
		t.Error("failed job should not carry a result")
	}
}

func TestBacktestHandler_FailedJobKeepsDomainCode(t *testing.T) {
	jobs := job.NewStore(100, time.Hour)
	runner := &fakeRunner{err: core.WrapError(core.ErrProviderFailed, errors.New("timeout"))}
	h := NewBacktestHandler(jobs, runner, nil, nil)

	j := jobs.Create("backtest")
	h.execute(j.ID, func(ctx context.Context) (any, error) {
		return runner.Run(ctx, app.Request{})
	})

	got, _ := jobs.Get(j.ID)
	if got.Error == nil || got.Error.Code != "PROVIDER_FAILED" {
		t.Errorf("expected PROVIDER_FAILED, got %+v", got.Error)
	}
}

func TestBacktestHandler_GetJob_NotFound(t *testing.T) {
	mux := newMux(NewBacktestHandler(job.NewStore(100, time.Hour), &fakeRunner{}, nil, nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/jobs/job_missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBacktestHandler_Batch(t *testing.T) {
	jobs := job.NewStore(100, time.Hour)
	runner := &fakeRunner{}
	mux := newMux(NewBacktestHandler(jobs, runner, nil, nil))

	body := `{"requests":[
		{"strategy":"donchian","prices":[1,2,3]},
		{"strategy":"ema-atr","ticker":"AAPL","params":{"atr_period":10}}
	]}`
	req := httptest.NewRequest("POST", "/api/v1/backtests/batch", bytes.NewBufferString(body))
	req.Header.Set(PolygonKeyHeader, "k")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", data["count"])
	}

	j := waitDone(t, jobs, data["job_id"].(string))
	if j.Type != "batch" || j.Status != job.StatusComplete {
		t.Fatalf("unexpected job %+v", j)
	}
	items, ok := j.Result.([]app.BatchItem)
	if !ok || len(items) != 2 {
		t.Fatalf("unexpected batch result %#v", j.Result)
	}
	for _, r := range runner.requests() {
		if r.APIKey != "k" {
			t.Errorf("api key not forwarded to %s", r.Strategy)
		}
	}
}

func TestBacktestHandler_Batch_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"requests":[]}`},
		{"unknown strategy", `{"requests":[{"strategy":"macd"}]}`},
		{"invalid params", `{"requests":[{"strategy":"pair","params":{"window":0}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(NewBacktestHandler(job.NewStore(100, time.Hour), &fakeRunner{}, nil, nil))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/backtests/batch", bytes.NewBufferString(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}
