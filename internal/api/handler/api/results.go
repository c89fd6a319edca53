// internal/api/handler/api/results.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/newthinker/fastquant/internal/api/response"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/storage/result"
)

const defaultListLimit = 50

// ResultsHandler serves stored backtest results.
type ResultsHandler struct {
	store result.Store
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(store result.Store) *ResultsHandler {
	return &ResultsHandler{store: store}
}

// List returns results matching query parameters, newest first.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := result.ListFilter{Limit: defaultListLimit}

	if s := q.Get("strategy"); s != "" {
		name, err := core.ParseStrategyName(s)
		if err != nil {
			response.Fail(w, err)
			return
		}
		filter.Strategy = name
	}
	if from := q.Get("from"); from != "" {
		filter.From = parseTime(from)
	}
	if to := q.Get("to"); to != "" {
		filter.To = parseTime(to)
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	results, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	count, _ := h.store.Count(r.Context(), filter)

	response.JSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   count,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetByID returns a single result by its strategy id.
func (h *ResultsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// parseTime accepts RFC3339 or a bare date; anything else is ignored.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	return time.Time{}
}
