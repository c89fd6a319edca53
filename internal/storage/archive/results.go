package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

const resultsRoot = "results"

// ResultArchive stores results as JSON documents keyed
// results/<strategy>/<id>.json.
type ResultArchive struct {
	storage Storage
}

// NewResultArchive wraps a blob storage backend.
func NewResultArchive(storage Storage) *ResultArchive {
	return &ResultArchive{storage: storage}
}

// ResultPath returns the object path for a result.
func ResultPath(name core.StrategyName, id string) string {
	return path.Join(resultsRoot, string(name), id+".json")
}

// Put writes a result; writing the same id twice replaces it.
func (a *ResultArchive) Put(ctx context.Context, r *backtest.Result) error {
	if r == nil || r.ID == "" {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("result without id"))
	}
	data, err := json.Marshal(r)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return a.storage.Write(ctx, ResultPath(r.Strategy, r.ID), data)
}

// Get reads an archived result.
func (a *ResultArchive) Get(ctx context.Context, name core.StrategyName, id string) (*backtest.Result, error) {
	data, err := a.storage.Read(ctx, ResultPath(name, id))
	if err != nil {
		return nil, err
	}
	var r backtest.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", id, err))
	}
	return &r, nil
}

// IDs lists archived result ids for a strategy in lexical order.
func (a *ResultArchive) IDs(ctx context.Context, name core.StrategyName) ([]string, error) {
	paths, err := a.storage.List(ctx, path.Join(resultsRoot, string(name)))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if base := path.Base(p); strings.HasSuffix(base, ".json") {
			ids = append(ids, strings.TrimSuffix(base, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
