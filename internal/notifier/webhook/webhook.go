// Package webhook posts backtest results to an HTTP endpoint
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/notifier"
	"github.com/newthinker/fastquant/internal/platform/httpclient"
)

// Webhook implements the Notifier interface for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *httpclient.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  defaultClient(),
	}
}

func defaultClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{
		Timeout:         30 * time.Second,
		RequestsPerSec:  10,
		MaxRetries:      2,
		MaxRetryTimeout: 10 * time.Second,
	})
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	switch headers := cfg.Params["headers"].(type) {
	case map[string]string:
		w.headers = headers
	case map[string]any:
		w.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			w.headers[k] = fmt.Sprint(v)
		}
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}
	if w.client == nil {
		w.client = defaultClient()
	}
	return nil
}

func (w *Webhook) Send(ctx context.Context, result *backtest.Result) error {
	return w.post(ctx, map[string]any{
		"type":   "result",
		"result": result,
	})
}

func (w *Webhook) SendBatch(ctx context.Context, results []*backtest.Result) error {
	if len(results) == 0 {
		return nil
	}
	return w.post(ctx, map[string]any{
		"type":    "batch",
		"count":   len(results),
		"results": results,
	})
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	header := http.Header{}
	for k, v := range w.headers {
		header.Set(k, v)
	}

	if _, err := w.client.Post(ctx, w.url, header, body); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
