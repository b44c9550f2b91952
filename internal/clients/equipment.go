// Package clients holds the outbound collaborators: the equipment webhook
// and the job monitoring service.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"controlling_hottub/internal/logger"

	"golang.org/x/time/rate"
)

// Webhook triggers named equipment events on an IFTTT-style maker endpoint:
// POST <base>/<event>/with/key/<key>.
type Webhook struct {
	base    string
	key     string
	dryRun  bool
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type WebhookOptions struct {
	BaseURL    string
	Key        string
	DryRun     bool
	RatePerSec float64
	Timeout    time.Duration
	Client     *http.Client
	Log        *logger.Logger
}

func NewWebhook(opts WebhookOptions) *Webhook {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Webhook{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		key:     opts.Key,
		dryRun:  opts.DryRun,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.OrNop(opts.Log),
	}
}

// Trigger fires event. The bool reports whether the endpoint accepted it;
// err is set only for failures to reach it.
func (w *Webhook) Trigger(ctx context.Context, event string) (bool, error) {
	if event == "" {
		return false, fmt.Errorf("empty event name")
	}
	if w.dryRun {
		w.log.Infof("dry run: would trigger %s", event)
		return true, nil
	}
	if w.key == "" {
		return false, fmt.Errorf("webhook key not configured")
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return false, err
	}

	u := fmt.Sprintf("%s/%s/with/key/%s", w.base, url.PathEscape(event), url.PathEscape(w.key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return false, fmt.Errorf("build trigger request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("trigger %s: %w", event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		w.log.Warnf("trigger %s: endpoint returned %d", event, resp.StatusCode)
	}
	return ok, nil
}
