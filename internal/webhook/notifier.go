package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/metrics"
)

const (
	deliveryTimeout = 10 * time.Second
	maxInFlight     = 64
)

// Notifier posts events to webhook sinks. Delivery is fire-and-forget:
// Notify never blocks the caller, there are no retries, and no ordering
// is guaranteed between events at a given sink.
type Notifier struct {
	client *http.Client
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewNotifier creates a Notifier with a shared connection-pooled client.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client: &http.Client{
			Timeout: deliveryTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sem:    semaphore.NewWeighted(maxInFlight),
		logger: logger,
	}
}

// Notify dispatches the event to every URL concurrently. The in-flight POST
// count is bounded; excess deliveries queue on their own goroutines without
// ever delaying the caller.
func (n *Notifier) Notify(urls []*url.URL, event Event) {
	if len(urls) == 0 {
		return
	}

	payload, err := EncodeEvent(event)
	if err != nil {
		n.logger.Error("failed to serialize webhook event", zap.Error(err))
		return
	}

	for _, u := range urls {
		go n.deliver(u.String(), payload)
	}
}

func (n *Notifier) deliver(url string, payload []byte) {
	if err := n.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer n.sem.Release(1)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("transport_error").Inc()
		n.logger.Warn("webhook notification failed", zap.String("url", url), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("transport_error").Inc()
		n.logger.Warn("webhook notification failed", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookDeliveries.WithLabelValues("status_error").Inc()
		n.logger.Warn("webhook notification failed",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
	n.logger.Debug("webhook notification sent",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))
}
