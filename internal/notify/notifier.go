// Package notify delivers order snapshots to caller webhook endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"warehouse-service/internal/models"
	"warehouse-service/internal/util"
)

// Result is one delivery attempt.
type Result struct {
	URL     string `json:"url"`
	Status  int    `json:"status,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Notifier struct {
	globalURLs []string
	http       *http.Client
}

// NewNotifier builds a notifier that always posts to globalURLs in addition
// to any per-order webhook URL.
func NewNotifier(globalURLs []string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		globalURLs: globalURLs,
		http:       &http.Client{Timeout: timeout},
	}
}

// Send posts the snapshot to every configured endpoint. Failures are
// reported per endpoint, never returned as an error: notification delivery
// must not fail the operation that triggered it.
func (n *Notifier) Send(ctx context.Context, snapshot models.OrderSnapshot) []Result {
	urls := make([]string, 0, len(n.globalURLs)+1)
	urls = append(urls, n.globalURLs...)
	if snapshot.WebhookURL != "" {
		urls = append(urls, snapshot.WebhookURL)
	}

	results := make([]Result, 0, len(urls))
	for _, url := range urls {
		results = append(results, n.post(ctx, url, snapshot))
	}
	return results
}

func (n *Notifier) post(ctx context.Context, url string, snapshot models.OrderSnapshot) Result {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return Result{URL: url, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{URL: url, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		util.NotificationsSentTotal.WithLabelValues("error").Inc()
		util.GetLogger().Warn("notification delivery failed",
			zap.String("url", url),
			zap.String("order_number", snapshot.OrderNumber),
			zap.Error(err))
		return Result{URL: url, Error: err.Error()}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok {
		util.NotificationsSentTotal.WithLabelValues("ok").Inc()
	} else {
		util.NotificationsSentTotal.WithLabelValues("rejected").Inc()
	}
	result := Result{URL: url, Status: resp.StatusCode, Success: ok}
	if !ok {
		result.Error = fmt.Sprintf("endpoint returned %d", resp.StatusCode)
	}
	return result
}
