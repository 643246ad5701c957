package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"imaged/pkg/types"
)

// WebhookSender delivers a finished job's result to a callback URL. The
// dispatcher calls Deliver at most once per job.
type WebhookSender interface {
	Deliver(ctx context.Context, url string, res types.JobResult) error
}

// WebhookClient posts results as JSON with a single attempt.
type WebhookClient struct {
	client *resty.Client
}

// NewWebhookClient returns a sender whose requests time out after timeout
// (0 selects 10s).
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "imaged-webhook/1.0")
	return &WebhookClient{client: c}
}

func (w *WebhookClient) Deliver(ctx context.Context, url string, res types.JobResult) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(res).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post: %s returned %d", url, resp.StatusCode())
	}
	return nil
}
