package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
)

const (
	webhookRetryWait      = 200 * time.Millisecond
	webhookRetryMaxWait   = 2 * time.Second
	webhookErrorBodyLimit = 512
)

// webhookPublisher sends the event as a JSON body to a configured URL.
type webhookPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	hook := cfg.HTTP
	if hook == nil {
		return nil, fmt.Errorf("missing %s block", TypeHTTP)
	}

	client := httpclient.NewRestyHTTPClient(time.Duration(hook.TimeoutSeconds) * time.Second)
	if hook.Retries > 0 {
		client.SetRetryCount(hook.Retries).
			SetRetryWaitTime(webhookRetryWait).
			SetRetryMaxWaitTime(webhookRetryMaxWait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
			})
	}

	headers := make(map[string]string, len(hook.Headers)+1)
	for k, v := range hook.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"

	method := hook.Method
	if method == "" {
		method = defaultWebhookMethod
	}

	return &webhookPublisher{
		id:      cfg.ID,
		method:  method,
		url:     hook.URL,
		headers: headers,
		client:  client,
		log:     ensureLogger(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

// Publish delivers evt once, retrying server errors when configured. A non-2xx answer is returned
// as an error carrying the start of the response body.
func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeaders(w.headers).
		SetHeader("X-Digest-Id", evt.DigestID).
		SetBody(payload).
		Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("%s %s: %w", w.method, w.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s answered %d: %s", w.method, w.url, resp.StatusCode(), errorBody(resp.Body()))
	}

	w.log.DebugObj("webhook accepted digest", "publisher_http_delivery", map[string]any{
		"publisher_id": w.id,
		"digest_id":    evt.DigestID,
		"status":       resp.StatusCode(),
		"attempts":     resp.Request.Attempt,
	})
	return nil
}

func errorBody(body []byte) string {
	if len(body) > webhookErrorBodyLimit {
		body = body[:webhookErrorBodyLimit]
	}
	return strings.TrimSpace(string(body))
}
