package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfalcone/duecall/internal/reliability"
)

// HTTPChannel posts payment notices to the delivery gateway's webhook.
// Retries stay inside the caller's deadline; re-posting the same reference
// id is safe because the gateway deduplicates on it.
type HTTPChannel struct {
	endpoint    string
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

type HTTPConfig struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
}

func NewHTTPChannel(cfg HTTPConfig) *HTTPChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &HTTPChannel{
		endpoint:    cfg.Endpoint,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		backoffBase: 200 * time.Millisecond,
		backoffCap:  2 * time.Second,
	}
}

func (c *HTTPChannel) Deliver(ctx context.Context, p Payload) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDeliveryFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, c.backoffBase, c.backoffCap)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: build request: %v", ErrDeliveryFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", p.ReferenceID)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if !reliability.IsRetryableDeliveryStatus(resp.StatusCode) {
			break
		}
	}

	return fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
}
