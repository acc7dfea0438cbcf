package notify

import (
	"context"
	"sync"
	"time"
)

// MockChannel records deliveries in memory. Used for local runs and tests;
// FailNext injects channel failures, Delay simulates a slow gateway.
type MockChannel struct {
	mu        sync.Mutex
	delivered []Payload
	failNext  int
	delay     time.Duration
}

func NewMockChannel() *MockChannel {
	return &MockChannel{}
}

func (c *MockChannel) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = n
}

func (c *MockChannel) Delay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

func (c *MockChannel) Deliver(ctx context.Context, p Payload) error {
	if err := p.validate(); err != nil {
		return ErrDeliveryFailed
	}

	c.mu.Lock()
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return ErrDeliveryFailed
	}
	for _, d := range c.delivered {
		if d.ReferenceID == p.ReferenceID {
			// Idempotent per reference id.
			return nil
		}
	}
	c.delivered = append(c.delivered, p)
	return nil
}

func (c *MockChannel) Delivered() []Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Payload, len(c.delivered))
	copy(out, c.delivered)
	return out
}

// NewChannel selects the webhook channel when an endpoint is configured,
// otherwise the in-process mock.
func NewChannel(endpoint string, timeout time.Duration) Channel {
	if endpoint == "" {
		return NewMockChannel()
	}
	return NewHTTPChannel(HTTPConfig{Endpoint: endpoint, Timeout: timeout})
}
