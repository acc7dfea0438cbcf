package notify

import (
	"context"
	"errors"
	"fmt"
)

var ErrDeliveryFailed = errors.New("notify: delivery failed")

// Payload is the rendered payment notice handed to the delivery channel.
// Delivery must be idempotent per ReferenceID: re-sending the same reference
// is always safe.
type Payload struct {
	ReferenceID  string  `json:"reference_id"`
	ObligationID string  `json:"obligation_id"`
	Amount       float64 `json:"amount"`
	Destination  string  `json:"destination"`
	Message      string  `json:"message,omitempty"`
}

// Channel delivers a payment notice to a destination address.
type Channel interface {
	Deliver(ctx context.Context, p Payload) error
}

func (p Payload) validate() error {
	if p.ReferenceID == "" {
		return fmt.Errorf("payload missing reference id")
	}
	if p.Destination == "" {
		return fmt.Errorf("payload missing destination")
	}
	return nil
}
