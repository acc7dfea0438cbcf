package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func payload() Payload {
	return Payload{ReferenceID: "ref-1", ObligationID: "o1", Amount: 150, Destination: "a@b.com"}
}

func TestHTTPChannelDelivers(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewHTTPChannel(HTTPConfig{Endpoint: srv.URL})
	if err := c.Deliver(context.Background(), payload()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotKey.Load() != "ref-1" {
		t.Fatalf("Idempotency-Key = %v, want ref-1", gotKey.Load())
	}
}

func TestHTTPChannelRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPChannel(HTTPConfig{Endpoint: srv.URL, MaxAttempts: 3})
	if err := c.Deliver(context.Background(), payload()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPChannelGivesUpOnPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPChannel(HTTPConfig{Endpoint: srv.URL, MaxAttempts: 3})
	err := c.Deliver(context.Background(), payload())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("Deliver() error = %v, want ErrDeliveryFailed", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want no retry on 400", calls.Load())
	}
}

func TestHTTPChannelRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewHTTPChannel(HTTPConfig{Endpoint: srv.URL})
	if err := c.Deliver(ctx, payload()); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("Deliver() error = %v, want ErrDeliveryFailed", err)
	}
}

func TestMockChannelIdempotentPerReference(t *testing.T) {
	c := NewMockChannel()
	if err := c.Deliver(context.Background(), payload()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if err := c.Deliver(context.Background(), payload()); err != nil {
		t.Fatalf("redeliver error = %v", err)
	}
	if got := len(c.Delivered()); got != 1 {
		t.Fatalf("Delivered() = %d records, want 1", got)
	}
}

func TestMockChannelFailureInjection(t *testing.T) {
	c := NewMockChannel()
	c.FailNext(1)
	if err := c.Deliver(context.Background(), payload()); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("Deliver() error = %v, want ErrDeliveryFailed", err)
	}
	if err := c.Deliver(context.Background(), payload()); err != nil {
		t.Fatalf("Deliver() after injection error = %v", err)
	}
}
