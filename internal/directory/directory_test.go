package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStaticDirectoryLookup(t *testing.T) {
	d := NewStaticDirectory()
	d.PutCustomer(Customer{ID: "c1", Name: "Asha", Email: "asha@example.com"})
	d.PutObligation(Obligation{ID: "o1", CustomerID: "c1", AmountDue: 150, Status: ObligationPending})

	c, err := d.FetchCustomer(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FetchCustomer() error = %v", err)
	}
	if c.Name != "Asha" {
		t.Fatalf("FetchCustomer() = %+v", c)
	}

	o, err := d.FetchObligation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FetchObligation() error = %v", err)
	}
	if o.AmountDue != 150 {
		t.Fatalf("FetchObligation() = %+v", o)
	}

	if _, err := d.FetchObligation(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchObligation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStaticDirectoryDueWithin(t *testing.T) {
	d := NewStaticDirectory()
	now := time.Now().UTC()
	d.PutObligation(Obligation{ID: "o1", CustomerID: "c1", DueDate: now.AddDate(0, 0, 2), Status: ObligationPending})
	d.PutObligation(Obligation{ID: "o2", CustomerID: "c2", DueDate: now.AddDate(0, 0, 30), Status: ObligationPending})
	d.PutObligation(Obligation{ID: "o3", CustomerID: "c3", DueDate: now.AddDate(0, 0, 1), Status: ObligationPaid})

	due, err := d.DueWithin(context.Background(), 7)
	if err != nil {
		t.Fatalf("DueWithin() error = %v", err)
	}
	if len(due) != 1 || due[0].ID != "o1" {
		t.Fatalf("DueWithin() = %+v, want only o1", due)
	}
}

func TestHTTPDirectoryFetchObligation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/customers/c1/obligation":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"obligation_id":"o1","customer_id":"c1","amount_due":150,"status":"pending"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := NewHTTPDirectory(HTTPConfig{BaseURL: srv.URL})
	o, err := d.FetchObligation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FetchObligation() error = %v", err)
	}
	if o.ID != "o1" || o.AmountDue != 150 {
		t.Fatalf("FetchObligation() = %+v", o)
	}

	if _, err := d.FetchObligation(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchObligation(nope) error = %v, want ErrNotFound", err)
	}
}
