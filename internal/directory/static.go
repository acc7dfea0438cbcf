package directory

import (
	"context"
	"sync"
	"time"
)

// StaticDirectory is an in-process directory for local runs and tests.
type StaticDirectory struct {
	mu          sync.RWMutex
	customers   map[string]Customer
	obligations map[string]Obligation
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		customers:   make(map[string]Customer),
		obligations: make(map[string]Obligation),
	}
}

func (d *StaticDirectory) PutCustomer(c Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[c.ID] = c
}

// PutObligation registers the customer's current due installment, replacing
// any previous one.
func (d *StaticDirectory) PutObligation(o Obligation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obligations[o.CustomerID] = o
}

func (d *StaticDirectory) FetchCustomer(_ context.Context, customerID string) (Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.customers[customerID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (d *StaticDirectory) FetchObligation(_ context.Context, customerID string) (Obligation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.obligations[customerID]
	if !ok {
		return Obligation{}, ErrNotFound
	}
	return o, nil
}

func (d *StaticDirectory) DueWithin(_ context.Context, days int) ([]Obligation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cutoff := time.Now().UTC().AddDate(0, 0, days)
	var out []Obligation
	for _, o := range d.obligations {
		if o.Status != ObligationPending {
			continue
		}
		if o.DueDate.After(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
