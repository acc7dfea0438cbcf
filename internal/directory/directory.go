package directory

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("directory: not found")

// Customer is a read-only profile owned by the loan directory.
type Customer struct {
	ID            string `json:"customer_id"`
	Name          string `json:"name"`
	Language      string `json:"language"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	MissedPromise int    `json:"missed_promises"`
}

type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "pending"
	ObligationPromised  ObligationStatus = "promised"
	ObligationPaid      ObligationStatus = "paid"
	ObligationEscalated ObligationStatus = "escalated"
)

// Obligation is one overdue installment. Amount and due date are read-only
// inputs from the directory; only Status is mutated by decisions here.
type Obligation struct {
	ID          string           `json:"obligation_id"`
	CustomerID  string           `json:"customer_id"`
	AmountDue   float64          `json:"amount_due"`
	LoanAmount  float64          `json:"loan_amount"`
	Outstanding float64          `json:"outstanding"`
	DueDate     time.Time        `json:"due_date"`
	OverdueDays int              `json:"overdue_days"`
	Status      ObligationStatus `json:"status"`
}

// Directory is the customer/loan lookup collaborator.
type Directory interface {
	FetchCustomer(ctx context.Context, customerID string) (Customer, error)
	FetchObligation(ctx context.Context, customerID string) (Obligation, error)
	// DueWithin lists pending obligations whose due date falls inside the
	// window ending the given number of days from now. Used by the campaign
	// sweep; implementations may return an empty slice.
	DueWithin(ctx context.Context, days int) ([]Obligation, error)
}
