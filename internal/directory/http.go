package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPDirectory talks to the loan servicing system over its REST API.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewHTTPDirectory(cfg HTTPConfig) *HTTPDirectory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDirectory{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) FetchCustomer(ctx context.Context, customerID string) (Customer, error) {
	var c Customer
	err := d.getJSON(ctx, "/v1/customers/"+url.PathEscape(customerID), &c)
	return c, err
}

func (d *HTTPDirectory) FetchObligation(ctx context.Context, customerID string) (Obligation, error) {
	var o Obligation
	err := d.getJSON(ctx, "/v1/customers/"+url.PathEscape(customerID)+"/obligation", &o)
	return o, err
}

func (d *HTTPDirectory) DueWithin(ctx context.Context, days int) ([]Obligation, error) {
	var out []Obligation
	err := d.getJSON(ctx, "/v1/obligations/due?days="+strconv.Itoa(days), &out)
	return out, err
}

func (d *HTTPDirectory) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory request %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response %s: %w", path, err)
	}
	return nil
}

// NewDirectory selects an implementation at configuration time: HTTP when a
// base URL is configured, otherwise the in-process static directory.
func NewDirectory(baseURL string, timeout time.Duration) Directory {
	if baseURL == "" {
		return NewStaticDirectory()
	}
	return NewHTTPDirectory(HTTPConfig{BaseURL: baseURL, Timeout: timeout})
}
