package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPConfig configures HTTPDriver (spec.md 6: "POST with
// Content-Type: application/json and configurable bearer header").
type HTTPConfig struct {
	URL           string
	BearerToken   string
	BearerHeader  string // defaults to "Authorization"
	RequestTimeout time.Duration
}

// HTTPDriver dispatches measurements via an HTTP(S) callback. Built on
// the standard net/http client: no pack repo carries an HTTP client
// library beyond stdlib, and a bare POST-JSON callback has no surface
// that would benefit from one.
type HTTPDriver struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPDriver(cfg HTTPConfig) *HTTPDriver {
	if cfg.BearerHeader == "" {
		cfg.BearerHeader = "Authorization"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &HTTPDriver{cfg: cfg, client: &http.Client{Timeout: cfg.RequestTimeout}}
}

func (d *HTTPDriver) Initialize(ctx context.Context) error { return nil }

func (d *HTTPDriver) Dispatch(ctx context.Context, m Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("action/http: marshal measurement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("action/http: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", m.DispatchID)
	if d.cfg.BearerToken != "" {
		req.Header.Set(d.cfg.BearerHeader, "Bearer "+d.cfg.BearerToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("action/http: dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("action/http: callback returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *HTTPDriver) HealthCheck(ctx context.Context) error { return nil }

func (d *HTTPDriver) Shutdown(ctx context.Context) error { return nil }
