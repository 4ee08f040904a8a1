// Package api is the HTTP client for the license validation and telemetry
// endpoints. Validation maps transport and status outcomes onto the discrete
// verdict set; telemetry is fire-and-forget.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"dt-go/internal/dt"
)

// Client talks to the license API.
type Client struct {
	baseURL   string
	machineID string
	version   string
	httpc     *http.Client
	logger    dt.Logger
	inflight  sync.WaitGroup
}

// NewClient creates a Client. The base URL must be HTTPS — the license key is
// never sent over an unencrypted channel. Loopback addresses are exempt so
// local test servers work.
func NewClient(baseURL, machineID, version string, timeout time.Duration, logger dt.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "https" && !isLoopback(u.Hostname()) {
		return nil, fmt.Errorf("API base URL %q is not https", baseURL)
	}

	return &Client{
		baseURL:   baseURL,
		machineID: machineID,
		version:   version,
		httpc:     &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

type validateRequest struct {
	LicenseKey string `json:"license_key"`
	Action     string `json:"action"`
	MachineID  string `json:"machine_id"`
}

type validateResponse struct {
	Status        string `json:"status"` // "active" or "trial"
	DaysRemaining int    `json:"days_remaining"`
}

// Validate checks the key against POST /licenses/validate.
// Transport failures and 5xx responses are reported as unreachable, never as
// an error: the caller's grace-window logic decides what that means.
func (c *Client) Validate(ctx context.Context, key, action string) *dt.ValidationResult {
	body, err := json.Marshal(validateRequest{LicenseKey: key, Action: action, MachineID: c.machineID})
	if err != nil {
		c.logger.Warn("encoding validation request", "error", err)
		return &dt.ValidationResult{Verdict: dt.VerdictUnreachable}
	}

	resp, err := c.post(ctx, "/licenses/validate", body)
	if err != nil {
		c.logger.Warn("license server unreachable", "error", err)
		return &dt.ValidationResult{Verdict: dt.VerdictUnreachable}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var vr validateResponse
		if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
			c.logger.Warn("decoding validation response", "error", err)
			return &dt.ValidationResult{Verdict: dt.VerdictUnreachable}
		}
		if vr.Status == "trial" {
			return &dt.ValidationResult{Verdict: dt.VerdictTrial, DaysRemaining: vr.DaysRemaining}
		}
		return &dt.ValidationResult{Verdict: dt.VerdictValid, DaysRemaining: vr.DaysRemaining}
	case http.StatusUnauthorized:
		return &dt.ValidationResult{Verdict: dt.VerdictInvalid}
	case http.StatusPaymentRequired:
		return &dt.ValidationResult{Verdict: dt.VerdictExpired}
	default:
		c.logger.Warn("unexpected validation status", "status", resp.StatusCode)
		return &dt.ValidationResult{Verdict: dt.VerdictUnreachable}
	}
}

type telemetryEvent struct {
	LicenseKey string `json:"license_key"`
	Event      string `json:"event"`
	Version    string `json:"version"`
	OS         string `json:"os"`
	MachineID  string `json:"machine_id"`
}

// Emit sends a telemetry event without waiting for the result. The main flow
// never blocks on it and never learns whether it arrived.
func (c *Client) Emit(key, event string) {
	body, err := json.Marshal(telemetryEvent{
		LicenseKey: key,
		Event:      event,
		Version:    c.version,
		OS:         runtime.GOOS,
		MachineID:  c.machineID,
	})
	if err != nil {
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		resp, err := c.post(ctx, "/telemetry", body)
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
}

// Drain waits up to the given duration for in-flight telemetry to finish.
// Events emitted at the very end of a run would otherwise die with the
// process before the request leaves. The result is still never observed.
func (c *Client) Drain(wait time.Duration) {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(wait):
	}
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("server error %d", resp.StatusCode)
	}
	return resp, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Compile-time checks against the domain interfaces.
var (
	_ dt.Validator = (*Client)(nil)
	_ dt.Telemeter = (*Client)(nil)
)
