// Package classifier is the gateway to the external AI service that routes
// citizen reports to a municipal department. The service is consumed, not
// implemented; this client owns the contract and the failure mapping.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/civic-gov/platform/internal/issue/domain"
	"github.com/civic-gov/platform/internal/shared/config"
	"github.com/civic-gov/platform/internal/shared/errors"
)

// Result is a successful classification of a citizen report
type Result struct {
	Department domain.Department `json:"department"`
	Priority   domain.Priority   `json:"priority"`
	Summary    string            `json:"summary"`
}

// Client calls the classification service
type Client struct {
	baseURL    string
	httpClient *http.Client
	enabled    bool
}

// NewClient creates a classifier client
func NewClient(cfg config.ClassifierConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		enabled: cfg.Enabled,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Department string `json:"department"`
	Priority   string `json:"priority"`
	Summary    string `json:"summary"`
	Rejected   bool   `json:"rejected"`
	Reason     string `json:"reason,omitempty"`
}

// Classify sends report text to the service and returns the routing
// decision. A rejection (text the service refuses to route) surfaces as a
// validation error; an unreachable or misbehaving service as unavailable.
func (c *Client) Classify(ctx context.Context, text string) (*Result, error) {
	if text == "" {
		return nil, errors.Validation("report text is required", map[string]string{"text": "required"})
	}
	if !c.enabled {
		return nil, errors.Unavailable(fmt.Errorf("classifier disabled"), "classification service is not configured")
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal classify request: %w", err))
	}

	url := c.baseURL + "/v1/classify"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to create classify request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The deadline can come from the caller's context or from the
		// client's own timeout; os.IsTimeout covers both url.Error and
		// net-level timeouts.
		if ctx.Err() == context.DeadlineExceeded || os.IsTimeout(err) {
			return nil, errors.Timeout("classify report")
		}
		return nil, errors.Unavailable(err, "classification service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Unavailable(
			fmt.Errorf("status %d", resp.StatusCode),
			"classification service returned an error")
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Unavailable(err, "failed to decode classification response")
	}

	if result.Rejected {
		reason := result.Reason
		if reason == "" {
			reason = "report could not be classified as a civic issue"
		}
		return nil, errors.Validation(reason, map[string]string{"text": "rejected"})
	}

	dept := domain.Department(result.Department)
	if !dept.IsValid() {
		return nil, errors.Unavailable(
			fmt.Errorf("unknown department %q", result.Department),
			"classification service returned an unknown department")
	}

	priority := domain.Priority(result.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}

	return &Result{
		Department: dept,
		Priority:   priority,
		Summary:    result.Summary,
	}, nil
}
