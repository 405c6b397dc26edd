// Package triage orchestrates the ranking of pending appointments: it sends
// cases to the external ranker (or a local simulator), writes the decisions
// back, and rebuilds the day's queue.
package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opd/opd/internal/domain/appointment"
)

// Ranker turns a batch of triage cases into ranked decisions.
type Ranker interface {
	Rank(ctx context.Context, cases []*appointment.TriageCase) ([]appointment.TriageResult, error)
}

// Client calls the external triage ranking service. Ranking a large batch is
// slow, so the timeout is generous by default.
type Client struct {
	baseURL string
	http    *http.Client
}

const DefaultTimeout = 90 * time.Second

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type sortRequest struct {
	Patients []*appointment.TriageCase `json:"patients"`
}

type sortResponse struct {
	Results []appointment.TriageResult `json:"results"`
}

// Rank posts the batch to the ranker's /sort endpoint and returns its
// decisions in ranked order.
func (c *Client) Rank(ctx context.Context, cases []*appointment.TriageCase) ([]appointment.TriageResult, error) {
	body, err := json.Marshal(sortRequest{Patients: cases})
	if err != nil {
		return nil, fmt.Errorf("marshal triage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sort", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build triage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call triage service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("triage service returned status %d", resp.StatusCode)
	}

	var out sortResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode triage response: %w", err)
	}
	return out.Results, nil
}
