package fitness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemotePredictor calls a TensorFlow Serving style REST endpoint
// (POST {"instances":[[...]]} -> {"predictions":[[...]]}).
type RemotePredictor struct {
	url        string
	httpClient *http.Client
}

// NewRemotePredictor creates a predictor for url.
func NewRemotePredictor(url string, timeout time.Duration) *RemotePredictor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemotePredictor{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type predictRequest struct {
	Instances [][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// Predict returns the first prediction row.
func (p *RemotePredictor) Predict(ctx context.Context, features []float32) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: [][]float32{features}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predictor error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out predictResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("predictor error: %s", out.Error)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("predictor returned no predictions")
	}
	return out.Predictions[0], nil
}
