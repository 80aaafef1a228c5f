package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client communicates with an externally hosted model-serving service. It
// satisfies hive.Model, so a remote classifier slots in wherever a local
// artifact would.
type Client struct {
	serviceURL string
	client     *http.Client
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

// predictResponse is the service's answer: the winning label index plus the
// full per-label distribution.
type predictResponse struct {
	LabelIndex    int       `json:"label_index"`
	Probabilities []float64 `json:"probabilities"`
}

// NewClient creates a client for the model service at serviceURL.
func NewClient(serviceURL string) *Client {
	if serviceURL == "" {
		serviceURL = "http://localhost:5002"
	}

	return &Client{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HealthCheck verifies the model service is running.
func (c *Client) HealthCheck() error {
	resp, err := c.client.Get(c.serviceURL + "/health")
	if err != nil {
		return fmt.Errorf("model service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// PredictIndex returns the predicted label index for a feature vector.
func (c *Client) PredictIndex(vector []float64) (int, error) {
	result, err := c.predict(vector)
	if err != nil {
		return 0, err
	}
	return result.LabelIndex, nil
}

// PredictProba returns the per-label probability distribution.
func (c *Client) PredictProba(vector []float64) ([]float64, error) {
	result, err := c.predict(vector)
	if err != nil {
		return nil, err
	}
	if len(result.Probabilities) == 0 {
		return nil, fmt.Errorf("model service returned empty distribution")
	}
	return result.Probabilities, nil
}

func (c *Client) predict(vector []float64) (*predictResponse, error) {
	payload, err := json.Marshal(predictRequest{Features: vector})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.serviceURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
