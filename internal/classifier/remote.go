package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pbaille/nutriscan/internal/domain"
)

// maxResponseSize bounds what is read from the inference endpoint
const maxResponseSize = 1 << 20

// RemoteModel calls a model served over HTTP
type RemoteModel struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewRemoteModel creates a client for an inference endpoint
func NewRemoteModel(endpoint, apiKey string) (*RemoteModel, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("model endpoint not set")
	}

	return &RemoteModel{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type predictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type predictResponse struct {
	Predictions []int `json:"predictions"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Predict implements Model
func (m *RemoteModel) Predict(ctx context.Context, v domain.FeatureVector) (int, error) {
	reqBody := predictRequest{
		Columns: domain.FeatureColumns[:],
		Rows:    [][]float64{v.Values()},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return 0, fmt.Errorf("response larger than %d bytes", maxResponseSize)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model error (status %d): %s", resp.StatusCode, string(body))
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}

	if out.Error != nil {
		return 0, fmt.Errorf("model error: %s", out.Error.Message)
	}

	if len(out.Predictions) == 0 {
		return 0, fmt.Errorf("empty response")
	}

	return out.Predictions[0], nil
}
