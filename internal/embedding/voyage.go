package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"
)

const voyageAPI = "https://api.voyageai.com/v1/embeddings"

// Embedder turns texts into vectors
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Service handles embedding generation via Voyage AI
type Service struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// New creates a new embedding Service
func New(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("voyage api key not set")
	}

	return &Service{
		apiKey:   apiKey,
		model:    "voyage-3-lite",
		endpoint: voyageAPI,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EmbedBatch generates embeddings for multiple texts
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: s.model,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vectors := make([][]float64, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vectors[i] = d.Embedding
	}

	return vectors, nil
}

// CosineSimilarity computes similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scorer rates food names by embedding similarity.
// Vectors are memoized per string; a failed lookup scores 0.
type Scorer struct {
	embedder Embedder
	timeout  time.Duration

	mu      sync.Mutex
	vectors map[string][]float64
}

// NewScorer wraps an Embedder as a similarity scorer
func NewScorer(e Embedder) *Scorer {
	return &Scorer{
		embedder: e,
		timeout:  30 * time.Second,
		vectors:  make(map[string][]float64),
	}
}

// Warm embeds the given texts in one batch so later scoring is local
func (s *Scorer) Warm(ctx context.Context, texts []string) error {
	var missing []string
	s.mu.Lock()
	for _, t := range texts {
		if _, ok := s.vectors[t]; !ok {
			missing = append(missing, t)
		}
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}

	s.mu.Lock()
	for i, t := range missing {
		s.vectors[t] = vectors[i]
	}
	s.mu.Unlock()
	return nil
}

// Score returns cosine similarity scaled to 0-100
func (s *Scorer) Score(a, b string) int {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Warm(ctx, []string{a, b}); err != nil {
		log.Printf("embedding score %q/%q: %v", a, b, err)
		return 0
	}

	s.mu.Lock()
	va, vb := s.vectors[a], s.vectors[b]
	s.mu.Unlock()

	sim := CosineSimilarity(va, vb)
	if sim < 0 {
		return 0
	}
	return int(math.Round(sim * 100))
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}
