package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	calls   int
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 2}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScorerMemoizes(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float64{
		"curd":   {1, 0},
		"yogurt": {1, 0.1},
		"rice":   {0, 1},
	}}
	s := NewScorer(f)

	if err := s.Warm(context.Background(), []string{"curd", "yogurt", "rice"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Score("curd", "yogurt"); got < 99 {
		t.Errorf("curd/yogurt = %d, want >= 99", got)
	}
	if got := s.Score("curd", "rice"); got != 0 {
		t.Errorf("curd/rice = %d, want 0", got)
	}
	if f.calls != 1 {
		t.Errorf("embedder called %d times, want 1", f.calls)
	}
}

func TestScorerErrorScoresZero(t *testing.T) {
	s := NewScorer(&fakeEmbedder{err: errors.New("boom")})
	if got := s.Score("a", "b"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestServiceEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		var resp embeddingResponse
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
			}{Embedding: []float64{0.5, 0.5}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s, err := New("key")
	if err != nil {
		t.Fatal(err)
	}
	s.endpoint = srv.URL

	vectors, err := s.EmbedBatch(context.Background(), []string{"milk", "ragi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 {
		t.Errorf("got %d vectors, want 2", len(vectors))
	}

	if _, err := New(""); err == nil {
		t.Error("expected error for missing key")
	}
}
