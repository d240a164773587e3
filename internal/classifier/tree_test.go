package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pbaille/nutriscan/internal/domain"
)

func TestDefaultModel(t *testing.T) {
	m, err := DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel: %v", err)
	}

	tests := []struct {
		name     string
		symptoms domain.Symptoms
		score    float64
		want     domain.Label
	}{
		{"no symptoms", domain.Symptoms{}, 237, domain.LabelNoDeficiency},
		{"tingling", domain.Symptoms{Tingling: true}, 237, domain.LabelB12},
		{"bone pain low intake", domain.Symptoms{BonePain: true}, 100, domain.LabelCalcium},
		{"bone pain high intake", domain.Symptoms{BonePain: true}, 400, domain.LabelVitaminD},
		{"pale skin", domain.Symptoms{PaleSkin: true}, 237, domain.LabelIron},
		{"fatigue and hair loss", domain.Symptoms{Fatigue: true, HairLoss: true}, 237, domain.LabelIron},
		{"fatigue only", domain.Symptoms{Fatigue: true}, 237, domain.LabelNoDeficiency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := domain.FeatureVector{Age: 25, WeightKg: 55, HeightCm: 160, FoodScore: tt.score, Symptoms: tt.symptoms}
			label, err := Predict(context.Background(), v, m)
			if err != nil {
				t.Fatal(err)
			}
			if label != tt.want {
				t.Errorf("got %q, want %q", label, tt.want)
			}
		})
	}
}

func TestTreeModelVotes(t *testing.T) {
	leaf := func(c int) string {
		return `{"nodes":[{"left":-1,"right":-1,"class":` + string(rune('0'+c)) + `}]}`
	}
	in := `{"trees":[` + leaf(4) + `,` + leaf(2) + `,` + leaf(4) + `]}`

	m, err := LoadTreeModel(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	class, _ := m.Predict(context.Background(), domain.FeatureVector{})
	if class != 4 {
		t.Errorf("class = %d, want 4", class)
	}

	// tie goes to the lowest class
	m, err = LoadTreeModel(strings.NewReader(`{"trees":[` + leaf(3) + `,` + leaf(1) + `]}`))
	if err != nil {
		t.Fatal(err)
	}
	class, _ = m.Predict(context.Background(), domain.FeatureVector{})
	if class != 1 {
		t.Errorf("class = %d, want 1", class)
	}
}

func TestLoadTreeModelRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{`},
		{"no trees", `{"trees":[]}`},
		{"empty tree", `{"trees":[{"nodes":[]}]}`},
		{"wrong columns", `{"columns":["Age"],"trees":[{"nodes":[{"left":-1,"right":-1}]}]}`},
		{"feature out of range", `{"trees":[{"nodes":[{"feature":12,"left":1,"right":2},{"left":-1,"right":-1},{"left":-1,"right":-1}]}]}`},
		{"cycle", `{"trees":[{"nodes":[{"feature":0,"left":0,"right":1},{"left":-1,"right":-1}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTreeModel(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRemoteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Rows) != 1 || len(req.Rows[0]) != 12 || req.Columns[4] != "BMMI" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"predictions": []int{7}})
	}))
	defer srv.Close()

	m, err := NewRemoteModel(srv.URL, "secret")
	if err != nil {
		t.Fatal(err)
	}

	label, err := Predict(context.Background(), domain.FeatureVector{Age: 30}, m)
	if err != nil {
		t.Fatal(err)
	}
	if label != domain.LabelUnknown {
		t.Errorf("label = %q, want Unknown for class 7", label)
	}

	bad, _ := NewRemoteModel(srv.URL, "wrong")
	if _, err := bad.Predict(context.Background(), domain.FeatureVector{}); err == nil {
		t.Error("expected error on 401")
	}

	if _, err := NewRemoteModel("", ""); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestRemoteModelRejectsOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[1],"pad":"`))
		w.Write(bytes.Repeat([]byte("x"), maxResponseSize))
		w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	m, err := NewRemoteModel(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Predict(context.Background(), domain.FeatureVector{Age: 30})
	if err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Errorf("err = %v, want size error", err)
	}
}
