package classifier

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/nutrient"
)

func TestGenderCode(t *testing.T) {
	tests := []struct {
		gender  string
		want    int
		wantErr bool
	}{
		{"Female", 0, false},
		{"Male", 1, false},
		{"Other", 2, false},
		{"female", 0, true},
		{"", 0, true},
		{"Unknown", 0, true},
	}

	for _, tt := range tests {
		got, err := GenderCode(tt.gender)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("GenderCode(%q) err = %v, want ErrInvalidInput", tt.gender, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("GenderCode(%q) = %d, %v; want %d", tt.gender, got, err, tt.want)
		}
	}
}

func TestLabelFor(t *testing.T) {
	want := []domain.Label{
		domain.LabelB12,
		domain.LabelCalcium,
		domain.LabelIron,
		domain.LabelNoDeficiency,
		domain.LabelVitaminD,
	}
	for class, label := range want {
		if got := LabelFor(class); got != label {
			t.Errorf("LabelFor(%d) = %q, want %q", class, got, label)
		}
	}
	for _, class := range []int{-1, 5, 42} {
		if got := LabelFor(class); got != domain.LabelUnknown {
			t.Errorf("LabelFor(%d) = %q, want Unknown", class, got)
		}
	}
}

func TestBuildFeatureVectorRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		age    int
		gender string
		w, h   float64
	}{
		{"gender", 25, "Nonbinary", 55, 160},
		{"age", 0, "Female", 55, 160},
		{"weight", 25, "Female", 0, 160},
		{"height", 25, "Female", 55, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFeatureVector(tt.age, tt.gender, tt.w, tt.h, domain.NutrientTotals{}, domain.Symptoms{})
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEndToEndVector(t *testing.T) {
	catalog, err := nutrient.LoadCSV(strings.NewReader(`Food_Item,Iron_mg,B12_ug,VitaminD_IU,Calcium_mg
rice,0.8,0,0,10
curd,0.2,0.4,5,120
spinach,2.0,0,0,99
`))
	if err != nil {
		t.Fatal(err)
	}
	agg := nutrient.NewAggregator(catalog)

	totals, _ := agg.AggregateLog(domain.FoodLog{"2024-05-01": {"rice", "curd", "spinach"}}, nil)
	v, err := BuildFeatureVector(25, "Female", 55, 160, totals, domain.Symptoms{})
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(v.BMI-21.484375) > 1e-9 {
		t.Errorf("BMI = %v, want 21.484375", v.BMI)
	}

	want := []float64{25, 0, 55, 160, 21.484375, 237, 0, 0, 0, 0, 0, 0}
	got := v.Values()
	if len(got) != len(domain.FeatureColumns) {
		t.Fatalf("vector has %d fields, want %d", len(got), len(domain.FeatureColumns))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("field %s = %v, want %v", domain.FeatureColumns[i], got[i], want[i])
		}
	}

	for class := 0; class <= 5; class++ {
		m := ModelFunc(func(context.Context, domain.FeatureVector) (int, error) { return class, nil })
		label, err := Predict(context.Background(), v, m)
		if err != nil {
			t.Fatal(err)
		}
		if label != LabelFor(class) {
			t.Errorf("class %d -> %q", class, label)
		}
	}
}

func TestSymptomOrder(t *testing.T) {
	v := domain.FeatureVector{Symptoms: domain.Symptoms{PaleSkin: true, BonePain: true}}
	got := v.Values()[6:]
	want := []float64{0, 1, 0, 0, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("symptom flags = %v, want %v", got, want)
		}
	}
}

func TestPredictModelError(t *testing.T) {
	m := ModelFunc(func(context.Context, domain.FeatureVector) (int, error) {
		return 0, errors.New("unavailable")
	})
	label, err := Predict(context.Background(), domain.FeatureVector{}, m)
	if err == nil {
		t.Fatal("expected error")
	}
	if label != domain.LabelUnknown {
		t.Errorf("label = %q", label)
	}
}
