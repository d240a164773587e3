package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pbaille/nutriscan/internal/domain"
)

// ErrInvalidInput is returned for demographics the model cannot encode
var ErrInvalidInput = errors.New("invalid input")

// Model is a trained classifier: one feature vector in, one class id out
type Model interface {
	Predict(ctx context.Context, v domain.FeatureVector) (int, error)
}

// ModelFunc adapts a function to Model
type ModelFunc func(ctx context.Context, v domain.FeatureVector) (int, error)

// Predict calls f(ctx, v)
func (f ModelFunc) Predict(ctx context.Context, v domain.FeatureVector) (int, error) {
	return f(ctx, v)
}

var genderCodes = map[string]int{
	domain.GenderFemale: 0,
	domain.GenderMale:   1,
	domain.GenderOther:  2,
}

// labels maps model class ids to labels
var labels = map[int]domain.Label{
	0: domain.LabelB12,
	1: domain.LabelCalcium,
	2: domain.LabelIron,
	3: domain.LabelNoDeficiency,
	4: domain.LabelVitaminD,
}

// GenderCode encodes a gender exactly as the model was trained.
// There is no default.
func GenderCode(gender string) (int, error) {
	code, ok := genderCodes[gender]
	if !ok {
		return 0, fmt.Errorf("%w: gender %q", ErrInvalidInput, gender)
	}
	return code, nil
}

// LabelFor maps a class id to its label, or LabelUnknown
func LabelFor(class int) domain.Label {
	if l, ok := labels[class]; ok {
		return l
	}
	return domain.LabelUnknown
}

// BMI computes body mass index from kilograms and centimeters
func BMI(weightKg, heightCm float64) float64 {
	h := heightCm / 100
	return weightKg / (h * h)
}

// FoodScore collapses nutrient totals into the model's single food feature.
// Units are summed as-is.
func FoodScore(t domain.NutrientTotals) float64 {
	return math.Floor(t.Sum())
}

// BuildFeatureVector assembles the model input
func BuildFeatureVector(age int, gender string, weightKg, heightCm float64, totals domain.NutrientTotals, symptoms domain.Symptoms) (domain.FeatureVector, error) {
	code, err := GenderCode(gender)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	if age <= 0 {
		return domain.FeatureVector{}, fmt.Errorf("%w: age must be positive", ErrInvalidInput)
	}
	if weightKg <= 0 || heightCm <= 0 {
		return domain.FeatureVector{}, fmt.Errorf("%w: weight and height must be positive", ErrInvalidInput)
	}

	return domain.FeatureVector{
		Age:        float64(age),
		GenderCode: float64(code),
		WeightKg:   weightKg,
		HeightCm:   heightCm,
		BMI:        BMI(weightKg, heightCm),
		FoodScore:  FoodScore(totals),
		Symptoms:   symptoms,
	}, nil
}

// Predict runs the model and maps its output to a label.
// Unknown class ids yield LabelUnknown rather than an error.
func Predict(ctx context.Context, v domain.FeatureVector, m Model) (domain.Label, error) {
	class, err := m.Predict(ctx, v)
	if err != nil {
		return domain.LabelUnknown, fmt.Errorf("model predict: %w", err)
	}
	return LabelFor(class), nil
}
