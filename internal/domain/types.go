package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// DateLayout is the key format of a FoodLog
const DateLayout = "2006-01-02"

// NutrientRecord is one row of the reference catalog
type NutrientRecord struct {
	FoodName   string  `json:"food_name"`
	IronMg     float64 `json:"iron_mg"`
	B12Ug      float64 `json:"b12_ug"`
	VitaminDIU float64 `json:"vitamin_d_iu"`
	CalciumMg  float64 `json:"calcium_mg"`
}

// Totals returns the record as a single-item accumulator
func (r NutrientRecord) Totals() NutrientTotals {
	return NutrientTotals{
		Iron:     r.IronMg,
		B12:      r.B12Ug,
		VitaminD: r.VitaminDIU,
		Calcium:  r.CalciumMg,
	}
}

// NutrientTotals accumulates the four tracked nutrients.
// The zero value is the additive identity.
type NutrientTotals struct {
	Iron     float64 `json:"iron"`
	B12      float64 `json:"b12"`
	VitaminD float64 `json:"vitamin_d"`
	Calcium  float64 `json:"calcium"`
}

// Add returns t + o
func (t NutrientTotals) Add(o NutrientTotals) NutrientTotals {
	return NutrientTotals{
		Iron:     t.Iron + o.Iron,
		B12:      t.B12 + o.B12,
		VitaminD: t.VitaminD + o.VitaminD,
		Calcium:  t.Calcium + o.Calcium,
	}
}

// Scale multiplies every field by f
func (t NutrientTotals) Scale(f float64) NutrientTotals {
	return NutrientTotals{
		Iron:     t.Iron * f,
		B12:      t.B12 * f,
		VitaminD: t.VitaminD * f,
		Calcium:  t.Calcium * f,
	}
}

// Sum adds the four fields together regardless of unit
func (t NutrientTotals) Sum() float64 {
	return t.Iron + t.B12 + t.VitaminD + t.Calcium
}

// FoodLogEntry is one day of logged food
type FoodLogEntry struct {
	Date  string   `json:"date"`
	Items []string `json:"items"`
}

// FoodLog maps a date (DateLayout) to the foods eaten that day
type FoodLog map[string][]string

// Entries returns the log sorted by date
func (l FoodLog) Entries() []FoodLogEntry {
	days := make([]string, 0, len(l))
	for d := range l {
		days = append(days, d)
	}
	sort.Strings(days)

	entries := make([]FoodLogEntry, 0, len(days))
	for _, d := range days {
		entries = append(entries, FoodLogEntry{Date: d, Items: l[d]})
	}
	return entries
}

// Gender values accepted by the classifier
const (
	GenderFemale = "Female"
	GenderMale   = "Male"
	GenderOther  = "Other"
)

// AllergyOptions are the selectable allergies
var AllergyOptions = []string{"milk", "curd", "paneer", "eggs", "peanuts", "gluten", "soy", "fish", "sesame"}

// HealthConditionOptions are the selectable health conditions
var HealthConditionOptions = []string{"diabetes", "hypertension", "thyroid", "pcos", "anemia", "pregnancy", "none"}

// UserProfile holds what a user declared about themselves
type UserProfile struct {
	Name             string     `json:"name"`
	Age              int        `json:"age"`
	Gender           string     `json:"gender"`
	Allergies        AllergySet `json:"allergies"`
	HealthConditions string     `json:"health_conditions"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ErrInvalidProfile is returned for profile values outside the option lists
var ErrInvalidProfile = errors.New("invalid profile")

// Validate checks the profile against the selectable options.
// Gender may be left empty until the first assessment.
func (p *UserProfile) Validate() error {
	switch p.Gender {
	case "", GenderFemale, GenderMale, GenderOther:
	default:
		return fmt.Errorf("%w: gender %q", ErrInvalidProfile, p.Gender)
	}
	if p.Age < 0 {
		return fmt.Errorf("%w: age %d", ErrInvalidProfile, p.Age)
	}
	for a := range p.Allergies {
		if !slices.Contains(AllergyOptions, a) {
			return fmt.Errorf("%w: allergy %q is not one of %s", ErrInvalidProfile, a, strings.Join(AllergyOptions, ", "))
		}
	}
	for _, c := range p.Conditions() {
		if !slices.Contains(HealthConditionOptions, c) {
			return fmt.Errorf("%w: health condition %q is not one of %s", ErrInvalidProfile, c, strings.Join(HealthConditionOptions, ", "))
		}
	}
	return nil
}

// Conditions splits HealthConditions into normalized names
func (p *UserProfile) Conditions() []string {
	var out []string
	for _, c := range strings.Split(p.HealthConditions, ",") {
		if c = Normalize(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// AllergySet is a set of normalized food names.
// It encodes as a sorted JSON array.
type AllergySet map[string]bool

// List returns the set sorted
func (s AllergySet) List() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s AllergySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes an array of names, normalizing each
func (s *AllergySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewAllergySet(names)
	return nil
}

// Normalize trims, lower-cases and collapses inner whitespace
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NewAllergySet normalizes names into a set, dropping blanks
func NewAllergySet(names []string) AllergySet {
	set := make(AllergySet, len(names))
	for _, n := range names {
		if n = Normalize(n); n != "" {
			set[n] = true
		}
	}
	return set
}

// Symptoms in the order the model was trained on
type Symptoms struct {
	Fatigue      bool `json:"fatigue"`
	PaleSkin     bool `json:"pale_skin"`
	HairLoss     bool `json:"hair_loss"`
	Tingling     bool `json:"tingling"`
	BonePain     bool `json:"bone_pain"`
	Irritability bool `json:"irritability"`
}

// Flags returns the symptoms as 0/1 in declared order
func (s Symptoms) Flags() [6]float64 {
	return [6]float64{b2f(s.Fatigue), b2f(s.PaleSkin), b2f(s.HairLoss), b2f(s.Tingling), b2f(s.BonePain), b2f(s.Irritability)}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FeatureColumns are the column names of the trained model, in order.
// "BMMI" is spelled the way the model was trained.
var FeatureColumns = [12]string{
	"Age", "Gender", "Weight", "Height", "BMMI", "Food_Log_Label",
	"Fatigue", "Pale_Skin", "Hair_Loss", "Tingling_Sensation",
	"Bone_Pain", "Irritability",
}

// FeatureVector is the classifier input. Field order matters.
type FeatureVector struct {
	Age        float64  `json:"age"`
	GenderCode float64  `json:"gender_code"`
	WeightKg   float64  `json:"weight_kg"`
	HeightCm   float64  `json:"height_cm"`
	BMI        float64  `json:"bmi"`
	FoodScore  float64  `json:"food_score"`
	Symptoms   Symptoms `json:"symptoms"`
}

// Values emits the vector in model order
func (v FeatureVector) Values() []float64 {
	flags := v.Symptoms.Flags()
	out := []float64{v.Age, v.GenderCode, v.WeightKg, v.HeightCm, v.BMI, v.FoodScore}
	return append(out, flags[:]...)
}

// Label is a deficiency classification outcome
type Label string

const (
	LabelB12          Label = "B12 Deficiency"
	LabelCalcium      Label = "Calcium Deficiency"
	LabelIron         Label = "Iron Deficiency"
	LabelNoDeficiency Label = "No Deficiency"
	LabelVitaminD     Label = "Vitamin D Deficiency"
	LabelUnknown      Label = "Unknown"
)

// RDA values used for display comparison only
var RDA = NutrientTotals{
	Iron:     18,
	B12:      2.4,
	VitaminD: 600,
	Calcium:  1000,
}

// Comparison is one consumed-vs-RDA row
type Comparison struct {
	Nutrient   string  `json:"nutrient"`
	Unit       string  `json:"unit"`
	Consumed   float64 `json:"consumed"`
	RDA        float64 `json:"rda"`
	PercentRDA float64 `json:"percent_rda"`
}

// CompareToRDA builds the intake comparison rows
func CompareToRDA(t NutrientTotals) []Comparison {
	rows := []Comparison{
		{Nutrient: "Iron", Unit: "mg", Consumed: t.Iron, RDA: RDA.Iron},
		{Nutrient: "B12", Unit: "ug", Consumed: t.B12, RDA: RDA.B12},
		{Nutrient: "VitD", Unit: "IU", Consumed: t.VitaminD, RDA: RDA.VitaminD},
		{Nutrient: "Calcium", Unit: "mg", Consumed: t.Calcium, RDA: RDA.Calcium},
	}
	for i := range rows {
		rows[i].PercentRDA = rows[i].Consumed / rows[i].RDA * 100
	}
	return rows
}

// Assessment is a stored prediction
type Assessment struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Label     Label         `json:"label"`
	BMI       float64       `json:"bmi"`
	FoodScore float64       `json:"food_score"`
	Features  FeatureVector `json:"features"`
	CreatedAt time.Time     `json:"created_at"`
}

// User is a registered account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
