package assess

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pbaille/nutriscan/internal/classifier"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/pbaille/nutriscan/internal/session"
)

const fixture = `Food_Item,Iron_mg,B12_ug,VitaminD_IU,Calcium_mg
rice,0.8,0,0,10
curd,0.2,0.4,5,120
spinach,2.0,0,0,99
`

type fakeStore struct {
	log      domain.FoodLog
	replaced int
	saved    []*domain.Assessment
	fail     bool
}

func (f *fakeStore) GetLog(string) (domain.FoodLog, error) { return f.log, nil }

func (f *fakeStore) ReplaceLog(_ string, l domain.FoodLog) error {
	f.log = l
	f.replaced++
	return nil
}

func (f *fakeStore) SaveAssessment(a *domain.Assessment) error {
	if f.fail {
		return errors.New("disk full")
	}
	a.ID = "a-1"
	f.saved = append(f.saved, a)
	return nil
}

func constModel(class int) classifier.Model {
	return classifier.ModelFunc(func(context.Context, domain.FeatureVector) (int, error) { return class, nil })
}

var may15 = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, model classifier.Model, st Store, opts ...Option) *Service {
	t.Helper()
	c, err := nutrient.LoadCSV(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{
		WithClock(func() time.Time { return may15 }),
		WithSeeds(func() uint64 { return 42 }),
	}, opts...)
	return New(nutrient.NewAggregator(c), model, nil, st, opts...)
}

func TestAssessAnonymous(t *testing.T) {
	s := newService(t, constModel(2), nil)

	res, err := s.Assess(context.Background(), nil, Input{
		Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160,
		Log: domain.FoodLog{"2024-05-01": {"rice", "curd", "spinach"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Label != domain.LabelIron {
		t.Errorf("label = %q", res.Label)
	}
	if res.FoodScore != 237 || math.Abs(res.BMI-21.484375) > 1e-9 {
		t.Errorf("score = %v, bmi = %v", res.FoodScore, res.BMI)
	}
	if len(res.Vector) != 12 || len(res.Comparison) != 4 {
		t.Errorf("vector %d, comparison %d", len(res.Vector), len(res.Comparison))
	}
	if res.Suggestion.Foods[0] != "ragi" {
		t.Errorf("suggestion = %+v", res.Suggestion)
	}
	if res.AssessmentID != "" {
		t.Error("anonymous run was saved")
	}
}

func TestAssessUsesProfileAndStoredLog(t *testing.T) {
	st := &fakeStore{log: domain.FoodLog{
		"2024-05-01": {"rice", "curd"},
		"2024-05-02": {"rice", "curd"},
	}}
	s := newService(t, constModel(0), st)

	sess := &session.Session{
		UserID:   "u-1",
		Username: "asha",
		Profile: &domain.UserProfile{
			Age:       30,
			Gender:    domain.GenderFemale,
			Allergies: domain.NewAllergySet([]string{"milk", "curd"}),
		},
	}

	res, err := s.Assess(context.Background(), sess, Input{WeightKg: 60, HeightCm: 165})
	if err != nil {
		t.Fatal(err)
	}

	// curd is excluded, so each day is rice only and the average is one rice
	if math.Abs(res.Totals.Iron-0.8) > 1e-9 || res.Totals.Calcium != 10 {
		t.Errorf("totals = %+v", res.Totals)
	}
	if res.Features.Age != 30 {
		t.Errorf("age not taken from profile: %v", res.Features.Age)
	}
	if len(res.Notices) != 2 || res.Notices[0].Kind != nutrient.NoticeExcluded {
		t.Errorf("notices = %+v", res.Notices)
	}

	// B12 advice is milk, curd, paneer, eggs; allergies drop the first two
	got := res.Suggestion.Foods
	if len(got) != 2 || got[0] != "paneer" || got[1] != "eggs" {
		t.Errorf("foods = %v", got)
	}

	if len(st.saved) != 1 || res.AssessmentID != "a-1" {
		t.Errorf("saved %d, id %q", len(st.saved), res.AssessmentID)
	}
}

func TestAssessFoodsWinOverLog(t *testing.T) {
	s := newService(t, constModel(3), nil)
	res, err := s.Assess(context.Background(), nil, Input{
		Age: 25, Gender: "Male", WeightKg: 70, HeightCm: 175,
		Foods: []string{"spinach"},
		Log:   domain.FoodLog{"2024-05-01": {"rice"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Totals.Iron != 2.0 {
		t.Errorf("iron = %v, want spinach only", res.Totals.Iron)
	}
	if res.Suggestion.Message == "" {
		t.Error("expected no-deficiency message")
	}
}

func TestAssessErrors(t *testing.T) {
	s := newService(t, constModel(0), nil)
	_, err := s.Assess(context.Background(), nil, Input{Age: 25, Gender: "X", WeightKg: 55, HeightCm: 160})
	if !errors.Is(err, classifier.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}

	failing := classifier.ModelFunc(func(context.Context, domain.FeatureVector) (int, error) {
		return 0, errors.New("connection refused")
	})
	s = newService(t, failing, nil)
	_, err = s.Assess(context.Background(), nil, Input{Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestAssessSaveFailureIsNotFatal(t *testing.T) {
	st := &fakeStore{fail: true}
	s := newService(t, constModel(4), st)
	sess := &session.Session{UserID: "u-1", Username: "asha"}

	res, err := s.Assess(context.Background(), sess, Input{
		Age: 25, Gender: "Other", WeightKg: 55, HeightCm: 160, Foods: []string{"rice"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AssessmentID != "" || res.Label != domain.LabelVitaminD {
		t.Errorf("res = %+v", res)
	}
	if res.Suggestion.Tip == "" {
		t.Error("expected sunlight tip")
	}
}

func TestAssessWithoutIntakeGeneratesLog(t *testing.T) {
	s := newService(t, constModel(3), nil, WithLogDays(5))
	in := Input{Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160}

	res, err := s.Assess(context.Background(), nil, in)
	if err != nil {
		t.Fatal(err)
	}

	g := res.Generated
	if g == nil {
		t.Fatal("no log generated for empty intake")
	}
	if g.Seed != 42 || g.Saved {
		t.Errorf("generated = %+v", g)
	}
	if len(g.Log) != 5 {
		t.Fatalf("generated %d days, want 5", len(g.Log))
	}
	for _, day := range []string{"2024-05-11", "2024-05-15"} {
		if len(g.Log[day]) == 0 {
			t.Errorf("missing day %s in %v", day, g.Log)
		}
	}

	want, _ := s.Aggregator().AggregateLog(g.Log, nil)
	if res.Totals != want {
		t.Errorf("totals = %+v, want %+v", res.Totals, want)
	}
	// the dinner pool has nothing in the fixture catalog
	if len(res.Notices) == 0 {
		t.Error("expected unmatched notices for generated foods")
	}

	seed := uint64(7)
	in.Seed = &seed
	a, _ := s.Assess(context.Background(), nil, in)
	b, _ := s.Assess(context.Background(), nil, in)
	if a.Generated.Seed != 7 || !reflect.DeepEqual(a.Generated.Log, b.Generated.Log) {
		t.Error("seeded generation not reproducible")
	}
}

func TestAssessEmptyStoredLogIsGeneratedAndSaved(t *testing.T) {
	st := &fakeStore{}
	s := newService(t, constModel(3), st)
	sess := &session.Session{UserID: "u-1", Username: "asha"}

	res, err := s.Assess(context.Background(), sess, Input{Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160})
	if err != nil {
		t.Fatal(err)
	}
	if res.Generated == nil || !res.Generated.Saved {
		t.Fatalf("generated = %+v", res.Generated)
	}
	if st.replaced != 1 || len(st.log) != 15 {
		t.Errorf("replaced %d times, stored %d days", st.replaced, len(st.log))
	}

	// the next run reads the saved log
	res, err = s.Assess(context.Background(), sess, Input{Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160})
	if err != nil {
		t.Fatal(err)
	}
	if res.Generated != nil || st.replaced != 1 {
		t.Errorf("log regenerated: %+v", res.Generated)
	}
}

func TestAssessNoSave(t *testing.T) {
	st := &fakeStore{log: domain.FoodLog{"2024-05-01": {"rice"}}}
	s := newService(t, constModel(3), st)
	sess := &session.Session{UserID: "u-1", Username: "asha"}

	res, err := s.Assess(context.Background(), sess, Input{Age: 25, Gender: "Female", WeightKg: 55, HeightCm: 160, NoSave: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.AssessmentID != "" || len(st.saved) != 0 {
		t.Errorf("assessment saved despite NoSave")
	}
}
