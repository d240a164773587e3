package assess

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pbaille/nutriscan/internal/classifier"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/mealgen"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/pbaille/nutriscan/internal/session"
	"github.com/pbaille/nutriscan/internal/suggest"
)

// ErrModelUnavailable wraps failures of the classifier itself
var ErrModelUnavailable = errors.New("model unavailable")

// Input is one assessment request. When Foods is set it is treated as a
// single day and Log is ignored. With neither, the stored log of the
// session's user is used. When that is empty too, or there is no user,
// a log is generated from Seed.
type Input struct {
	Age       int             `json:"age"`
	Gender    string          `json:"gender"`
	WeightKg  float64         `json:"weight_kg"`
	HeightCm  float64         `json:"height_cm"`
	Symptoms  domain.Symptoms `json:"symptoms"`
	Foods     []string        `json:"foods,omitempty"`
	Log       domain.FoodLog  `json:"log,omitempty"`
	Allergies []string        `json:"allergies,omitempty"`
	Seed      *uint64         `json:"seed,omitempty"`
	NoSave    bool            `json:"no_save,omitempty"`
}

// Generated describes a log made up for a caller with no intake.
// Saved is true when it became the user's stored log.
type Generated struct {
	Seed  uint64         `json:"seed"`
	Log   domain.FoodLog `json:"log"`
	Saved bool           `json:"saved"`
}

// Result is everything shown after an assessment
type Result struct {
	AssessmentID string                `json:"assessment_id,omitempty"`
	Label        domain.Label          `json:"label"`
	BMI          float64               `json:"bmi"`
	FoodScore    float64               `json:"food_score"`
	Totals       domain.NutrientTotals `json:"totals"`
	Features     domain.FeatureVector  `json:"features"`
	Vector       []float64             `json:"vector"`
	Comparison   []domain.Comparison   `json:"comparison"`
	Suggestion   suggest.Suggestion    `json:"suggestion"`
	Notices      []nutrient.Notice     `json:"notices,omitempty"`
	Generated    *Generated            `json:"generated,omitempty"`
}

// Store is the persistence an assessment touches
type Store interface {
	GetLog(userID string) (domain.FoodLog, error)
	ReplaceLog(userID string, log domain.FoodLog) error
	SaveAssessment(a *domain.Assessment) error
}

// Service runs assessments. It holds no per-user state.
type Service struct {
	agg     *nutrient.Aggregator
	model   classifier.Model
	table   suggest.Table
	store   Store
	logDays int
	now     func() time.Time
	seed    func() uint64
}

// Option configures a Service
type Option func(*Service)

// WithLogDays sets the length of generated logs
func WithLogDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.logDays = days
		}
	}
}

// WithClock sets the clock that dates generated logs
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSeeds sets the seed source used when the input carries none
func WithSeeds(seed func() uint64) Option {
	return func(s *Service) { s.seed = seed }
}

// New creates a Service. store may be nil for anonymous, unsaved runs.
func New(agg *nutrient.Aggregator, model classifier.Model, table suggest.Table, store Store, opts ...Option) *Service {
	if table == nil {
		table = suggest.DefaultTable
	}
	s := &Service{
		agg:     agg,
		model:   model,
		table:   table,
		store:   store,
		logDays: mealgen.DefaultDays,
		now:     time.Now,
		seed:    func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregator exposes the underlying aggregator
func (s *Service) Aggregator() *nutrient.Aggregator { return s.agg }

// Suggestions exposes the advice table
func (s *Service) Suggestions() suggest.Table { return s.table }

// Assess aggregates intake, classifies and builds advice. sess may be nil.
func (s *Service) Assess(ctx context.Context, sess *session.Session, in Input) (*Result, error) {
	if sess != nil && sess.Profile != nil {
		if in.Age == 0 {
			in.Age = sess.Profile.Age
		}
		if in.Gender == "" {
			in.Gender = sess.Profile.Gender
		}
	}

	allergies := domain.NewAllergySet(in.Allergies)
	for name := range sess.Allergies() {
		allergies[name] = true
	}

	var totals domain.NutrientTotals
	var notices []nutrient.Notice
	var generated *Generated
	switch {
	case len(in.Foods) > 0:
		totals, notices = s.agg.Aggregate(in.Foods, allergies)
	case in.Log != nil:
		totals, notices = s.agg.AggregateLog(in.Log, allergies)
	default:
		var stored domain.FoodLog
		if sess != nil && s.store != nil {
			var err error
			if stored, err = s.store.GetLog(sess.UserID); err != nil {
				return nil, fmt.Errorf("load log: %w", err)
			}
		}
		if len(stored) == 0 {
			generated = s.generate(in.Seed)
			stored = generated.Log
		}
		totals, notices = s.agg.AggregateLog(stored, allergies)
	}

	v, err := classifier.BuildFeatureVector(in.Age, in.Gender, in.WeightKg, in.HeightCm, totals, in.Symptoms)
	if err != nil {
		return nil, err
	}

	label, err := classifier.Predict(ctx, v, s.model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	res := &Result{
		Label:      label,
		BMI:        v.BMI,
		FoodScore:  v.FoodScore,
		Totals:     totals,
		Features:   v,
		Vector:     v.Values(),
		Comparison: domain.CompareToRDA(totals),
		Suggestion: s.table.For(label, allergies),
		Notices:    notices,
		Generated:  generated,
	}

	if sess == nil || s.store == nil {
		return res, nil
	}

	if generated != nil {
		if err := s.store.ReplaceLog(sess.UserID, generated.Log); err != nil {
			log.Printf("assess: generated log not saved for %s: %v", sess.Username, err)
		} else {
			generated.Saved = true
		}
	}

	if !in.NoSave {
		a := &domain.Assessment{
			UserID:    sess.UserID,
			Label:     label,
			BMI:       v.BMI,
			FoodScore: v.FoodScore,
			Features:  v,
		}
		if err := s.store.SaveAssessment(a); err != nil {
			log.Printf("assess: not saved for %s: %v", sess.Username, err)
		} else {
			res.AssessmentID = a.ID
		}
	}

	return res, nil
}

func (s *Service) generate(seed *uint64) *Generated {
	g := &Generated{Seed: s.seed()}
	if seed != nil {
		g.Seed = *seed
	}
	g.Log = mealgen.New(g.Seed).Log(s.now(), s.logDays)
	return g
}
