package nutrient

import (
	"strings"

	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/match"
)

// NoticeKind says why an item contributed nothing
type NoticeKind string

const (
	NoticeExcluded  NoticeKind = "excluded"
	NoticeUnmatched NoticeKind = "unmatched"
)

// Notice reports a skipped food item. Notices are informational, never errors.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Food string     `json:"food"`
	Date string     `json:"date,omitempty"`
}

// Message renders the notice for display
func (n Notice) Message() string {
	switch n.Kind {
	case NoticeExcluded:
		return "Skipped " + n.Food + " (listed as an allergy)"
	default:
		return "No catalog match for " + n.Food
	}
}

// Aggregator resolves food names against a catalog and sums nutrients
type Aggregator struct {
	catalog   *Catalog
	scorer    match.Scorer
	threshold int
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithScorer swaps the similarity function
func WithScorer(s match.Scorer) Option {
	return func(a *Aggregator) { a.scorer = s }
}

// WithThreshold sets the minimum accepted score
func WithThreshold(t int) Option {
	return func(a *Aggregator) { a.threshold = t }
}

// NewAggregator creates an Aggregator over c
func NewAggregator(c *Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{
		catalog:   c,
		scorer:    match.Weighted,
		threshold: match.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the underlying catalog
func (a *Aggregator) Catalog() *Catalog { return a.catalog }

// Resolve finds the best catalog entry for a free-text food name.
// ok is false when the best score is below the threshold.
func (a *Aggregator) Resolve(food string) (rec domain.NutrientRecord, score int, ok bool) {
	name := domain.Normalize(food)
	if name == "" {
		return domain.NutrientRecord{}, 0, false
	}

	best, found := match.Best(a.scorer, name, a.catalog.Names())
	if !found {
		return domain.NutrientRecord{}, 0, false
	}
	if best.Score < a.threshold {
		return domain.NutrientRecord{}, best.Score, false
	}
	return a.catalog.Records()[best.Index], best.Score, true
}

// Aggregate sums one catalog row per accepted mention.
// Items in excluded are skipped before matching.
func (a *Aggregator) Aggregate(foods []string, excluded domain.AllergySet) (domain.NutrientTotals, []Notice) {
	var total domain.NutrientTotals
	var notices []Notice

	for _, food := range foods {
		name := domain.Normalize(food)
		if name == "" {
			continue
		}
		if excluded[name] {
			notices = append(notices, Notice{Kind: NoticeExcluded, Food: name})
			continue
		}

		rec, _, ok := a.Resolve(name)
		if !ok {
			notices = append(notices, Notice{Kind: NoticeUnmatched, Food: name})
			continue
		}
		total = total.Add(rec.Totals())
	}

	return total, notices
}

// AggregateLog averages daily totals over the days that have entries.
// An empty log averages to zero.
func (a *Aggregator) AggregateLog(log domain.FoodLog, excluded domain.AllergySet) (domain.NutrientTotals, []Notice) {
	var total domain.NutrientTotals
	var notices []Notice
	days := 0

	for _, entry := range log.Entries() {
		if !hasItems(entry.Items) {
			continue
		}
		days++

		dayTotal, dayNotices := a.Aggregate(entry.Items, excluded)
		total = total.Add(dayTotal)
		for _, n := range dayNotices {
			n.Date = entry.Date
			notices = append(notices, n)
		}
	}

	return total.Scale(1 / float64(max(1, days))), notices
}

// Search returns the n closest catalog foods to a query
func (a *Aggregator) Search(query string, n int) []match.Candidate {
	return match.Top(a.scorer, domain.Normalize(query), a.catalog.Names(), n)
}

// SplitFoods splits comma separated input into items
func SplitFoods(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hasItems(items []string) bool {
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			return true
		}
	}
	return false
}
