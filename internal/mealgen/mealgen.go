package mealgen

import (
	"math/rand/v2"
	"time"

	"github.com/pbaille/nutriscan/internal/domain"
)

// DefaultDays is the length of a generated log
const DefaultDays = 15

// MaxDays bounds a generated log to one year
const MaxDays = 366

// Slot is a meal of the day with its candidate foods
type Slot struct {
	Name       string
	Candidates []string
}

// DefaultSlots are the per-meal candidate pools
var DefaultSlots = []Slot{
	{Name: "breakfast", Candidates: []string{"poha", "idli", "upma", "paratha", "oats", "dosa"}},
	{Name: "lunch", Candidates: []string{"rice", "dal", "roti", "sambar", "rajma", "chole"}},
	{Name: "snack", Candidates: []string{"banana", "curd", "sprouts", "peanuts", "milk", "buttermilk"}},
	{Name: "dinner", Candidates: []string{"khichdi", "roti", "paneer curry", "vegetable curry", "fish curry", "egg curry"}},
}

// Generator draws synthetic food logs from a seeded source,
// so the same seed always yields the same log
type Generator struct {
	rng   *rand.Rand
	slots []Slot
}

// New creates a Generator over the default slots
func New(seed uint64) *Generator {
	return NewWithSlots(seed, DefaultSlots)
}

// NewWithSlots creates a Generator over custom slots
func NewWithSlots(seed uint64, slots []Slot) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		slots: slots,
	}
}

// Day draws one food per slot
func (g *Generator) Day() []string {
	items := make([]string, 0, len(g.slots))
	for _, s := range g.slots {
		if len(s.Candidates) == 0 {
			continue
		}
		items = append(items, s.Candidates[g.rng.IntN(len(s.Candidates))])
	}
	return items
}

// Log generates days consecutive days ending on end (inclusive)
func (g *Generator) Log(end time.Time, days int) domain.FoodLog {
	days = max(days, 0)
	log := make(domain.FoodLog, days)
	start := end.AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i).Format(domain.DateLayout)
		log[d] = g.Day()
	}
	return log
}
