package suggest

import (
	"strings"

	"github.com/pbaille/nutriscan/internal/domain"
)

// Entry is the canned advice for one label
type Entry struct {
	Foods []string `json:"foods" yaml:"foods"`
	Tip   string   `json:"tip,omitempty" yaml:"tip,omitempty"`
}

// Table maps labels to advice
type Table map[domain.Label]Entry

// DefaultTable is the built-in advice
var DefaultTable = Table{
	domain.LabelIron:     {Foods: []string{"ragi", "spinach", "drumstick leaves", "jaggery"}},
	domain.LabelB12:      {Foods: []string{"milk", "curd", "paneer", "eggs"}},
	domain.LabelCalcium:  {Foods: []string{"sesame", "milk", "ragi"}},
	domain.LabelVitaminD: {Foods: []string{"fortified milk"}, Tip: "Get 15-20 min of sunlight daily."},
}

// Suggestion is the filtered advice shown to a user
type Suggestion struct {
	Label        domain.Label `json:"label"`
	Foods        []string     `json:"foods"`
	Removed      []string     `json:"removed,omitempty"`
	Tip          string       `json:"tip,omitempty"`
	NoSafeOption bool         `json:"no_safe_option,omitempty"`
	Message      string       `json:"message"`
}

// For looks up advice for label and drops foods the user is allergic to.
// The order of the remaining foods is kept.
func (t Table) For(label domain.Label, allergies domain.AllergySet) Suggestion {
	s := Suggestion{Label: label, Foods: []string{}}

	entry, ok := t[label]
	if !ok {
		switch label {
		case domain.LabelNoDeficiency:
			s.Message = "Great! No deficiency detected."
		default:
			s.Message = "No suggestions available for this result."
		}
		return s
	}

	s.Tip = entry.Tip
	for _, food := range entry.Foods {
		if conflicts(food, allergies) {
			s.Removed = append(s.Removed, food)
			continue
		}
		s.Foods = append(s.Foods, food)
	}

	switch {
	case len(s.Foods) > 0:
		s.Message = "Suggestion: include " + joinFoods(s.Foods) + "."
	case len(entry.Foods) > 0:
		s.NoSafeOption = true
		s.Message = "No safe food suggestion: every candidate conflicts with your allergies."
	default:
		s.Message = "No food suggestions for this result."
	}
	return s
}

// conflicts reports whether food is an allergen or names one as a word,
// so a milk allergy also rules out "fortified milk"
func conflicts(food string, allergies domain.AllergySet) bool {
	name := domain.Normalize(food)
	if allergies[name] {
		return true
	}
	for _, w := range strings.Fields(name) {
		if allergies[w] {
			return true
		}
	}
	return false
}

// Merge returns a copy of t with entries from o replacing t's
func (t Table) Merge(o Table) Table {
	out := make(Table, len(t)+len(o))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

func joinFoods(foods []string) string {
	switch len(foods) {
	case 1:
		return foods[0]
	case 2:
		return foods[0] + " and " + foods[1]
	}
	out := ""
	for i, f := range foods {
		switch {
		case i == len(foods)-1:
			out += ", and " + f
		case i > 0:
			out += ", " + f
		default:
			out = f
		}
	}
	return out
}
