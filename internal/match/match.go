package match

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum score for a match to be accepted
const DefaultThreshold = 80

// Scorer rates how similar two normalized strings are, from 0 to 100
type Scorer interface {
	Score(a, b string) int
}

// ScorerFunc adapts a function to Scorer
type ScorerFunc func(a, b string) int

// Score calls f(a, b)
func (f ScorerFunc) Score(a, b string) int { return f(a, b) }

// Ratio is 2*M/T, where M is the longest common subsequence and T the
// combined length. "egg" and "eggs" score 86.
var Ratio = ScorerFunc(ratio)

// Partial scores the shorter string against its best aligned window
// in the longer one, so "chicken" and "chicken curry" score 100
var Partial = ScorerFunc(partialRatio)

// TokenSort scores after sorting each string's words,
// so "dal tadka" and "tadka dal" are equal
var TokenSort = ScorerFunc(func(a, b string) int {
	return ratio(sortTokens(a), sortTokens(b))
})

// TokenSet scores the shared words against each side's leftovers
var TokenSet = ScorerFunc(func(a, b string) int {
	return tokenSet(a, b, ratio)
})

// Edit scores by Levenshtein distance relative to the longer string.
// It is stricter than Ratio: "egg" and "eggs" score 75.
var Edit = ScorerFunc(func(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return round(100 * (1 - float64(d)/float64(max(la, lb))))
})

// Weighted combines the other scorers the way fuzzywuzzy's WRatio does.
// Strings of similar length use Ratio and discounted token scores. When
// one is at least 1.5 times longer, partial scores are added, scaled by
// 0.9 (0.6 from 8 times longer).
var Weighted = ScorerFunc(weighted)

const unbaseScale = 0.95

func weighted(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	base := float64(ratio(a, b))
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))

	if lenRatio < 1.5 {
		sorted := float64(TokenSort(a, b)) * unbaseScale
		set := float64(tokenSet(a, b, ratio)) * unbaseScale
		return round(max(base, sorted, set))
	}

	scale := 0.9
	if lenRatio >= 8 {
		scale = 0.6
	}
	partial := float64(partialRatio(a, b)) * scale
	sorted := float64(partialRatio(sortTokens(a), sortTokens(b))) * unbaseScale * scale
	set := float64(tokenSet(a, b, partialRatio)) * unbaseScale * scale
	return round(max(base, partial, sorted, set))
}

// ByName returns a built-in scorer
func ByName(name string) (Scorer, bool) {
	switch name {
	case "ratio":
		return Ratio, true
	case "partial":
		return Partial, true
	case "token_sort":
		return TokenSort, true
	case "token_set":
		return TokenSet, true
	case "edit":
		return Edit, true
	case "weighted", "":
		return Weighted, true
	}
	return nil, false
}

func ratio(a, b string) int {
	return runeRatio([]rune(a), []rune(b))
}

func runeRatio(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return round(200 * float64(lcs(a, b)) / float64(len(a)+len(b)))
}

func partialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		r := runeRatio(short, long[i:i+len(short)])
		if r == 100 {
			return 100
		}
		best = max(best, r)
	}
	return best
}

// tokenSet compares the sorted shared words with each side's full word set
func tokenSet(a, b string, score func(a, b string) int) int {
	wa, wb := words(a), words(b)

	var common, onlyA, onlyB []string
	for w := range wa {
		if wb[w] {
			common = append(common, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range wb {
		if !wa[w] {
			onlyB = append(onlyB, w)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	ab := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	ba := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))
	return max(score(sect, ab), score(sect, ba), score(ab, ba))
}

func words(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// lcs returns the length of the longest common subsequence
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(prev[j+1], cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// round halves to even, as Python's round does
func round(x float64) int {
	return int(math.RoundToEven(x))
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// Candidate is a scored choice
type Candidate struct {
	Index int    `json:"-"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Best returns the highest scoring choice. Ties go to the earliest choice.
// ok is false when there are no choices.
func Best(s Scorer, query string, choices []string) (c Candidate, ok bool) {
	c.Index = -1
	for i, choice := range choices {
		score := s.Score(query, choice)
		if c.Index == -1 || score > c.Score {
			c = Candidate{Index: i, Name: choice, Score: score}
		}
	}
	return c, c.Index >= 0
}

// Top returns up to n choices ordered by descending score
func Top(s Scorer, query string, choices []string, n int) []Candidate {
	all := make([]Candidate, len(choices))
	for i, choice := range choices {
		all[i] = Candidate{Index: i, Name: choice, Score: s.Score(query, choice)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
