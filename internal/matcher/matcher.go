// Package matcher resolves a model-proposed template name to a catalog key.
//
// Models echo template names with small variations (case, punctuation,
// abbreviations). Resolution is two-tiered: a case-sensitive substring
// containment check first, then a gestalt similarity ratio against every key.
package matcher

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Threshold is the minimum similarity ratio for a fuzzy match.
const Threshold = 0.75

// Resolution is the outcome of resolving a candidate name.
// When Found is false the report is structured free-form.
type Resolution struct {
	Key        string  `json:"key,omitempty"`
	Found      bool    `json:"found"`
	Similarity float64 `json:"similarity"`
	Exact      bool    `json:"exact"` // resolved by substring containment
}

// FreeForm is the resolution used when no catalog template matches.
var FreeForm = Resolution{}

// IsFreeForm reports whether the resolution selects free-form structuring.
func (r Resolution) IsFreeForm() bool {
	return !r.Found
}

// String returns the key, or "free-form".
func (r Resolution) String() string {
	if !r.Found {
		return "free-form"
	}
	return r.Key
}

// Matcher resolves candidates with a configurable threshold.
type Matcher struct {
	threshold float64
}

// New creates a matcher. A non-positive threshold uses Threshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = Threshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured similarity threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Resolve resolves candidate against keys using the default threshold.
func Resolve(keys []string, candidate string) Resolution {
	return New(Threshold).Resolve(keys, candidate)
}

// Resolve returns the first key containing candidate, otherwise the most
// similar key when its ratio reaches the threshold, otherwise FreeForm.
// Iteration follows the order of keys; ties keep the first key seen.
func (m *Matcher) Resolve(keys []string, candidate string) Resolution {
	for _, k := range keys {
		if strings.Contains(k, candidate) {
			return Resolution{Key: k, Found: true, Similarity: Similarity(candidate, k), Exact: true}
		}
	}

	best := -1
	highest := 0.0
	for i, k := range keys {
		if s := Similarity(candidate, k); s > highest {
			highest = s
			best = i
		}
	}

	if best >= 0 && highest >= m.threshold {
		return Resolution{Key: keys[best], Found: true, Similarity: highest}
	}
	return Resolution{Similarity: highest}
}

// Similarity returns the case-insensitive gestalt pattern-matching ratio
// 2*M/T of a and b, where M is the number of matched characters and T the
// total length of both strings.
//
// Case folding is rune by rune (strings.ToUpper), so runes whose uppercase
// form is longer, such as "ß" to "SS", keep their length and do not match
// the expanded spelling.
func Similarity(a, b string) float64 {
	sm := difflib.NewMatcher(chars(strings.ToUpper(a)), chars(strings.ToUpper(b)))
	return sm.Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
