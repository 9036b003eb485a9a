// Package scorefilter manages the review-score filter a labeler applies to a
// dataset and turns it into a store predicate.
//
// A filter is a set of tokens drawn from "all" and "1".."5". The set is never
// empty, and choosing every individual score is the same as choosing "all".
package scorefilter

import (
	"slices"
	"strconv"
	"strings"
)

// TokenAll selects every entry, including entries without a score.
const TokenAll = "all"

// scoreTokens lists the individual score tokens in canonical order.
var scoreTokens = []string{"1", "2", "3", "4", "5"}

// Set is a selection of filter tokens.
type Set []string

// All returns the set that applies no filter.
func All() Set {
	return Set{TokenAll}
}

// ValidToken reports whether tok is "all" or a score from 1 to 5.
func ValidToken(tok string) bool {
	return tok == TokenAll || slices.Contains(scoreTokens, tok)
}

// Normalize drops unknown and duplicate tokens and returns the canonical set:
// "all" when "all" is present, when every score is present, or when nothing
// valid remains; otherwise the scores in ascending order.
func Normalize(tokens []string) Set {
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if !ValidToken(tok) {
			continue
		}
		if tok == TokenAll {
			return All()
		}
		seen[tok] = true
	}

	if len(seen) == 0 || len(seen) == len(scoreTokens) {
		return All()
	}

	out := make(Set, 0, len(seen))
	for _, tok := range scoreTokens {
		if seen[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// Toggle applies one click on a filter control and returns the new selection.
//
// Selecting "all" clears the scores. Deselecting "all" expands to the five
// scores, which is returned uncollapsed so the caller can show each score as
// selected. Toggling a score removes "all"; if that leaves every score
// selected the set collapses to "all", and if it leaves nothing the set
// falls back to "all". Unknown tokens leave the selection unchanged.
func Toggle(set Set, tok string) Set {
	tok = strings.TrimSpace(strings.ToLower(tok))
	if !ValidToken(tok) {
		return slices.Clone(set)
	}

	if tok == TokenAll {
		if set.IsAll() {
			return slices.Clone(scoreTokens)
		}
		return All()
	}

	selected := make(map[string]bool, len(scoreTokens))
	if !set.IsAll() {
		for _, t := range set {
			if t != TokenAll && ValidToken(t) {
				selected[t] = true
			}
		}
	}
	selected[tok] = !selected[tok]

	out := make(Set, 0, len(scoreTokens))
	for _, t := range scoreTokens {
		if selected[t] {
			out = append(out, t)
		}
	}
	if len(out) == 0 || len(out) == len(scoreTokens) {
		return All()
	}
	return out
}

// IsAll reports whether the set contains "all" or is empty.
func (s Set) IsAll() bool {
	return len(s) == 0 || slices.Contains(s, TokenAll)
}

// Key returns the canonical string form, "all" or a comma-separated score list.
func (s Set) Key() string {
	return strings.Join(Normalize(s), ",")
}

// Scores returns the selected scores of the normalized set, or nil for "all".
func (s Set) Scores() []int {
	n := Normalize(s)
	if n.IsAll() {
		return nil
	}
	scores := make([]int, 0, len(n))
	for _, tok := range n {
		v, _ := strconv.Atoi(tok)
		scores = append(scores, v)
	}
	return scores
}

// ParseKey parses the output of Key, or any comma-separated token list.
func ParseKey(key string) Set {
	if strings.TrimSpace(key) == "" {
		return All()
	}
	return Normalize(strings.Split(key, ","))
}

// Predicate returns the scores an entry must carry to pass the filter. ok is
// false when no predicate applies: the set is "all" or the dataset has no
// score column.
func Predicate(set Set, hasScores bool) (scores []int, ok bool) {
	if !hasScores {
		return nil, false
	}
	scores = set.Scores()
	return scores, scores != nil
}
