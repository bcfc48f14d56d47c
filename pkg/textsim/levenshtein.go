// Package textsim provides edit-distance based text similarity.
//
// Strings are compared as sequences of Unicode code points after NFC
// normalization, so visually identical text with different byte encodings
// (precomposed vs combining accents) compares as equal.
package textsim

import (
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/entsync/pkg/constants"
)

// Levenshtein computes the Levenshtein distance (edit distance) between two strings.
// The distance is the minimum number of single-rune edits (insertions, deletions,
// or substitutions) required to transform one string into the other.
//
// Time complexity: O(len(a) * len(b))
// Space complexity: O(min(len(a), len(b))).
func Levenshtein(a, b string) int {
	return distance([]rune(norm.NFC.String(a)), []rune(norm.NFC.String(b)))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Ensure a is the shorter sequence for space optimization
	if len(a) > len(b) {
		a, b = b, a
	}

	// Use two rows instead of full matrix for space optimization
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}

		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// Similarity computes a normalized similarity score between 0 and 1.
// 1.0 means identical strings, 0.0 means completely different.
// The score is: 1 - (distance / max(len(a), len(b))) in runes.
func Similarity(a, b string) float64 {
	ra := []rune(norm.NFC.String(a))
	rb := []rune(norm.NFC.String(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	maxLen := max(len(ra), len(rb))
	return 1.0 - float64(distance(ra, rb))/float64(maxLen)
}

// Floor is the default noise threshold for Penalized.
const Floor = constants.TextFloor

// Penalized maps a raw similarity through the text scoring curve: values
// below floor become 0, everything else is squared so that mild edits cost
// little and large rewrites cost disproportionately more.
func Penalized(similarity, floor float64) float64 {
	if similarity < floor {
		return 0
	}
	return similarity * similarity
}
