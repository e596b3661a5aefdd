// Package anyeval measures the error rates of decoded
// labelings against their references.
package anyeval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EditDistance computes the Levenshtein distance between
// two sequences.
func EditDistance[T comparable](a, b []T) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// WordErrors computes the word-level edit distance between
// a reference and a hypothesis, where words are the
// non-empty runs of symbols between separators.
// It also returns the number of reference words.
func WordErrors(ref, hyp []int, separator int) (errs, refWords int) {
	refSplit := splitWords(ref, separator)
	return EditDistance(refSplit, splitWords(hyp, separator)), len(refSplit)
}

func splitWords(seq []int, separator int) []string {
	var res []string
	var word []string
	for _, x := range seq {
		if x == separator {
			if len(word) > 0 {
				res = append(res, strings.Join(word, ","))
				word = word[:0]
			}
			continue
		}
		word = append(word, strconv.Itoa(x))
	}
	if len(word) > 0 {
		res = append(res, strings.Join(word, ","))
	}
	return res
}

// An ErrorMeter accumulates edit distances over batches of
// labelings.
// Its value is the total number of errors divided by the
// total length of the references.
type ErrorMeter struct {
	NumErrors int
	RefLength int
}

// Add adds the errors of a batch of hypotheses.
func (e *ErrorMeter) Add(refs, hyps [][]int) error {
	if len(refs) != len(hyps) {
		return fmt.Errorf("add errors: %d references but %d hypotheses", len(refs), len(hyps))
	}
	for i, ref := range refs {
		e.NumErrors += EditDistance(ref, hyps[i])
		e.RefLength += len(ref)
	}
	return nil
}

// AddWords is like Add, but it counts word errors.
func (e *ErrorMeter) AddWords(refs, hyps [][]int, separator int) error {
	if len(refs) != len(hyps) {
		return fmt.Errorf("add word errors: %d references but %d hypotheses",
			len(refs), len(hyps))
	}
	for i, ref := range refs {
		errs, words := WordErrors(ref, hyps[i], separator)
		e.NumErrors += errs
		e.RefLength += words
	}
	return nil
}

// Value returns the error rate.
// With no reference symbols, it is 0 if there were no
// errors and +Inf otherwise.
func (e *ErrorMeter) Value() float64 {
	if e.RefLength == 0 {
		if e.NumErrors == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(e.NumErrors) / float64(e.RefLength)
}

// Reset clears the accumulated counts.
func (e *ErrorMeter) Reset() {
	*e = ErrorMeter{}
}
