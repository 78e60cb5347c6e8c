package postprocess

import "github.com/samber/lo"

// Filter keeps the candidates whose score is at least threshold, preserving order.
//
// Arguments:
//   - candidates: The decoded candidates.
//   - threshold: The minimum score, inclusive.
//
// Returns:
//   - []Candidate: A new slice; the input is not modified.
func Filter(candidates []Candidate, threshold float32) []Candidate {
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		return c.Score >= threshold
	})
}
