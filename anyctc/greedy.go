package anyctc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// GreedyResult stores the output of a GreedyDecoder.
type GreedyResult struct {
	// Hyps stores the decoded labeling of every sequence.
	Hyps [][]int

	// CharProbs stores, for each symbol of each labeling,
	// the probability of the frame that the symbol was
	// taken from.
	// For a run of repeated frames, this is the first frame
	// of the run.
	CharProbs [][]float64

	// LineProbs stores the mean of each entry of
	// CharProbs, or 0 for an empty labeling.
	LineProbs []float64

	// Segmentation stores the frame boundaries of every
	// sequence.
	// It is only set if segmentation was requested.
	Segmentation [][]int

	// SegmentationProbs stores the probability of the most
	// likely symbol at every frame of every sequence.
	// It is only set if segmentation was requested.
	SegmentationProbs [][]float64
}

// GreedyDecoder decodes output sequences by taking the
// most likely symbol at every frame.
//
// This is optimal frame by frame, but it does not
// necessarily find the most likely labeling.
type GreedyDecoder struct{}

// Decode decodes a batch in any representation accepted
// by Transform.
//
// Each frame is normalized with a log-softmax, then the
// most likely symbols are collapsed and stripped of
// blanks.
func (g GreedyDecoder) Decode(batch interface{}, segmentation bool) (*GreedyResult, error) {
	padded, err := Transform(batch)
	if err != nil {
		return nil, fmt.Errorf("greedy decode: %w", err)
	}
	data := vectorFloats(padded.Data.Output())

	res := &GreedyResult{
		Hyps:      make([][]int, padded.BatchSize),
		CharProbs: make([][]float64, padded.BatchSize),
		LineProbs: make([]float64, padded.BatchSize),
	}
	if segmentation {
		res.Segmentation = make([][]int, padded.BatchSize)
		res.SegmentationProbs = make([][]float64, padded.BatchSize)
	}

	logProbs := make([]float64, padded.Symbols)
	for n, length := range padded.Lengths {
		indices := make([]int, length)
		probs := make([]float64, length)
		for t := 0; t < length; t++ {
			offset := padded.Offset(t, n)
			logSoftmax(logProbs, data[offset:offset+padded.Symbols])
			idx := floats.MaxIdx(logProbs)
			indices[t] = idx
			probs[t] = math.Exp(logProbs[idx])
		}
		if segmentation {
			res.Segmentation[n] = Segment(indices)
			res.SegmentationProbs[n] = append([]float64{}, probs...)
		}
		res.Hyps[n], res.CharProbs[n] = Collapse(indices, probs)
		if len(res.CharProbs[n]) > 0 {
			res.LineProbs[n] = floats.Sum(res.CharProbs[n]) / float64(len(res.CharProbs[n]))
		}
	}

	return res, nil
}

// Collapse applies the CTC collapsing rule to a sequence
// of per-frame symbols: runs of the same symbol are
// reduced to their first frame, and then blanks are
// removed.
//
// The probs argument may be nil.
// Otherwise, it contains a probability for every frame,
// and the probabilities of the kept frames are returned.
func Collapse(indices []int, probs []float64) ([]int, []float64) {
	res := []int{}
	var resProbs []float64
	if probs != nil {
		resProbs = []float64{}
	}
	for t, idx := range indices {
		if t > 0 && indices[t-1] == idx {
			continue
		}
		if idx == 0 {
			continue
		}
		res = append(res, idx)
		if probs != nil {
			resProbs = append(resProbs, probs[t])
		}
	}
	return res, resProbs
}

// Segment computes the frame boundaries of a sequence of
// per-frame symbols.
//
// The result starts at 0, contains every frame at which
// the symbol differs from the previous frame, and ends
// with the number of frames.
// An empty sequence has no boundaries.
func Segment(indices []int) []int {
	if len(indices) == 0 {
		return []int{}
	}
	res := []int{0}
	for t := 1; t < len(indices); t++ {
		if indices[t] != indices[t-1] {
			res = append(res, t)
		}
	}
	return append(res, len(indices))
}
