package anyctc

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Normalization determines how the costs of a batch are
// combined into a single loss.
type Normalization int

const (
	// SizeAverage divides the summed cost by the number of
	// samples which contributed to it.
	SizeAverage Normalization = iota

	// LengthAverage divides the summed cost by the total
	// number of frames of the samples which contributed to
	// it.
	LengthAverage

	// NoAverage uses the summed cost as-is.
	NoAverage
)

// NormalizationFor resolves a pair of averaging flags.
// Length averaging supersedes size averaging.
func NormalizationFor(sizeAverage, lengthAverage bool) Normalization {
	if lengthAverage {
		return LengthAverage
	} else if sizeAverage {
		return SizeAverage
	}
	return NoAverage
}

// String returns "size", "length", or "none".
func (n Normalization) String() string {
	switch n {
	case SizeAverage:
		return "size"
	case LengthAverage:
		return "length"
	case NoAverage:
		return "none"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// MarshalText encodes the normalization by name.
func (n Normalization) MarshalText() ([]byte, error) {
	switch n {
	case SizeAverage, LengthAverage, NoAverage:
		return []byte(n.String()), nil
	default:
		return nil, fmt.Errorf("unknown normalization: %d", int(n))
	}
}

// UnmarshalText decodes a normalization name.
func (n *Normalization) UnmarshalText(text []byte) error {
	switch string(text) {
	case "size", "size_average":
		*n = SizeAverage
	case "length", "length_average":
		*n = LengthAverage
	case "none", "sum":
		*n = NoAverage
	default:
		return fmt.Errorf("unknown normalization: %q", text)
	}
	return nil
}

// Loss computes the CTC loss of batches of network
// outputs.
//
// Samples whose output is too short to be aligned with
// their label are left out of the loss entirely.
// They receive a zero gradient, and their indices are
// reported to the caller.
type Loss struct {
	Normalization Normalization

	// Logger receives a warning for every sample which is
	// left out of the loss.
	// If nil, logrus.StandardLogger() is used.
	Logger logrus.FieldLogger
}

// Cost computes the loss for a batch of outputs.
//
// The outputs may be in any representation accepted by
// Transform, and they should be raw, unnormalized scores:
// a log-softmax is applied to every frame.
// Symbol 0 is the blank, so every label entry must be in
// the range [1, Symbols).
//
// The result is a one-component loss and the ascending
// indices of the samples which were left out.
func (l *Loss) Cost(output interface{}, labels [][]int) (anydiff.Res, []int, error) {
	batch, err := Transform(output)
	if err != nil {
		return nil, nil, fmt.Errorf("CTC cost: %w", err)
	}
	if len(labels) != batch.BatchSize {
		return nil, nil, fmt.Errorf("CTC cost: %d labels for batch size %d",
			len(labels), batch.BatchSize)
	}
	labelLens := make([]int, len(labels))
	for i, label := range labels {
		for _, x := range label {
			if x <= 0 || x >= batch.Symbols {
				return nil, nil, fmt.Errorf("CTC cost: label %d: symbol %d out of range [1, %d)",
					i, x, batch.Symbols)
			}
		}
		labelLens[i] = len(label)
	}

	part := NewPartition(batch.Lengths, labelLens)
	for _, idx := range part.Errors {
		l.logger().WithFields(logrus.Fields{
			"sample":        idx,
			"output_length": batch.Lengths[idx],
			"label_length":  labelLens[idx],
		}).Warn("output too short for label; sample excluded from CTC loss")
	}

	full := vectorFloats(batch.Data.Output())
	acts, lengths, validLabels := full, batch.Lengths, labels
	if !part.Empty() {
		acts = make([]float64, batch.Steps*len(part.Valid)*batch.Symbols)
		part.Gather(acts, full, batch.Steps, batch.Symbols)
		lengths = part.SelectInts(batch.Lengths)
		validLabels = part.SelectLabels(labels)
	}

	grad := make([]float64, len(acts))
	total := batchCost(acts, grad, batch.Symbols, lengths, validLabels)

	if d := l.denominator(lengths); d != 1 {
		total /= d
		for i := range grad {
			grad[i] /= d
		}
	}

	if !part.Empty() {
		fullGrad := make([]float64, len(full))
		part.Scatter(fullGrad, grad, batch.Steps, batch.Symbols)
		grad = fullGrad
	}

	c := batch.Data.Output().Creator()
	return &costRes{
		In:     batch.Data,
		OutVec: makeVector(c, []float64{total}),
		Grad:   grad,
	}, part.Errors, nil
}

func (l *Loss) logger() logrus.FieldLogger {
	if l.Logger == nil {
		return logrus.StandardLogger()
	}
	return l.Logger
}

func (l *Loss) denominator(lengths []int) float64 {
	switch l.Normalization {
	case LengthAverage:
		var frames int
		for _, x := range lengths {
			frames += x
		}
		if frames > 0 {
			return float64(frames)
		}
	case SizeAverage:
		if len(lengths) > 0 {
			return float64(len(lengths))
		}
	}
	return 1
}

// batchCost sums the negative log likelihoods of a
// time-major batch of raw scores and stores the gradient
// of that sum in grad.
func batchCost(acts, grad []float64, symbols int, lengths []int, labels [][]int) float64 {
	batchSize := len(lengths)
	var total float64
	for n, length := range lengths {
		logProbs := make([][]float64, length)
		seqGrad := make([][]float64, length)
		for t := range logProbs {
			offset := (t*batchSize + n) * symbols
			logProbs[t] = make([]float64, symbols)
			logSoftmax(logProbs[t], acts[offset:offset+symbols])
			seqGrad[t] = grad[offset : offset+symbols]
		}
		total -= logLikelihood(logProbs, labels[n], seqGrad)
	}
	return total
}

type costRes struct {
	In     anydiff.Res
	OutVec anyvec.Vector
	Grad   []float64
}

func (c *costRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *costRes) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *costRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	if !g.Intersects(c.In.Vars()) {
		return
	}
	scale := vectorFloats(u)[0]
	downstream := make([]float64, len(c.Grad))
	for i, x := range c.Grad {
		downstream[i] = x * scale
	}
	c.In.Propagate(makeVector(u.Creator(), downstream), g)
}
