package anyctc

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Batch stores a batch of input sequences and the
// corresponding labels for each.
type Batch struct {
	Inputs anyseq.Seq
	Labels [][]int
}

// A Trainer creates batches, computes gradients, and adds
// up costs for CTC.
type Trainer struct {
	// Func applies the model to a batch of inputs.
	// It should produce raw, unnormalized symbol scores.
	Func   func(anyseq.Seq) anyseq.Seq
	Params []*anydiff.Var

	// Loss determines how the cost of a batch is
	// normalized.
	Loss Loss

	// After every gradient computation, LastCost is set to
	// the cost from the batch and LastErrors is set to the
	// indices of the samples which were left out of it.
	LastCost   anyvec.Numeric
	LastErrors []int
}

// Fetch produces a *Batch for the subset of samples.
// The s argument must implement SampleList.
// The batch may not be empty.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	if s.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	l := s.(SampleList)
	ins := make([][]anyvec.Vector, l.Len())
	outs := make([][]int, l.Len())
	for i := 0; i < l.Len(); i++ {
		sample, err := l.GetSample(i)
		if err != nil {
			return nil, essentials.AddCtx("fetch batch", err)
		}
		ins[i] = sample.Input
		outs[i] = sample.Label
	}
	return &Batch{
		Inputs: anyseq.ConstSeqList(l.Creator(), ins),
		Labels: outs,
	}, nil
}

// TotalCost computes the normalized cost for the batch,
// along with the indices of the samples which were left
// out because they could not be aligned.
//
// For more information on how this works, see Loss.
func (t *Trainer) TotalCost(b *Batch) (anydiff.Res, []int, error) {
	actual := t.Func(b.Inputs)
	return t.Loss.Cost(actual, b.Labels)
}

// Gradient computes the gradient for the batch's cost.
// It also sets t.LastCost and t.LastErrors.
//
// The b argument must be a *Batch.
// Gradient panics if the labels do not fit the model's
// outputs.
func (t *Trainer) Gradient(b anysgd.Batch) anydiff.Grad {
	res := anydiff.NewGrad(t.Params...)

	cost, errs, err := t.TotalCost(b.(*Batch))
	if err != nil {
		panic(essentials.AddCtx("CTC gradient", err))
	}
	t.LastCost = anyvec.Sum(cost.Output())
	t.LastErrors = errs

	c := cost.Output().Creator()
	data := c.MakeNumericList([]float64{1})
	upstream := c.MakeVectorData(data)
	cost.Propagate(upstream, res)

	return res
}
