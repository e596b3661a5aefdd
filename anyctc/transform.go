package anyctc

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// A Tensor is a dense, time-major batch of per-frame
// symbol scores.
//
// Component (t*BatchSize+n)*Symbols+d of Data is the
// score of symbol d at timestep t for sequence n.
// Symbol 0 is the CTC blank.
type Tensor struct {
	Data      anydiff.Res
	Steps     int
	BatchSize int
	Symbols   int
}

// Padded is a Tensor whose sequences may be shorter than
// its time extent.
// Lengths[n] is the number of leading timesteps which
// belong to sequence n; the rest is padding.
type Padded struct {
	Tensor
	Lengths []int
}

// NewPadded creates a constant Padded batch from a list
// of sequences, where seqs[n][t] holds the scores of
// sequence n at timestep t.
//
// Every frame must have the same number of symbols.
func NewPadded(c anyvec.Creator, seqs [][][]float64) *Padded {
	var steps, symbols int
	lengths := make([]int, len(seqs))
	for i, seq := range seqs {
		lengths[i] = len(seq)
		if len(seq) > steps {
			steps = len(seq)
		}
		if len(seq) > 0 {
			symbols = len(seq[0])
		}
	}
	data := make([]float64, steps*len(seqs)*symbols)
	for n, seq := range seqs {
		for t, frame := range seq {
			if len(frame) != symbols {
				panic(fmt.Sprintf("frame has %d symbols but expected %d", len(frame), symbols))
			}
			copy(data[(t*len(seqs)+n)*symbols:], frame)
		}
	}
	return &Padded{
		Tensor: Tensor{
			Data:      anydiff.NewConst(makeVector(c, data)),
			Steps:     steps,
			BatchSize: len(seqs),
			Symbols:   symbols,
		},
		Lengths: lengths,
	}
}

// UnsupportedBatchTypeError is returned when Transform
// does not recognize a batch representation.
type UnsupportedBatchTypeError struct {
	Type string
}

// Error returns the error message.
func (u *UnsupportedBatchTypeError) Error() string {
	return "unsupported batch type: " + u.Type
}

// Transform converts a batch of output sequences into the
// canonical Padded representation.
//
// The batch may be a *Padded, a *Tensor (in which case
// every sequence spans the full time extent), or a
// length-packed anyseq.Seq.
// A *Padded with nil Lengths is treated like a *Tensor.
//
// The resulting Padded is differentiable with respect to
// the variables of the original batch.
func Transform(batch interface{}) (*Padded, error) {
	var res *Padded
	switch b := batch.(type) {
	case *Padded:
		if b == nil {
			return nil, errors.New("transform batch: nil batch")
		}
		res = &Padded{Tensor: b.Tensor}
		if b.Lengths == nil {
			res.Lengths = fullLengths(b.Steps, b.BatchSize)
		} else {
			res.Lengths = append([]int{}, b.Lengths...)
		}
	case *Tensor:
		if b == nil {
			return nil, errors.New("transform batch: nil batch")
		}
		res = &Padded{Tensor: *b, Lengths: fullLengths(b.Steps, b.BatchSize)}
	case anyseq.Seq:
		var err error
		res, err = padSeq(b)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &UnsupportedBatchTypeError{Type: fmt.Sprintf("%T", batch)}
	}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Offset returns the index in Data of the first symbol of
// the frame at timestep t of sequence n.
func (p *Padded) Offset(t, n int) int {
	return (t*p.BatchSize + n) * p.Symbols
}

// Sequences copies the unpadded frames of every sequence
// out of the batch.
// The result is indexed by sequence, then timestep.
func (p *Padded) Sequences() [][][]float64 {
	data := vectorFloats(p.Data.Output())
	res := make([][][]float64, p.BatchSize)
	for n, length := range p.Lengths {
		res[n] = make([][]float64, length)
		for t := range res[n] {
			offset := p.Offset(t, n)
			res[n][t] = append([]float64{}, data[offset:offset+p.Symbols]...)
		}
	}
	return res
}

func (p *Padded) validate() error {
	if p.Data == nil {
		return errors.New("transform batch: missing data")
	}
	if p.Steps < 0 || p.BatchSize < 0 || p.Symbols < 0 {
		return errors.New("transform batch: negative dimension")
	}
	if p.Symbols == 0 && p.Steps*p.BatchSize > 0 {
		return errors.New("transform batch: frames have no symbols")
	}
	if n := p.Data.Output().Len(); n != p.Steps*p.BatchSize*p.Symbols {
		return fmt.Errorf("transform batch: data has %d components but shape is %dx%dx%d",
			n, p.Steps, p.BatchSize, p.Symbols)
	}
	if len(p.Lengths) != p.BatchSize {
		return fmt.Errorf("transform batch: %d lengths for batch size %d",
			len(p.Lengths), p.BatchSize)
	}
	for i, l := range p.Lengths {
		if l < 0 || l > p.Steps {
			return fmt.Errorf("transform batch: length %d of sequence %d out of range [0, %d]",
				l, i, p.Steps)
		}
	}
	return nil
}

func fullLengths(steps, batchSize int) []int {
	res := make([]int, batchSize)
	for i := range res {
		res[i] = steps
	}
	return res
}

// padSeq pads a length-packed sequence batch into a dense
// tensor.
func padSeq(seq anyseq.Seq) (*Padded, error) {
	batches := seq.Output()
	c := seq.Creator()
	if len(batches) == 0 {
		return &Padded{Tensor: Tensor{Data: anydiff.NewConst(c.MakeVector(0))}}, nil
	}

	batchSize := len(batches[0].Present)
	var symbols int
	for _, b := range batches {
		if n := b.NumPresent(); n > 0 {
			symbols = b.Packed.Len() / n
			break
		}
	}

	lengths := make([]int, batchSize)
	data := make([]float64, len(batches)*batchSize*symbols)
	for t, b := range batches {
		if len(b.Present) != batchSize {
			return nil, fmt.Errorf("pad sequences: timestep %d has batch size %d (expected %d)",
				t, len(b.Present), batchSize)
		}
		if b.Packed.Len() != b.NumPresent()*symbols {
			return nil, fmt.Errorf("pad sequences: timestep %d has %d components (expected %d)",
				t, b.Packed.Len(), b.NumPresent()*symbols)
		}
		packed := vectorFloats(b.Packed)
		var idx int
		for n, present := range b.Present {
			if !present {
				continue
			}
			if lengths[n] != t {
				return nil, fmt.Errorf("pad sequences: sequence %d resumes at timestep %d", n, t)
			}
			lengths[n]++
			copy(data[(t*batchSize+n)*symbols:], packed[idx*symbols:(idx+1)*symbols])
			idx++
		}
	}

	res := &seqPadRes{
		In:        seq,
		OutVec:    makeVector(c, data),
		BatchSize: batchSize,
		Symbols:   symbols,
	}
	return &Padded{
		Tensor: Tensor{
			Data:      res,
			Steps:     len(batches),
			BatchSize: batchSize,
			Symbols:   symbols,
		},
		Lengths: lengths,
	}, nil
}

type seqPadRes struct {
	In        anyseq.Seq
	OutVec    anyvec.Vector
	BatchSize int
	Symbols   int
}

func (s *seqPadRes) Output() anyvec.Vector {
	return s.OutVec
}

func (s *seqPadRes) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *seqPadRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := vectorFloats(u)
	batches := s.In.Output()
	downstream := make([]*anyseq.Batch, len(batches))
	for t, b := range batches {
		packed := make([]float64, 0, b.NumPresent()*s.Symbols)
		for n, present := range b.Present {
			if present {
				offset := (t*s.BatchSize + n) * s.Symbols
				packed = append(packed, upstream[offset:offset+s.Symbols]...)
			}
		}
		downstream[t] = &anyseq.Batch{
			Packed:  makeVector(u.Creator(), packed),
			Present: b.Present,
		}
	}
	s.In.Propagate(downstream, g)
}
