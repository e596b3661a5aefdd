package anyctc

import (
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// A Sample is a training sequence paired with its
// corresponding label.
//
// Label entries are symbol indices; 0 is reserved for
// the blank and may not appear in a label.
type Sample struct {
	Input []anyvec.Vector
	Label []int
}

// A SampleList is an anysgd.SampleList that produces
// CTC samples.
type SampleList interface {
	anysgd.SampleList

	GetSample(idx int) (*Sample, error)
	Creator() anyvec.Creator
}

// A SliceSampleList is a concrete SampleList with
// predetermined samples.
type SliceSampleList []*Sample

// Len returns the number of samples.
func (s SliceSampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SliceSampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-slice of the list.
func (s SliceSampleList) Slice(i, j int) anysgd.SampleList {
	return append(SliceSampleList{}, s[i:j]...)
}

// GetSample returns the sample at the index.
func (s SliceSampleList) GetSample(idx int) (*Sample, error) {
	return s[idx], nil
}

// Creator returns the creator of the first input vector
// in the list.
// If the list has no input vectors, a 64-bit creator is
// returned.
func (s SliceSampleList) Creator() anyvec.Creator {
	for _, sample := range s {
		if len(sample.Input) > 0 {
			return sample.Input[0].Creator()
		}
	}
	return anyvec64.DefaultCreator{}
}
