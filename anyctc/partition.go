package anyctc

import "fmt"

// Feasible reports whether a CTC alignment can exist
// between an output of outLen frames and a label of
// labelLen symbols.
func Feasible(outLen, labelLen int) bool {
	return outLen > 2*labelLen+1
}

// A Partition splits the indices of a batch into samples
// that can be aligned with their labels and samples that
// cannot.
//
// Both lists are in ascending order and every index of
// the batch appears in exactly one of them.
type Partition struct {
	Valid  []int
	Errors []int
}

// NewPartition checks every sample of a batch for
// feasibility.
func NewPartition(outLens, labelLens []int) *Partition {
	if len(outLens) != len(labelLens) {
		panic(fmt.Sprintf("%d output lengths but %d label lengths",
			len(outLens), len(labelLens)))
	}
	res := &Partition{}
	for i, outLen := range outLens {
		if Feasible(outLen, labelLens[i]) {
			res.Valid = append(res.Valid, i)
		} else {
			res.Errors = append(res.Errors, i)
		}
	}
	return res
}

// Empty returns true if no sample is erroneous, in which
// case the partition is the identity.
func (p *Partition) Empty() bool {
	return len(p.Errors) == 0
}

// Size returns the size of the original batch.
func (p *Partition) Size() int {
	return len(p.Valid) + len(p.Errors)
}

// Gather copies the valid columns of a time-major buffer
// into a compact buffer.
//
// The src buffer has steps*Size()*width components and
// dst has steps*len(p.Valid)*width components.
func (p *Partition) Gather(dst, src []float64, steps, width int) {
	p.checkSizes(src, dst, steps, width)
	for t := 0; t < steps; t++ {
		for newIdx, oldIdx := range p.Valid {
			d := (t*len(p.Valid) + newIdx) * width
			s := (t*p.Size() + oldIdx) * width
			copy(dst[d:d+width], src[s:s+width])
		}
	}
}

// Scatter is the inverse of Gather.
// Columns of dst belonging to erroneous samples are set
// to zero.
func (p *Partition) Scatter(dst, src []float64, steps, width int) {
	p.checkSizes(dst, src, steps, width)
	for i := range dst {
		dst[i] = 0
	}
	for t := 0; t < steps; t++ {
		for newIdx, oldIdx := range p.Valid {
			s := (t*len(p.Valid) + newIdx) * width
			d := (t*p.Size() + oldIdx) * width
			copy(dst[d:d+width], src[s:s+width])
		}
	}
}

// SelectInts returns the entries of list at the valid
// indices.
func (p *Partition) SelectInts(list []int) []int {
	res := make([]int, len(p.Valid))
	for i, idx := range p.Valid {
		res[i] = list[idx]
	}
	return res
}

// SelectLabels returns the labels at the valid indices.
func (p *Partition) SelectLabels(labels [][]int) [][]int {
	res := make([][]int, len(p.Valid))
	for i, idx := range p.Valid {
		res[i] = labels[idx]
	}
	return res
}

func (p *Partition) checkSizes(full, compact []float64, steps, width int) {
	if len(full) != steps*p.Size()*width {
		panic(fmt.Sprintf("full buffer has %d components (expected %d)",
			len(full), steps*p.Size()*width))
	}
	if len(compact) != steps*len(p.Valid)*width {
		panic(fmt.Sprintf("compact buffer has %d components (expected %d)",
			len(compact), steps*len(p.Valid)*width))
	}
}
