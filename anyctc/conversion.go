package anyctc

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// vectorFloats copies a vector into a []float64.
//
// The vector must use []float32 or []float64 numeric
// lists.
func vectorFloats(v anyvec.Vector) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case []float32:
		s := make([]float64, len(d))
		for i, x := range d {
			s[i] = float64(x)
		}
		return s
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", d))
	}
}

// makeVector creates a vector from a []float64 using the
// numeric type of the creator.
func makeVector(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}
