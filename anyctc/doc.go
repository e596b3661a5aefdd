// Package anyctc implements Connectionist Temporal
// Classification (CTC) for text recognition.
// For more information on CTC, see this paper:
// http://www.cs.toronto.edu/~graves/icml_2006.pdf.
//
// Throughout this package, symbol 0 is the blank.
// Network outputs are raw scores, arranged as a
// time-major Tensor or Padded batch, or as a length-packed
// anyseq.Seq.
//
// The loss skips samples whose outputs are too short to
// be aligned with their labels, and reports their indices
// instead of failing the whole batch.
package anyctc
