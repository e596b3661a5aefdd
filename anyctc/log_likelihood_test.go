package anyctc

import (
	"math"
	"math/rand"
	"testing"
)

const (
	testSymbolCount = 5
	testPrecision   = 1e-3
)

func TestLogLikelihoodOutputs(t *testing.T) {
	for i := 0; i < 11; i++ {
		labelLen := 5 + rand.Intn(5)
		if i == 10 {
			labelLen = 0
		}
		seqLen := labelLen + rand.Intn(5)
		label := randomLabel(labelLen)
		seq := randomProbSeq(seqLen, testSymbolCount)
		expected := exactLikelihood(seq, label, -1)
		actual := math.Exp(logLikelihood(logSeq(seq), label, nil))
		if expected == 0 {
			if actual != 0 {
				t.Errorf("expected likelihood 0 but got %e", actual)
			}
			continue
		}
		if math.Abs(actual-expected)/math.Abs(expected) > testPrecision {
			t.Errorf("LogLikelihood gave log(%e) but expected log(%e)",
				actual, expected)
		}
	}
}

func TestLogLikelihoodRepeats(t *testing.T) {
	// Repeated symbols need a blank in between them.
	seq := randomProbSeq(3, 2)
	if p := logLikelihood(logSeq(seq[:2]), []int{1, 1}, nil); !math.IsInf(p, -1) {
		t.Errorf("expected log(0) but got %f", p)
	}
	expected := seq[0][1] * seq[1][0] * seq[2][1]
	actual := math.Exp(logLikelihood(logSeq(seq), []int{1, 1}, nil))
	if math.Abs(actual-expected)/expected > testPrecision {
		t.Errorf("expected %e but got %e", expected, actual)
	}
}

func TestLogLikelihoodGrad(t *testing.T) {
	label := randomLabel(4)
	scores := make([][]float64, len(label)*2+3)
	for i := range scores {
		scores[i] = make([]float64, testSymbolCount+1)
		for j := range scores[i] {
			scores[i][j] = rand.NormFloat64()
		}
	}

	cost := func() float64 {
		logProbs := make([][]float64, len(scores))
		for i, s := range scores {
			logProbs[i] = make([]float64, len(s))
			logSoftmax(logProbs[i], s)
		}
		return -logLikelihood(logProbs, label, nil)
	}

	logProbs := make([][]float64, len(scores))
	grad := make([][]float64, len(scores))
	for i, s := range scores {
		logProbs[i] = make([]float64, len(s))
		logSoftmax(logProbs[i], s)
		grad[i] = make([]float64, len(s))
	}
	logLikelihood(logProbs, label, grad)

	const delta = 1e-5
	for i := range scores {
		for j := range scores[i] {
			old := scores[i][j]
			scores[i][j] = old + delta
			plus := cost()
			scores[i][j] = old - delta
			minus := cost()
			scores[i][j] = old
			expected := (plus - minus) / (2 * delta)
			if math.Abs(expected-grad[i][j]) > testPrecision {
				t.Errorf("frame %d symbol %d: expected partial %f but got %f",
					i, j, expected, grad[i][j])
			}
		}
	}
}

func TestLogLikelihoodGradSums(t *testing.T) {
	// The gradient of each frame is a difference of two
	// distributions, so it must sum to zero.
	label := randomLabel(3)
	seq := logSeq(randomProbSeq(10, testSymbolCount))
	grad := make([][]float64, len(seq))
	for i := range grad {
		grad[i] = make([]float64, len(seq[i]))
	}
	logLikelihood(seq, label, grad)
	for i, frame := range grad {
		var sum float64
		for _, x := range frame {
			sum += x
		}
		if math.Abs(sum) > 1e-8 {
			t.Errorf("frame %d: gradient sums to %e", i, sum)
		}
	}
}

func randomLabel(n int) []int {
	res := make([]int, n)
	for i := range res {
		res[i] = rand.Intn(testSymbolCount) + 1
	}
	return res
}

// randomProbSeq creates a sequence of random
// probability distributions over symCount symbols plus
// the blank.
func randomProbSeq(seqLen, symCount int) [][]float64 {
	seq := make([][]float64, seqLen)
	for i := range seq {
		seq[i] = make([]float64, symCount+1)
		var probSum float64
		for j := range seq[i] {
			seq[i][j] = math.Abs(rand.NormFloat64())
			probSum += seq[i][j]
		}
		for j := range seq[i] {
			seq[i][j] /= probSum
		}
	}
	return seq
}

func logSeq(seq [][]float64) [][]float64 {
	res := make([][]float64, len(seq))
	for i, frame := range seq {
		res[i] = make([]float64, len(frame))
		for j, x := range frame {
			res[i][j] = math.Log(x)
		}
	}
	return res
}

// exactLikelihood computes the likelihood of a label
// naively from a sequence of raw, unlogged probabilities.
func exactLikelihood(seq [][]float64, label []int, lastSymbol int) float64 {
	if len(seq) == 0 {
		if len(label) == 0 {
			return 1
		} else {
			return 0
		}
	}

	next := seq[0]
	const blank = 0

	var res float64
	res += next[blank] * exactLikelihood(seq[1:], label, -1)
	if lastSymbol >= 0 {
		res += next[lastSymbol] * exactLikelihood(seq[1:], label, lastSymbol)
	}
	if len(label) > 0 && label[0] != lastSymbol {
		res += next[label[0]] * exactLikelihood(seq[1:], label[1:], label[0])
	}
	return res
}
