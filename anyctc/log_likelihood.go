package anyctc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// logLikelihood computes the log likelihood of a label
// given per-frame log probabilities, where index 0 of each
// frame is the blank symbol.
//
// If grad is non-nil, it is set to the gradient of the
// negative log likelihood with respect to the scores that
// the log probabilities were log-softmaxed from.
// It must have the same shape as logProbs.
func logLikelihood(logProbs [][]float64, label []int, grad [][]float64) float64 {
	if len(logProbs) == 0 {
		if len(label) == 0 {
			return 0
		}
		return math.Inf(-1)
	}

	// The blank-infused label has a blank at the start, at
	// the end, and between every pair of entries.
	ext := make([]int, len(label)*2+1)
	for i, x := range label {
		ext[i*2+1] = x
	}

	alpha := forwardProbs(logProbs, ext)
	last := alpha[len(alpha)-1]
	res := last[len(ext)-1]
	if len(ext) > 1 {
		res = addLogs(res, last[len(ext)-2])
	}

	if grad != nil {
		if math.IsInf(res, -1) {
			for _, g := range grad {
				for i := range g {
					g[i] = 0
				}
			}
		} else {
			beta := backwardProbs(logProbs, ext)
			fillGradient(grad, logProbs, ext, alpha, beta, res)
		}
	}

	return res
}

// forwardProbs computes, for every timestep t and every
// position s in the blank-infused label, the log
// probability of emitting the first t+1 frames and ending
// at position s.
func forwardProbs(logProbs [][]float64, ext []int) [][]float64 {
	alpha := negInfMatrix(len(logProbs), len(ext))
	alpha[0][0] = logProbs[0][ext[0]]
	if len(ext) > 1 {
		alpha[0][1] = logProbs[0][ext[1]]
	}
	for t := 1; t < len(logProbs); t++ {
		last := alpha[t-1]
		for s, sym := range ext {
			sum := last[s]
			if s > 0 {
				sum = addLogs(sum, last[s-1])
			}
			if s > 1 && sym != 0 && sym != ext[s-2] {
				sum = addLogs(sum, last[s-2])
			}
			alpha[t][s] = sum + logProbs[t][sym]
		}
	}
	return alpha
}

// backwardProbs computes, for every timestep t and every
// position s in the blank-infused label, the log
// probability of emitting the frames after t and
// finishing the label, given position s at timestep t.
func backwardProbs(logProbs [][]float64, ext []int) [][]float64 {
	beta := negInfMatrix(len(logProbs), len(ext))
	end := beta[len(beta)-1]
	end[len(ext)-1] = 0
	if len(ext) > 1 {
		end[len(ext)-2] = 0
	}
	for t := len(logProbs) - 2; t >= 0; t-- {
		next := beta[t+1]
		nextProbs := logProbs[t+1]
		for s, sym := range ext {
			sum := next[s] + nextProbs[sym]
			if s+1 < len(ext) {
				sum = addLogs(sum, next[s+1]+nextProbs[ext[s+1]])
			}
			if s+2 < len(ext) && ext[s+2] != 0 && ext[s+2] != sym {
				sum = addLogs(sum, next[s+2]+nextProbs[ext[s+2]])
			}
			beta[t][s] = sum
		}
	}
	return beta
}

// fillGradient computes the derivative of the negative
// log likelihood with respect to the pre-softmax scores.
//
// For each frame, this is the softmax output minus the
// posterior probability of occupying each symbol.
func fillGradient(grad, logProbs [][]float64, ext []int, alpha, beta [][]float64,
	total float64) {
	occupancy := make([]float64, len(logProbs[0]))
	for t, frame := range logProbs {
		for i := range occupancy {
			occupancy[i] = math.Inf(-1)
		}
		for s, sym := range ext {
			occupancy[sym] = addLogs(occupancy[sym], alpha[t][s]+beta[t][s])
		}
		for k, logProb := range frame {
			grad[t][k] = math.Exp(logProb) - math.Exp(occupancy[k]-total)
		}
	}
}

// logSoftmax writes the log-softmax of in to out.
func logSoftmax(out, in []float64) {
	if len(in) == 0 {
		return
	}
	norm := floats.LogSumExp(in)
	for i, x := range in {
		out[i] = x - norm
	}
}

// addLogs adds two numbers in the log domain.
func addLogs(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	} else if math.IsInf(b, -1) {
		return a
	}
	normalizer := math.Max(a, b)
	exp1 := math.Exp(a - normalizer)
	exp2 := math.Exp(b - normalizer)
	return math.Log(exp1+exp2) + normalizer
}

func negInfMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = math.Inf(-1)
	}
	res := make([][]float64, rows)
	for i := range res {
		res[i] = backing[i*cols : (i+1)*cols]
	}
	return res
}
