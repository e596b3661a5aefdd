package anytext

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyhtr/anysyms"
	"gonum.org/v1/gonum/floats"
)

// An Encoder converts tokenized text into label indices.
type Encoder struct {
	Symbols *anysyms.Table

	// Logger receives an error for every token which is
	// not in Symbols.
	// If nil, logrus.StandardLogger() is used.
	Logger logrus.FieldLogger
}

// Encode looks up every whitespace-separated token of the
// text.
// Missing tokens are logged and encoded as
// anysyms.NoValue, so the rest of the line is kept.
func (e *Encoder) Encode(text string) []int {
	res := []int{}
	for _, tok := range strings.Fields(text) {
		val, ok := e.Symbols.Value(tok)
		if !ok {
			e.logger().WithField("symbol", tok).Error("could not find symbol in the symbols table")
			val = anysyms.NoValue
		}
		res = append(res, val)
	}
	return res
}

func (e *Encoder) logger() logrus.FieldLogger {
	if e.Logger == nil {
		return logrus.StandardLogger()
	}
	return e.Logger
}

// Decode maps label indices back to symbols.
// Missing indices are logged and become anysyms.Unknown.
func (e *Encoder) Decode(hyp []int) []string {
	res := make([]string, len(hyp))
	for i, val := range hyp {
		sym, ok := e.Symbols.Symbol(val)
		if !ok {
			e.logger().WithField("value", val).Error("could not find value in the symbols table")
			sym = anysyms.Unknown
		}
		res[i] = sym
	}
	return res
}

// WordProbs computes a confidence score for every word of
// a decoded labeling.
//
// Words are the runs of symbols between occurrences of
// separator, and the score of a word is the mean of the
// probabilities of its symbols.
// Empty runs produce no score.
// If separator is not in the table, a warning is logged
// and the whole labeling is a single word.
// If logger is nil, logrus.StandardLogger() is used.
func WordProbs(syms *anysyms.Table, hyp []int, probs []float64, separator string,
	logger logrus.FieldLogger) ([]float64, error) {
	if len(hyp) != len(probs) {
		return nil, fmt.Errorf("word probs: %d symbols but %d probabilities", len(hyp), len(probs))
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sepVal, hasSep := syms.Value(separator)
	if !hasSep {
		logger.WithField("symbol", separator).Warn("word separator is not in the symbols table")
	}
	res := []float64{}
	var word []float64
	for i, val := range hyp {
		if !hasSep || val != sepVal {
			word = append(word, probs[i])
		} else if len(word) > 0 {
			res = append(res, floats.Sum(word)/float64(len(word)))
			word = word[:0]
		}
	}
	if len(word) > 0 {
		res = append(res, floats.Sum(word)/float64(len(word)))
	}
	return res, nil
}
