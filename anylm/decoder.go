// Package anylm decodes CTC outputs with a beam search
// guided by an n-gram language model and, optionally, a
// lexicon of allowed words.
package anylm

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/floats"
)

// A Hypothesis is one entry of an n-best list.
type Hypothesis struct {
	// Tokens is the collapsed labeling, without blanks.
	Tokens []int

	// Words holds the words recognized by the language
	// model, in order.
	Words []string

	// Score combines the acoustic log probability with the
	// weighted language model and word scores.
	Score float64
}

// Result stores the output of a Decoder.
type Result struct {
	// Hyps stores the best labeling of every sequence.
	Hyps [][]int

	// Scores stores a confidence for every entry of Hyps,
	// computed as a softmax of the best score over the
	// n-best list.
	Scores []float64

	// NBest stores the n-best lists, best first.
	NBest [][]*Hypothesis
}

// A Decoder runs a CTC prefix beam search in which words
// are scored by a language model.
//
// Words are delimited by the silence token and by the end
// of the sequence.
// With a lexicon, the partial word of every hypothesis
// must be a prefix of a spelling in the lexicon.
//
// A Decoder never modifies its language model, lexicon,
// or tokens, and it may be used from several Goroutines
// at once.
type Decoder struct {
	// Logger receives debug information about decoded
	// sequences.
	// If nil, logrus.StandardLogger() is used.
	Logger logrus.FieldLogger

	cfg    Config
	lm     *NGramModel
	tokens *Tokens
	trie   *trieNode
	blank  int
	sil    int
}

// NewDecoder creates a decoder from loaded resources.
// The lexicon may be nil for lexicon-free decoding.
//
// File paths in the config are ignored.
func NewDecoder(cfg Config, lm *NGramModel, lex *Lexicon, tokens *Tokens) (*Decoder, error) {
	if err := cfg.checkParams(); err != nil {
		return nil, essentials.AddCtx("new decoder", err)
	}
	if lm == nil || tokens == nil {
		return nil, errors.New("new decoder: missing language model or tokens")
	}
	res := &Decoder{cfg: cfg, lm: lm, tokens: tokens}
	var ok bool
	if res.blank, ok = tokens.Index(cfg.BlankToken); !ok {
		return nil, fmt.Errorf("new decoder: blank token %q is not a token", cfg.BlankToken)
	}
	if res.sil, ok = tokens.Index(cfg.SilToken); !ok {
		return nil, fmt.Errorf("new decoder: silence token %q is not a token", cfg.SilToken)
	}
	if res.blank == res.sil {
		return nil, errors.New("new decoder: blank and silence tokens share an index")
	}
	if lex != nil {
		res.trie = res.buildTrie(lex)
	}
	return res, nil
}

// NewDecoderFromConfig loads the resources named by a
// config and creates a decoder.
func NewDecoderFromConfig(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, essentials.AddCtx("new decoder", err)
	}
	lm, err := LoadARPAFile(cfg.LanguageModel)
	if err != nil {
		return nil, err
	}
	tokens, err := LoadTokensFile(cfg.Tokens)
	if err != nil {
		return nil, err
	}
	var lex *Lexicon
	if cfg.Lexicon != "" {
		lex, err = LoadLexiconFile(cfg.Lexicon)
		if err != nil {
			return nil, err
		}
	}
	return NewDecoder(cfg, lm, lex, tokens)
}

// Decode decodes a batch in any representation accepted
// by anyctc.Transform.
// The batch should contain raw scores for every token.
func (d *Decoder) Decode(batch interface{}) (*Result, error) {
	padded, err := anyctc.Transform(batch)
	if err != nil {
		return nil, fmt.Errorf("LM decode: %w", err)
	}
	if padded.BatchSize > 0 && padded.Symbols != d.tokens.Len() {
		return nil, fmt.Errorf("LM decode: batch has %d symbols but there are %d tokens",
			padded.Symbols, d.tokens.Len())
	}

	seqs := padded.Sequences()
	res := &Result{
		Hyps:   make([][]int, len(seqs)),
		Scores: make([]float64, len(seqs)),
		NBest:  make([][]*Hypothesis, len(seqs)),
	}
	for n, seq := range seqs {
		for _, frame := range seq {
			d.normalize(frame)
		}
		nbest := d.search(seq)
		res.NBest[n] = nbest
		if len(nbest) == 0 {
			d.logger().WithField("sample", n).Warn("no hypothesis survived the beam search")
			res.Hyps[n] = []int{}
			continue
		}
		res.Hyps[n] = nbest[0].Tokens
		res.Scores[n] = Confidence(nbest)
		d.logger().WithFields(logrus.Fields{
			"sample":     n,
			"words":      nbest[0].Words,
			"score":      nbest[0].Score,
			"confidence": res.Scores[n],
		}).Debug("decoded sequence")
	}
	return res, nil
}

// Confidence computes exp(s0) / sum_i exp(si) for the
// scores si of an n-best list.
func Confidence(nbest []*Hypothesis) float64 {
	if len(nbest) == 0 {
		return 0
	}
	scores := make([]float64, len(nbest))
	for i, h := range nbest {
		scores[i] = h.Score
	}
	return math.Exp(scores[0] - floats.LogSumExp(scores))
}

func (d *Decoder) normalize(frame []float64) {
	floats.Scale(1/d.cfg.Temperature, frame)
	norm := floats.LogSumExp(frame)
	floats.AddConst(-norm, frame)
}

func (d *Decoder) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

func (d *Decoder) buildTrie(lex *Lexicon) *trieNode {
	root := newTrieNode()
	for _, word := range lex.Words() {
	SpellingLoop:
		for _, spelling := range lex.Spellings(word) {
			indices := make([]int, len(spelling))
			for i, tok := range spelling {
				idx, ok := d.tokens.Index(tok)
				if !ok || idx == d.blank || idx == d.sil {
					d.logger().WithFields(logrus.Fields{
						"word":  word,
						"token": tok,
					}).Warn("skipping spelling with an unusable token")
					continue SpellingLoop
				}
				indices[i] = idx
			}
			root.Insert(indices, word)
		}
	}
	return root
}

type trieNode struct {
	children map[int]*trieNode
	words    []string
}

func newTrieNode() *trieNode {
	return &trieNode{children: map[int]*trieNode{}}
}

// Insert adds a word at the end of a path.
func (t *trieNode) Insert(path []int, word string) {
	node := t
	for _, x := range path {
		child, ok := node.children[x]
		if !ok {
			child = newTrieNode()
			node.children[x] = child
		}
		node = child
	}
	for _, w := range node.words {
		if w == word {
			return
		}
	}
	node.words = append(node.words, word)
}
