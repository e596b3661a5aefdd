package anylm

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// A beam is a prefix in the beam search.
//
// The acoustic probability of the prefix is split between
// paths ending in a blank and paths ending in the last
// token.
// Everything else is determined by the tokens, so beams
// with the same key can be merged.
type beam struct {
	key    string
	tokens []int

	pBlank    float64
	pNonBlank float64

	lmScore float64
	words   []string

	// partial holds the tokens of the unfinished word.
	// With a lexicon, node is its position in the trie, or
	// nil if the word is not in the lexicon.
	partial []int
	node    *trieNode
}

func (b *beam) Acoustic() float64 {
	return logAdd(b.pBlank, b.pNonBlank)
}

func (b *beam) Total() float64 {
	return b.Acoustic() + b.lmScore
}

// state copies everything but the acoustic probability.
func (b *beam) state() *beam {
	return &beam{
		key:       b.key,
		tokens:    b.tokens,
		pBlank:    LogZero,
		pNonBlank: LogZero,
		lmScore:   b.lmScore,
		words:     b.words,
		partial:   b.partial,
		node:      b.node,
	}
}

func (d *Decoder) search(seq [][]float64) []*Hypothesis {
	beams := []*beam{{pBlank: 0, pNonBlank: LogZero, node: d.trie}}
	for _, frame := range seq {
		next := map[string]*beam{}
		merge := func(b *beam) *beam {
			if existing, ok := next[b.key]; ok {
				return existing
			}
			next[b.key] = b
			return b
		}
		for _, b := range beams {
			total := b.Acoustic()
			same := merge(b.state())
			same.pBlank = logAdd(same.pBlank, total+frame[d.blank])

			last := -1
			if len(b.tokens) > 0 {
				last = b.tokens[len(b.tokens)-1]
				same.pNonBlank = logAdd(same.pNonBlank, b.pNonBlank+frame[last])
			}

			for tok, logProb := range frame {
				if tok == d.blank {
					continue
				}
				p := total + logProb
				if tok == last {
					p = b.pBlank + logProb
				}
				if math.IsInf(p, -1) {
					continue
				}
				ext, ok := d.extend(b, tok)
				if !ok {
					continue
				}
				ext = merge(ext)
				ext.pNonBlank = logAdd(ext.pNonBlank, p)
			}
		}
		beams = d.prune(next)
	}

	var res []*Hypothesis
	for _, b := range beams {
		if h := d.finish(b); h != nil {
			res = append(res, h)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Score > res[j].Score
	})
	if len(res) > d.cfg.NBest {
		res = res[:d.cfg.NBest]
	}
	return res
}

// extend appends a token to a beam, returning false if
// the resulting prefix is not allowed.
func (d *Decoder) extend(b *beam, tok int) (*beam, bool) {
	res := b.state()
	res.key = b.key + "," + strconv.Itoa(tok)
	res.tokens = append(append([]int{}, b.tokens...), tok)

	if tok == d.sil {
		if len(b.partial) == 0 {
			return res, true
		}
		word, score, ok := d.closeWord(b)
		if !ok {
			return nil, false
		}
		res.words = append(append([]string{}, b.words...), word)
		res.lmScore += score
		res.partial = nil
		res.node = d.trie
		return res, true
	}

	res.partial = append(append([]int{}, b.partial...), tok)
	if d.trie != nil {
		var next *trieNode
		if b.node != nil {
			next = b.node.children[tok]
		}
		if next == nil && !d.allowUnk() {
			return nil, false
		}
		res.node = next
	}
	return res, true
}

// closeWord finds the word spelled by the partial word of
// a beam and the score for adding it.
func (d *Decoder) closeWord(b *beam) (string, float64, bool) {
	history := append([]string{sentenceStart}, b.words...)
	if d.trie == nil {
		var word strings.Builder
		for _, tok := range b.partial {
			word.WriteString(d.tokens.Token(tok))
		}
		return word.String(), d.wordScore(history, word.String()), true
	}

	if b.node == nil || len(b.node.words) == 0 {
		if !d.allowUnk() {
			return "", 0, false
		}
		return d.cfg.UnkToken, d.lmScore(history, d.cfg.UnkToken) + d.cfg.UnkScore, true
	}

	bestWord := b.node.words[0]
	bestScore := d.wordScore(history, bestWord)
	for _, word := range b.node.words[1:] {
		if score := d.wordScore(history, word); score > bestScore {
			bestWord, bestScore = word, score
		}
	}
	return bestWord, bestScore, true
}

func (d *Decoder) wordScore(history []string, word string) float64 {
	if !d.lm.HasWord(word) {
		word = d.cfg.UnkToken
	}
	return d.lmScore(history, word) + d.cfg.WordScore
}

// lmScore returns the weighted log probability of a word.
// A zero weight disables the language model, even for
// impossible words.
// Otherwise impossible words stay impossible whatever the
// sign of the weight.
func (d *Decoder) lmScore(history []string, word string) float64 {
	if d.cfg.LanguageModelWeight == 0 {
		return 0
	}
	logProb := d.lm.LogProb(history, word)
	if math.IsInf(logProb, -1) {
		return LogZero
	}
	return d.cfg.LanguageModelWeight * logProb
}

func (d *Decoder) allowUnk() bool {
	return !math.IsInf(d.cfg.UnkScore, -1)
}

// finish closes the last word of a beam and adds the
// sentence end score.
// It returns nil if the beam cannot be completed.
func (d *Decoder) finish(b *beam) *Hypothesis {
	words := b.words
	score := b.Total()
	if len(b.partial) > 0 {
		word, wordScore, ok := d.closeWord(b)
		if !ok {
			return nil
		}
		words = append(append([]string{}, words...), word)
		score += wordScore
	}
	if d.lm.HasWord(sentenceEnd) {
		history := append([]string{sentenceStart}, words...)
		score += d.lmScore(history, sentenceEnd)
	}
	if math.IsInf(score, 0) || math.IsNaN(score) {
		return nil
	}
	return &Hypothesis{
		Tokens: append([]int{}, b.tokens...),
		Words:  append([]string{}, words...),
		Score:  score,
	}
}

// prune keeps the best beams, dropping impossible ones.
func (d *Decoder) prune(beams map[string]*beam) []*beam {
	res := make([]*beam, 0, len(beams))
	for _, b := range beams {
		if total := b.Total(); !math.IsInf(total, -1) && !math.IsNaN(total) {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		ti, tj := res[i].Total(), res[j].Total()
		if ti != tj {
			return ti > tj
		}
		return res[i].key < res[j].key
	})
	if len(res) > d.cfg.BeamSize {
		res = res[:d.cfg.BeamSize]
	}
	return res
}

func logAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}
