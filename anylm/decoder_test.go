package anylm

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/anyvec/anyvec64"
)

const decoderARPA = `\data\
ngram 1=4

\1-grams:
-1.0	</s>
-99	<s>
-3.0	ab
-0.1	ba

\end\
`

// Tokens are <ctc>, a, b, and <space>.
var ambiguousFrames = [][]float64{
	{0.02, 0.55, 0.4, 0.03},
	{0.02, 0.4, 0.55, 0.03},
}

func TestDecoderLanguageModel(t *testing.T) {
	cfg := testConfig()
	cfg.LanguageModelWeight = 0
	res := decodeProbs(t, testDecoder(t, cfg, nil), ambiguousFrames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{1, 2}}) {
		t.Errorf("without LM: unexpected hypotheses %v", res.Hyps)
	}

	res = decodeProbs(t, testDecoder(t, testConfig(), nil), ambiguousFrames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{2, 1}}) {
		t.Errorf("with LM: unexpected hypotheses %v", res.Hyps)
	}
	best := res.NBest[0][0]
	if !reflect.DeepEqual(best.Words, []string{"ba"}) {
		t.Errorf("unexpected words: %v", best.Words)
	}
	expected := math.Log(0.4*0.4) + (-0.1-1.0)*math.Ln10
	if math.Abs(best.Score-expected) > 1e-8 {
		t.Errorf("expected score %f but got %f", expected, best.Score)
	}
	for _, h := range res.NBest[0] {
		for _, w := range h.Words {
			if w != "ab" && w != "ba" {
				t.Errorf("unknown word %q survived", w)
			}
		}
	}
}

func TestDecoderLexicon(t *testing.T) {
	lex := NewLexicon()
	lex.Add("ba", []string{"b", "a"})
	cfg := testConfig()
	cfg.LanguageModelWeight = 0
	res := decodeProbs(t, testDecoder(t, cfg, lex), ambiguousFrames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{2, 1}}) {
		t.Errorf("unexpected hypotheses %v", res.Hyps)
	}
	for _, h := range res.NBest[0] {
		for _, w := range h.Words {
			if w != "ba" {
				t.Errorf("word %q is not in the lexicon", w)
			}
		}
	}

	cfg.UnkScore = -0.1
	res = decodeProbs(t, testDecoder(t, cfg, lex), ambiguousFrames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{1, 2}}) {
		t.Errorf("with unknown words: unexpected hypotheses %v", res.Hyps)
	}
	if words := res.NBest[0][0].Words; !reflect.DeepEqual(words, []string{"<unk>"}) {
		t.Errorf("unexpected words: %v", words)
	}
}

func TestDecoderWords(t *testing.T) {
	var frames [][]float64
	for _, tok := range []int{2, 1, 3, 1, 0, 2, 2} {
		frame := []float64{0.01, 0.01, 0.01, 0.01}
		frame[tok] = 0.97
		frames = append(frames, frame)
	}
	res := decodeProbs(t, testDecoder(t, testConfig(), nil), frames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{2, 1, 3, 1, 2}}) {
		t.Errorf("unexpected hypotheses %v", res.Hyps)
	}
	if words := res.NBest[0][0].Words; !reflect.DeepEqual(words, []string{"ba", "ab"}) {
		t.Errorf("unexpected words: %v", words)
	}
}

func TestDecoderScores(t *testing.T) {
	d := testDecoder(t, testConfig(), nil)
	res := decodeProbs(t, d, ambiguousFrames, ambiguousFrames[:1], nil)
	if len(res.Hyps) != 3 || len(res.Scores) != 3 || len(res.NBest) != 3 {
		t.Fatalf("unexpected result sizes: %d %d %d",
			len(res.Hyps), len(res.Scores), len(res.NBest))
	}
	for i, nbest := range res.NBest {
		if len(nbest) == 0 || len(nbest) > d.cfg.NBest {
			t.Errorf("sample %d: bad n-best size %d", i, len(nbest))
			continue
		}
		for j := 1; j < len(nbest); j++ {
			if nbest[j].Score > nbest[j-1].Score {
				t.Errorf("sample %d: n-best list is not sorted", i)
			}
		}
		if res.Scores[i] <= 0 || res.Scores[i] > 1 {
			t.Errorf("sample %d: bad confidence %f", i, res.Scores[i])
		}
		if math.Abs(res.Scores[i]-Confidence(nbest)) > 1e-12 {
			t.Errorf("sample %d: confidence mismatch", i)
		}
	}
	if len(res.NBest[2]) != 1 || res.Scores[2] != 1 || len(res.Hyps[2]) != 0 {
		t.Errorf("unexpected result for empty sequence: %v %v", res.Hyps[2], res.Scores[2])
	}

	again := decodeProbs(t, d, ambiguousFrames, ambiguousFrames[:1], nil)
	if !reflect.DeepEqual(again, res) {
		t.Error("decoding is not deterministic")
	}
}

func TestDecoderNegativeWeight(t *testing.T) {
	cfg := testConfig()
	cfg.LanguageModelWeight = -0.5
	var frames [][]float64
	for _, tok := range []int{1, 1, 3, 0} {
		frame := []float64{0.01, 0.01, 0.01, 0.01}
		frame[tok] = 0.97
		frames = append(frames, frame)
	}
	res := decodeProbs(t, testDecoder(t, cfg, nil), frames)
	if math.IsNaN(res.Scores[0]) || res.Scores[0] < 0 || res.Scores[0] > 1 {
		t.Errorf("bad confidence %f", res.Scores[0])
	}
	for _, h := range res.NBest[0] {
		if math.IsInf(h.Score, 0) || math.IsNaN(h.Score) {
			t.Errorf("hypothesis %v has score %f", h.Words, h.Score)
		}
		for _, w := range h.Words {
			if w == "<unk>" {
				t.Errorf("word %q is impossible under the language model", w)
			}
		}
	}
}

func TestConfidence(t *testing.T) {
	nbest := []*Hypothesis{
		{Score: math.Log(3)},
		{Score: math.Log(0.5)},
		{Score: math.Log(0.5)},
	}
	if c := Confidence(nbest); math.Abs(c-0.75) > 1e-12 {
		t.Errorf("expected 0.75 but got %f", c)
	}
	if c := Confidence(nbest[:1]); math.Abs(c-1) > 1e-12 {
		t.Errorf("expected 1 but got %f", c)
	}
	if c := Confidence([]*Hypothesis{{Score: -1000}, {Score: -1001}}); math.IsNaN(c) || c < 0.5 {
		t.Errorf("unstable confidence %f", c)
	}
	if c := Confidence(nil); c != 0 {
		t.Errorf("expected 0 but got %f", c)
	}
}

func TestDecoderTemperature(t *testing.T) {
	cfg := testConfig()
	cfg.Temperature = 2
	d := testDecoder(t, cfg, nil)
	frame := []float64{2, 0, 0, 0}
	d.normalize(frame)
	norm := math.Log(math.E + 3)
	expected := []float64{1 - norm, -norm, -norm, -norm}
	for i, x := range expected {
		if math.Abs(frame[i]-x) > 1e-10 {
			t.Errorf("expected %v but got %v", expected, frame)
			break
		}
	}
}

func TestDecoderErrors(t *testing.T) {
	d := testDecoder(t, testConfig(), nil)
	c := anyvec64.CurrentCreator()
	if _, err := d.Decode(anyctc.NewPadded(c, [][][]float64{{{1, 2, 3}}})); err == nil {
		t.Error("expected an error for mismatched symbols")
	}
	_, err := d.Decode(42)
	var typeErr *anyctc.UnsupportedBatchTypeError
	if !errors.As(err, &typeErr) {
		t.Errorf("unexpected error: %v", err)
	}

	lm, _ := LoadARPA(strings.NewReader(decoderARPA))
	tokens, _ := NewTokens([]string{"<ctc>", "a", "b"})
	if _, err := NewDecoder(*testConfig(), lm, nil, tokens); err == nil {
		t.Error("expected an error for a missing silence token")
	}
	if _, err := NewDecoder(*testConfig(), nil, nil, tokens); err == nil {
		t.Error("expected an error for a missing language model")
	}
	cfg := testConfig()
	cfg.BeamSize = 0
	tokens, _ = NewTokens([]string{"<ctc>", "a", "b", "<space>"})
	if _, err := NewDecoder(*cfg, lm, nil, tokens); err == nil {
		t.Error("expected an error for a bad config")
	}
}

func TestNewDecoderFromConfig(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"lm.arpa":     decoderARPA,
		"tokens.txt":  "<ctc>\na\nb\n<space>\n",
		"lexicon.txt": "ba b a\nab a b\nab a b b\nbad b a z\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := DefaultConfig()
	cfg.LanguageModel = filepath.Join(dir, "lm.arpa")
	cfg.Tokens = filepath.Join(dir, "tokens.txt")
	cfg.Lexicon = filepath.Join(dir, "lexicon.txt")

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	d, err := NewDecoderFromConfig(*cfg)
	if err != nil {
		t.Fatal(err)
	}
	d.Logger = logger
	res := decodeProbs(t, d, ambiguousFrames)
	if !reflect.DeepEqual(res.Hyps, [][]int{{2, 1}}) {
		t.Errorf("unexpected hypotheses %v", res.Hyps)
	}
	if len(hook.Entries) != 1 {
		t.Errorf("expected one debug entry but got %d", len(hook.Entries))
	}

	cfg.Lexicon = filepath.Join(dir, "missing.txt")
	if _, err := NewDecoderFromConfig(*cfg); err == nil {
		t.Error("expected an error for a missing lexicon")
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.LanguageModel = "lm.arpa"
	cfg.Tokens = "tokens.txt"
	return cfg
}

func testDecoder(t *testing.T, cfg *Config, lex *Lexicon) *Decoder {
	lm, err := LoadARPA(strings.NewReader(decoderARPA))
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := NewTokens([]string{"<ctc>", "a", "b", "<space>"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDecoder(*cfg, lm, lex, tokens)
	if err != nil {
		t.Fatal(err)
	}
	d.Logger, _ = test.NewNullLogger()
	return d
}

func decodeProbs(t *testing.T, d *Decoder, probSeqs ...[][]float64) *Result {
	seqs := make([][][]float64, len(probSeqs))
	for i, probs := range probSeqs {
		seqs[i] = make([][]float64, len(probs))
		for j, frame := range probs {
			seqs[i][j] = make([]float64, len(frame))
			for k, p := range frame {
				seqs[i][j][k] = math.Log(p)
			}
		}
	}
	res, err := d.Decode(anyctc.NewPadded(anyvec64.CurrentCreator(), seqs))
	if err != nil {
		t.Fatal(err)
	}
	return res
}
