package main

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/anyhtr/anysyms"
	"github.com/unixpickle/anyhtr/anytext"
	"github.com/unixpickle/anyvec"
)

// A Line is a text line and its rendered frames.
type Line struct {
	Text   string
	Sample *anyctc.Sample
}

// A LineGenerator renders random text lines as sequences
// of noisy feature frames.
//
// Every symbol is drawn as Config.FramesSym frames which
// point at its index, and symbols are separated by a frame
// pointing at the blank.
// Lines can be aligned when Config.FramesSym is at least 2.
type LineGenerator struct {
	Creator anyvec.Creator
	Symbols *anysyms.Table
	Space   string
	Config  DataConfig
	Logger  logrus.FieldLogger

	rand    *rand.Rand
	encoder *anytext.Encoder
}

// NewLineGenerator creates a generator seeded from the
// config.
func NewLineGenerator(c anyvec.Creator, syms *anysyms.Table, space string,
	cfg DataConfig, logger logrus.FieldLogger) *LineGenerator {
	return &LineGenerator{
		Creator: c,
		Symbols: syms,
		Space:   space,
		Config:  cfg,
		Logger:  logger,
		rand:    rand.New(rand.NewSource(cfg.RandomSeed)),
		encoder: &anytext.Encoder{Symbols: syms, Logger: logger},
	}
}

// FeatureSize is the size of every frame.
func (l *LineGenerator) FeatureSize() int {
	return l.Symbols.Len()
}

// Text creates a random line of words.
func (l *LineGenerator) Text() string {
	words := make([]string, l.Config.WordsLine)
	for i := range words {
		words[i] = l.Config.Words[l.rand.Intn(len(l.Config.Words))]
	}
	return strings.Join(words, " ")
}

// Labels tokenizes and encodes a line of text.
func (l *LineGenerator) Labels(text string) ([]int, error) {
	tokens := anytext.Tokenize(text, l.Space, " ", l.Symbols.Symbols())
	labels := l.encoder.Encode(tokens)
	for _, label := range labels {
		if label <= 0 || label >= l.FeatureSize() {
			return nil, fmt.Errorf("encode %q: unusable label %d", text, label)
		}
	}
	return labels, nil
}

// Render creates the frames for a line of text.
func (l *LineGenerator) Render(text string) (*Line, error) {
	labels, err := l.Labels(text)
	if err != nil {
		return nil, err
	}
	frames := []anyvec.Vector{l.frame(0)}
	for _, label := range labels {
		for i := 0; i < l.Config.FramesSym; i++ {
			frames = append(frames, l.frame(label))
		}
		frames = append(frames, l.frame(0))
	}
	return &Line{
		Text:   text,
		Sample: &anyctc.Sample{Input: frames, Label: labels},
	}, nil
}

// Lines renders n random lines.
func (l *LineGenerator) Lines(n int) ([]*Line, error) {
	res := make([]*Line, n)
	for i := range res {
		line, err := l.Render(l.Text())
		if err != nil {
			return nil, err
		}
		res[i] = line
	}
	return res, nil
}

func (l *LineGenerator) frame(idx int) anyvec.Vector {
	data := make([]float64, l.FeatureSize())
	for i := range data {
		data[i] = l.rand.NormFloat64() * l.Config.Noise
	}
	data[idx] += 1
	return l.Creator.MakeVectorData(l.Creator.MakeNumericList(data))
}

// SampleList extracts the samples of some lines.
func SampleList(lines []*Line) anyctc.SliceSampleList {
	res := make(anyctc.SliceSampleList, len(lines))
	for i, line := range lines {
		res[i] = line.Sample
	}
	return res
}

// DefaultSymbols creates a table with the blank, a space,
// and the lowercase alphabet.
//
// It panics if space collides with another symbol.
func DefaultSymbols(space string) *anysyms.Table {
	t := anysyms.NewTable()
	add := func(sym string, val int) {
		if err := t.Add(sym, val); err != nil {
			panic(err)
		}
	}
	add("<ctc>", 0)
	add(space, 1)
	for i := 0; i < 26; i++ {
		add(string(rune('a'+i)), i+2)
	}
	return t
}
