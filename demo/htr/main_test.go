package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htr.yaml")
	content := `model:
  hidden: 8
loss:
  normalization: length
log_level: debug
decoder:
  language_model: lm.arpa
  tokens: tokens.txt
  beam_size: 4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Hidden != 8 || cfg.Loss.Normalization != anyctc.LengthAverage {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Train.Steps != DefaultConfig().Train.Steps {
		t.Errorf("defaults were not kept: %+v", cfg.Train)
	}
	if cfg.Decoder == nil || cfg.Decoder.BeamSize != 4 || cfg.Decoder.NBest != 10 {
		t.Fatalf("unexpected decoder config: %+v", cfg.Decoder)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Decoder != nil {
		t.Error("expected no decoder")
	}

	if err := os.WriteFile(path, []byte("loss:\n  normalization: mean\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for a bad normalization")
	}
}

func TestConfigValidate(t *testing.T) {
	mutations := map[string]func(c *Config){
		"hidden":    func(c *Config) { c.Model.Hidden = 0 },
		"batch":     func(c *Config) { c.Train.BatchSize = 0 },
		"rate":      func(c *Config) { c.Train.LearningRate = 0 },
		"words":     func(c *Config) { c.Data.Words = nil },
		"log_level": func(c *Config) { c.LogLevel = "loud" },
		"space":     func(c *Config) { c.Space = "" },
		"frames":    func(c *Config) { c.Data.FramesSym = 1 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			t.Fatal(err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLineGenerator(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := anyvec64.CurrentCreator()
	syms := DefaultSymbols("<space>")
	cfg := DefaultConfig().Data
	gen := NewLineGenerator(c, syms, "<space>", cfg, logger)

	labels, err := gen.Labels("ab cab")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(labels, []int{2, 3, 1, 4, 2, 3}) {
		t.Errorf("unexpected labels: %v", labels)
	}

	line, err := gen.Render("fox")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(line.Sample.Input); n != 1+3*(cfg.FramesSym+1) {
		t.Errorf("unexpected frame count: %d", n)
	}
	if !anyctc.Feasible(len(line.Sample.Input), len(line.Sample.Label)) {
		t.Error("line cannot be aligned")
	}
	for _, frame := range line.Sample.Input {
		if frame.Len() != gen.FeatureSize() {
			t.Fatalf("unexpected frame size %d", frame.Len())
		}
	}

	if _, err := gen.Render("Fox"); err == nil {
		t.Error("expected an error for a missing symbol")
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.ErrorLevel {
		t.Errorf("expected one error entry but got %d", len(hook.Entries))
	}

	lines, err := gen.Lines(5)
	if err != nil {
		t.Fatal(err)
	}
	if SampleList(lines).Len() != 5 {
		t.Error("unexpected sample count")
	}
}

func TestMinimumFrames(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig().Data
	cfg.FramesSym = 2
	gen := NewLineGenerator(anyvec64.CurrentCreator(), DefaultSymbols("<space>"), "<space>",
		cfg, logger)
	for _, text := range []string{"a", "aa", "the quick fox"} {
		line, err := gen.Render(text)
		if err != nil {
			t.Fatal(err)
		}
		if !anyctc.Feasible(len(line.Sample.Input), len(line.Sample.Label)) {
			t.Errorf("%q cannot be aligned", text)
		}
	}
}

func TestDefaultSymbolsCollision(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a colliding space symbol")
		}
	}()
	DefaultSymbols("a")
}

func TestTrainModel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig()
	cfg.Model.Hidden = 4
	cfg.Train.Steps = 3
	cfg.Train.BatchSize = 2
	cfg.Data.TrainLines = 3
	cfg.Data.WordsLine = 1

	c := anyvec64.CurrentCreator()
	syms := DefaultSymbols(cfg.Space)
	gen := NewLineGenerator(c, syms, cfg.Space, cfg.Data, logger)
	lines, err := gen.Lines(cfg.Data.TrainLines)
	if err != nil {
		t.Fatal(err)
	}
	model := NewModel(c, gen.FeatureSize(), cfg.Model.Hidden, syms.Len())
	before := modelOutput(model, lines[0])
	if err := Train(context.Background(), cfg, model, SampleList(lines), logger); err != nil {
		t.Fatal(err)
	}
	after := modelOutput(model, lines[0])
	if reflect.DeepEqual(before, after) {
		t.Error("training did not change the model")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Train(ctx, cfg, model, SampleList(lines), logger); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(modelOutput(model, lines[0]), after) {
		t.Error("cancelled training changed the model")
	}

	path := filepath.Join(t.TempDir(), "model")
	if err := model.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range modelOutput(loaded, lines[0]) {
		if math.Abs(x-after[i]) > 1e-4 {
			t.Fatalf("loaded model differs at %d: %f vs %f", i, x, after[i])
		}
	}

	if err := Evaluate(cfg, model, syms, lines, logger); err != nil {
		t.Fatal(err)
	}
}

func modelOutput(m *Model, line *Line) []float64 {
	c := line.Sample.Input[0].Creator()
	out := m.Apply(anyseq.ConstSeqList(c, [][]anyvec.Vector{line.Sample.Input}))
	var res []float64
	for _, batch := range out.Output() {
		res = append(res, batch.Packed.Data().([]float64)...)
	}
	return res
}
