// Command htr trains a small CTC model on synthetic text
// lines and decodes held-out lines with it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/anyhtr/anyeval"
	"github.com/unixpickle/anyhtr/anylm"
	"github.com/unixpickle/anyhtr/anysyms"
	"github.com/unixpickle/anyhtr/anytext"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config")
	flag.Parse()

	log := logrus.StandardLogger()
	if err := run(configPath, log); err != nil {
		log.WithError(err).Fatal("htr failed")
	}
}

func run(configPath string, log *logrus.Logger) error {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.SetupLogging(log); err != nil {
		return err
	}

	syms, err := loadSymbols(cfg)
	if err != nil {
		return err
	}

	c := anyvec32.CurrentCreator()
	gen := NewLineGenerator(c, syms, cfg.Space, cfg.Data, log)
	trainLines, err := gen.Lines(cfg.Data.TrainLines)
	if err != nil {
		return err
	}
	testLines, err := gen.Lines(cfg.Data.TestLines)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"symbols": syms.Len(),
		"train":   len(trainLines),
		"test":    len(testLines),
	}).Info("created data")

	model := NewModel(c, gen.FeatureSize(), cfg.Model.Hidden, syms.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log.Info("press ctrl+c once to stop training")
	if err := Train(ctx, cfg, model, SampleList(trainLines), log); err != nil {
		return err
	}

	if cfg.Output.Model != "" {
		if err := model.Save(cfg.Output.Model); err != nil {
			return err
		}
		log.WithField("path", cfg.Output.Model).Info("saved model")
	}

	if len(testLines) == 0 {
		return nil
	}
	return Evaluate(cfg, model, syms, testLines, log)
}

func loadSymbols(cfg *Config) (*anysyms.Table, error) {
	if cfg.Symbols == "" {
		return DefaultSymbols(cfg.Space), nil
	}
	syms, err := anysyms.LoadFile(cfg.Symbols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < syms.Len(); i++ {
		if _, ok := syms.Symbol(i); !ok {
			return nil, fmt.Errorf("load symbols: missing value %d", i)
		}
	}
	if _, ok := syms.Value(cfg.Space); !ok {
		return nil, fmt.Errorf("load symbols: missing space symbol %q", cfg.Space)
	}
	return syms, nil
}

// Train runs Adam on the CTC loss until the step count is
// reached or ctx is cancelled.
func Train(ctx context.Context, cfg *Config, model *Model, samples anyctc.SliceSampleList,
	log logrus.FieldLogger) error {
	trainer := &anyctc.Trainer{
		Func:   model.Apply,
		Params: model.Parameters(),
		Loss:   anyctc.Loss{Normalization: cfg.Loss.Normalization, Logger: log},
	}
	adam := &anysgd.Adam{}
	rater := anysgd.ConstRater(cfg.Train.LearningRate)

	batchSize := cfg.Train.BatchSize
	if batchSize > samples.Len() {
		batchSize = samples.Len()
	}
	idx := samples.Len()
	numProcessed := 0
	for step := 0; step < cfg.Train.Steps; step++ {
		if ctx.Err() != nil {
			log.WithField("step", step).Info("training stopped")
			return nil
		}
		if idx+batchSize > samples.Len() {
			anysgd.Shuffle(samples)
			idx = 0
		}
		batch, err := trainer.Fetch(samples.Slice(idx, idx+batchSize))
		if err != nil {
			return err
		}
		idx += batchSize

		grad := trainer.Gradient(batch)
		grad = adam.Transform(grad)
		epoch := float64(numProcessed) / float64(samples.Len())
		for _, v := range grad {
			grad.Scale(v.Creator().MakeNumeric(-rater.Rate(epoch)))
			break
		}
		grad.AddToVars()
		numProcessed += batchSize

		entry := log.WithFields(logrus.Fields{
			"step": step,
			"cost": trainer.LastCost,
		})
		if len(trainer.LastErrors) > 0 {
			entry = entry.WithField("skipped", len(trainer.LastErrors))
		}
		if cfg.Train.LogInterval > 0 && step%cfg.Train.LogInterval == 0 {
			entry.Info("training")
		} else {
			entry.Debug("training")
		}
	}
	return nil
}

// Evaluate decodes the test lines and logs error rates.
func Evaluate(cfg *Config, model *Model, syms *anysyms.Table, lines []*Line,
	log logrus.FieldLogger) error {
	inputs := make([][]anyvec.Vector, len(lines))
	refs := make([][]int, len(lines))
	for i, line := range lines {
		inputs[i] = line.Sample.Input
		refs[i] = line.Sample.Label
	}
	c := inputs[0][0].Creator()
	outputs := model.Apply(anyseq.ConstSeqList(c, inputs))
	spaceVal, _ := syms.Value(cfg.Space)

	greedy, err := anyctc.GreedyDecoder{}.Decode(outputs, false)
	if err != nil {
		return err
	}
	if err := logErrorRates(log, "greedy", refs, greedy.Hyps, spaceVal); err != nil {
		return err
	}
	enc := &anytext.Encoder{Symbols: syms, Logger: log}
	for i, line := range lines {
		hyp := greedy.Hyps[i]
		wordProbs, err := anytext.WordProbs(syms, hyp, greedy.CharProbs[i], cfg.Space, log)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"ref":        line.Text,
			"hyp":        hypText(enc, hyp, cfg.Space),
			"line_prob":  greedy.LineProbs[i],
			"word_probs": wordProbs,
		}).Debug("greedy decoding")
	}

	if cfg.Decoder == nil {
		return nil
	}
	decoder, err := anylm.NewDecoderFromConfig(*cfg.Decoder)
	if err != nil {
		return err
	}
	decoder.Logger = log
	res, err := decoder.Decode(outputs)
	if err != nil {
		return err
	}
	if err := logErrorRates(log, "language model", refs, res.Hyps, spaceVal); err != nil {
		return err
	}
	for i, line := range lines {
		log.WithFields(logrus.Fields{
			"ref":        line.Text,
			"hyp":        hypText(enc, res.Hyps[i], cfg.Space),
			"confidence": res.Scores[i],
		}).Debug("language model decoding")
	}
	return nil
}

func logErrorRates(log logrus.FieldLogger, name string, refs, hyps [][]int, spaceVal int) error {
	var cer, wer anyeval.ErrorMeter
	if err := cer.Add(refs, hyps); err != nil {
		return err
	}
	if err := wer.AddWords(refs, hyps, spaceVal); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"decoder": name,
		"cer":     cer.Value(),
		"wer":     wer.Value(),
	}).Info("evaluation")
	return nil
}

func hypText(enc *anytext.Encoder, hyp []int, space string) string {
	return anytext.Untokenize(strings.Join(enc.Decode(hyp), " "), space, " ")
}
