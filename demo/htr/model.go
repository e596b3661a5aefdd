package main

import (
	"os"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// A Model maps feature frames to raw symbol scores with a
// bidirectional LSTM and a fully-connected output layer.
type Model struct {
	RNN *anyrnn.Bidir
	Out anynet.Net
}

// NewModel creates a randomized model.
func NewModel(c anyvec.Creator, features, hidden, symbols int) *Model {
	return &Model{
		RNN: &anyrnn.Bidir{
			Forward:  anyrnn.NewLSTM(c, features, hidden),
			Backward: anyrnn.NewLSTM(c, features, hidden),
			Mixer:    anynet.ConcatMixer{},
		},
		Out: anynet.Net{
			anynet.NewFC(c, hidden*2, symbols),
		},
	}
}

// Apply produces the unnormalized scores for a batch.
func (m *Model) Apply(in anyseq.Seq) anyseq.Seq {
	return anyseq.Map(m.RNN.Apply(in), func(v anydiff.Res, n int) anydiff.Res {
		return m.Out.Apply(v, n)
	})
}

// Parameters returns the parameters of both layers.
func (m *Model) Parameters() []*anydiff.Var {
	return append(m.RNN.Parameters(), m.Out.Parameters()...)
}

// Save writes the model to a file.
func (m *Model) Save(path string) error {
	data, err := serializer.SerializeAny(m.RNN, m.Out)
	if err != nil {
		return essentials.AddCtx("save model", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save model", err)
	}
	return nil
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	var res Model
	if err := serializer.DeserializeAny(data, &res.RNN, &res.Out); err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	return &res, nil
}
