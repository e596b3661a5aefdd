package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyhtr/anyctc"
	"github.com/unixpickle/anyhtr/anylm"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration of the demo.
type Config struct {
	// Symbols is the path to a symbols table.
	// If empty, a lowercase alphabet is used.
	Symbols string `yaml:"symbols"`

	// Space is the symbol that separates words.
	Space string `yaml:"space"`

	Model    ModelConfig  `yaml:"model"`
	Train    TrainConfig  `yaml:"train"`
	Loss     LossConfig   `yaml:"loss"`
	Data     DataConfig   `yaml:"data"`
	LogLevel string       `yaml:"log_level"`
	LogJSON  bool         `yaml:"log_json"`
	Output   OutputConfig `yaml:"output"`

	// Decoder, if set, configures a language model decoder
	// which is run on the test lines after training.
	Decoder *anylm.Config `yaml:"decoder"`
}

type ModelConfig struct {
	Hidden int `yaml:"hidden"`
}

type TrainConfig struct {
	Steps        int     `yaml:"steps"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	LogInterval  int     `yaml:"log_interval"`
}

type LossConfig struct {
	Normalization anyctc.Normalization `yaml:"normalization"`
}

type DataConfig struct {
	// Words are used to build the synthetic text lines.
	Words      []string `yaml:"words"`
	WordsLine  int      `yaml:"words_per_line"`
	FramesSym  int      `yaml:"frames_per_symbol"`
	Noise      float64  `yaml:"noise"`
	TrainLines int      `yaml:"train_lines"`
	TestLines  int      `yaml:"test_lines"`
	RandomSeed int64    `yaml:"seed"`
}

type OutputConfig struct {
	// Model, if set, is where the trained model is saved.
	Model string `yaml:"model"`
}

// DefaultConfig returns a config for a short training run.
func DefaultConfig() *Config {
	return &Config{
		Space: "<space>",
		Model: ModelConfig{Hidden: 32},
		Train: TrainConfig{
			Steps:        300,
			BatchSize:    8,
			LearningRate: 0.01,
			LogInterval:  20,
		},
		Loss: LossConfig{Normalization: anyctc.SizeAverage},
		Data: DataConfig{
			Words:      []string{"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog"},
			WordsLine:  3,
			FramesSym:  3,
			Noise:      0.3,
			TrainLines: 200,
			TestLines:  20,
			RandomSeed: 1,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var keys struct {
		Decoder yaml.Node `yaml:"decoder"`
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if keys.Decoder.Kind != 0 {
		// Decoder fields which are left out keep their defaults.
		cfg.Decoder = anylm.DefaultConfig()
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if c.Space == "" {
		return errors.New("space must not be empty")
	}
	if c.Model.Hidden <= 0 {
		return fmt.Errorf("model.hidden must be positive, got %d", c.Model.Hidden)
	}
	if c.Train.Steps < 0 {
		return fmt.Errorf("train.steps must not be negative, got %d", c.Train.Steps)
	}
	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("train.learning_rate must be positive, got %f", c.Train.LearningRate)
	}
	if len(c.Data.Words) == 0 {
		return errors.New("data.words must not be empty")
	}
	if c.Data.WordsLine <= 0 {
		return fmt.Errorf("data.words_per_line must be positive, got %d", c.Data.WordsLine)
	}
	if c.Data.FramesSym < 2 {
		// With one frame per symbol, lines fail anyctc.Feasible.
		return fmt.Errorf("data.frames_per_symbol must be at least 2, got %d", c.Data.FramesSym)
	}
	if c.Data.TrainLines <= 0 || c.Data.TestLines < 0 {
		return errors.New("data.train_lines must be positive and data.test_lines must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Decoder != nil {
		if err := c.Decoder.Validate(); err != nil {
			return fmt.Errorf("decoder: %w", err)
		}
	}
	return nil
}

// SetupLogging applies the log level and format.
func (c *Config) SetupLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
