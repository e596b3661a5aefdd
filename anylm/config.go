package anylm

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a Decoder.
type Config struct {
	// Paths of the ARPA language model, the optional
	// lexicon, and the token set.
	LanguageModel string `yaml:"language_model"`
	Lexicon       string `yaml:"lexicon"`
	Tokens        string `yaml:"tokens"`

	LanguageModelWeight float64 `yaml:"language_model_weight"`

	// Temperature divides the model outputs before they
	// are normalized.
	// Higher temperatures flatten the distributions.
	Temperature float64 `yaml:"temperature"`

	BlankToken string `yaml:"blank_token"`
	UnkToken   string `yaml:"unk_token"`
	SilToken   string `yaml:"sil_token"`

	// WordScore is added for every completed word.
	WordScore float64 `yaml:"word_score"`

	// UnkScore is added for every word spelled outside of
	// the lexicon.
	// The default of -Inf forbids such words.
	UnkScore float64 `yaml:"unk_score"`

	BeamSize int `yaml:"beam_size"`
	NBest    int `yaml:"nbest"`
}

// DefaultConfig returns a Config with default values and
// no file paths.
func DefaultConfig() *Config {
	return &Config{
		LanguageModelWeight: 1,
		Temperature:         1,
		BlankToken:          "<ctc>",
		UnkToken:            "<unk>",
		SilToken:            "<space>",
		UnkScore:            math.Inf(-1),
		BeamSize:            10,
		NBest:               10,
	}
}

// LoadConfig reads and parses a YAML config file.
// Missing fields are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading decoder config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing decoder config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
// It does not check that the files exist.
func (c *Config) Validate() error {
	if c.LanguageModel == "" {
		return errors.New("language_model must not be empty")
	}
	if c.Tokens == "" {
		return errors.New("tokens must not be empty")
	}
	return c.checkParams()
}

func (c *Config) checkParams() error {
	if !(c.Temperature > 0) || math.IsInf(c.Temperature, 1) {
		return fmt.Errorf("temperature must be positive and finite, got %v", c.Temperature)
	}
	if math.IsNaN(c.LanguageModelWeight) || math.IsInf(c.LanguageModelWeight, 0) {
		return fmt.Errorf("language_model_weight must be finite, got %v", c.LanguageModelWeight)
	}
	if math.IsNaN(c.WordScore) || math.IsInf(c.WordScore, 0) {
		return fmt.Errorf("word_score must be finite, got %v", c.WordScore)
	}
	if math.IsNaN(c.UnkScore) || math.IsInf(c.UnkScore, 1) {
		return fmt.Errorf("unk_score must be a number below +Inf, got %v", c.UnkScore)
	}
	if c.BlankToken == "" || c.SilToken == "" || c.UnkToken == "" {
		return errors.New("blank_token, sil_token and unk_token must not be empty")
	}
	if c.BlankToken == c.SilToken {
		return fmt.Errorf("blank_token and sil_token must differ, both are %q", c.BlankToken)
	}
	if c.BeamSize < 1 {
		return fmt.Errorf("beam_size must be > 0, got %d", c.BeamSize)
	}
	if c.NBest < 1 {
		return fmt.Errorf("nbest must be > 0, got %d", c.NBest)
	}
	return nil
}
