package anylm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/unixpickle/essentials"
)

// LogZero is the log probability of an impossible event.
var LogZero = math.Inf(-1)

const (
	sentenceStart = "<s>"
	sentenceEnd   = "</s>"
)

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// An NGramModel is a backoff n-gram language model over
// words.
// Probabilities are stored as natural logarithms.
type NGramModel struct {
	// Order is the length of the longest n-grams.
	Order int

	// UnkWord is used in place of words which are not in
	// the vocabulary.
	UnkWord string

	grams []map[string]ngramEntry
}

// NewNGramModel creates an empty model of the given
// order.
func NewNGramModel(order int) *NGramModel {
	res := &NGramModel{Order: order, UnkWord: "<unk>"}
	res.grams = make([]map[string]ngramEntry, order)
	for i := range res.grams {
		res.grams[i] = map[string]ngramEntry{}
	}
	return res
}

// Add sets the natural log probability and backoff weight
// of an n-gram, where len(words) is at most m.Order.
func (m *NGramModel) Add(words []string, logProb, logBackoff float64) {
	m.grams[len(words)-1][ngramKey(words)] = ngramEntry{
		LogProb:    logProb,
		LogBackoff: logBackoff,
	}
}

// NumGrams returns the number of n-grams of an order.
func (m *NGramModel) NumGrams(order int) int {
	if order < 1 || order > m.Order {
		return 0
	}
	return len(m.grams[order-1])
}

// HasWord checks if a word is in the vocabulary.
func (m *NGramModel) HasWord(word string) bool {
	_, ok := m.grams[0][word]
	return ok
}

// LogProb returns the log probability of a word given the
// words before it.
// Missing n-grams back off to shorter histories, and
// words outside of the vocabulary are scored as UnkWord.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if m.Order == 0 {
		return LogZero
	}
	if !m.HasWord(word) {
		if !m.HasWord(m.UnkWord) {
			return LogZero
		}
		word = m.UnkWord
	}
	if n := m.Order - 1; len(history) > n {
		history = history[len(history)-n:]
	}
	return m.backoffProb(history, word)
}

func (m *NGramModel) backoffProb(history []string, word string) float64 {
	words := append(append([]string{}, history...), word)
	if e, ok := m.grams[len(history)][ngramKey(words)]; ok {
		return e.LogProb
	}
	var backoff float64
	if e, ok := m.grams[len(history)-1][ngramKey(history)]; ok {
		backoff = e.LogBackoff
	}
	return backoff + m.backoffProb(history[1:], word)
}

// SentenceLogProb scores a full sentence, including the
// sentence start and end markers.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	var total float64
	history := []string{sentenceStart}
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	return total + m.LogProb(history, sentenceEnd)
}

func ngramKey(words []string) string {
	return strings.Join(words, " ")
}

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are
// converted to natural logs.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var lineNum int
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			lineNum++
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				return line, true
			}
		}
		return "", false
	}

	line, ok := nextLine()
	for ok && line != `\data\` {
		line, ok = nextLine()
	}
	if !ok {
		return nil, arpaError(scanner, lineNum, "missing \\data\\ section")
	}

	var counts []int
	for {
		line, ok = nextLine()
		if !ok || !strings.HasPrefix(line, "ngram ") {
			break
		}
		parts := strings.SplitN(line[len("ngram "):], "=", 2)
		if len(parts) != 2 {
			return nil, arpaError(scanner, lineNum, "bad count line: "+line)
		}
		order, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		count, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || order != len(counts)+1 {
			return nil, arpaError(scanner, lineNum, "bad count line: "+line)
		}
		counts = append(counts, count)
	}
	if len(counts) == 0 {
		return nil, arpaError(scanner, lineNum, "no n-gram counts")
	}

	model := NewNGramModel(len(counts))
	for ok && line != `\end\` {
		var order int
		if _, err := fmt.Sscanf(line, `\%d-grams:`, &order); err != nil ||
			order < 1 || order > model.Order {
			return nil, arpaError(scanner, lineNum, "unexpected line: "+line)
		}
		for {
			line, ok = nextLine()
			if !ok || strings.HasPrefix(line, `\`) {
				break
			}
			if err := parseNGramLine(model, order, line); err != nil {
				return nil, fmt.Errorf("load ARPA: line %d: %w", lineNum, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("load ARPA", err)
	}
	if !ok {
		return nil, arpaError(scanner, lineNum, "missing \\end\\ marker")
	}
	for i, count := range counts {
		if actual := model.NumGrams(i + 1); actual != count {
			return nil, fmt.Errorf("load ARPA: expected %d %d-grams but got %d",
				count, i+1, actual)
		}
	}
	return model, nil
}

// LoadARPAFile reads an ARPA language model from a file.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load ARPA", err)
	}
	defer f.Close()
	return LoadARPA(f)
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 || len(fields) > order+2 {
		return fmt.Errorf("bad field count for %d-gram: %q", order, line)
	}
	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}
	var logBackoff float64
	if len(fields) == order+2 {
		logBackoff, err = strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
	}
	model.Add(fields[1:order+1], logProb*math.Ln10, logBackoff*math.Ln10)
	return nil
}

func arpaError(scanner *bufio.Scanner, lineNum int, msg string) error {
	if err := scanner.Err(); err != nil {
		return essentials.AddCtx("load ARPA", err)
	}
	return fmt.Errorf("load ARPA: line %d: %s", lineNum, msg)
}
