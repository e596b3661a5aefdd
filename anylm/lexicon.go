package anylm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/unixpickle/essentials"
)

// A Lexicon lists the allowed spellings of every word.
// A word may have several spellings.
type Lexicon struct {
	words     []string
	spellings map[string][][]string
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{spellings: map[string][][]string{}}
}

// Add adds a spelling for a word.
func (l *Lexicon) Add(word string, spelling []string) {
	if _, ok := l.spellings[word]; !ok {
		l.words = append(l.words, word)
	}
	l.spellings[word] = append(l.spellings[word], append([]string{}, spelling...))
}

// Words returns the words in the order they were first
// added.
func (l *Lexicon) Words() []string {
	return append([]string{}, l.words...)
}

// Spellings returns the spellings of a word.
func (l *Lexicon) Spellings(word string) [][]string {
	return l.spellings[word]
}

// LoadLexicon reads a lexicon with one "word tok tok ..."
// entry per line.
// Empty lines and lines starting with "#" are skipped.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	res := NewLexicon()
	scanner := bufio.NewScanner(r)
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("load lexicon: line %d: word %q has no spelling",
				lineNum, fields[0])
		}
		res.Add(fields[0], fields[1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("load lexicon", err)
	}
	return res, nil
}

// LoadLexiconFile reads a lexicon from a file.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load lexicon", err)
	}
	defer f.Close()
	return LoadLexicon(f)
}

// Tokens maps the tokens of a model's output alphabet to
// output indices.
// Several tokens may share an index, in which case the
// first one is its canonical spelling.
type Tokens struct {
	byIndex [][]string
	indices map[string]int
}

// NewTokens creates a token set where token i has index i.
func NewTokens(tokens []string) (*Tokens, error) {
	res := &Tokens{indices: map[string]int{}}
	for _, tok := range tokens {
		if err := res.addLine([]string{tok}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// LoadTokens reads a token set with one line per index.
// Whitespace-separated tokens on the same line share the
// index of that line.
func LoadTokens(r io.Reader) (*Tokens, error) {
	res := &Tokens{indices: map[string]int{}}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := res.addLine(fields); err != nil {
			return nil, essentials.AddCtx("load tokens", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("load tokens", err)
	}
	return res, nil
}

// LoadTokensFile reads a token set from a file.
func LoadTokensFile(path string) (*Tokens, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load tokens", err)
	}
	defer f.Close()
	return LoadTokens(f)
}

func (t *Tokens) addLine(toks []string) error {
	idx := len(t.byIndex)
	for _, tok := range toks {
		if old, ok := t.indices[tok]; ok {
			return fmt.Errorf("token %q has indices %d and %d", tok, old, idx)
		}
		t.indices[tok] = idx
	}
	t.byIndex = append(t.byIndex, toks)
	return nil
}

// Len returns the number of indices.
func (t *Tokens) Len() int {
	return len(t.byIndex)
}

// Index looks up the index of a token.
func (t *Tokens) Index(tok string) (int, bool) {
	idx, ok := t.indices[tok]
	return idx, ok
}

// Token returns the canonical token for an index.
func (t *Tokens) Token(idx int) string {
	return t.byIndex[idx][0]
}
