// Package anytext converts between text lines and the
// symbol sequences used to train and decode CTC models.
package anytext

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Tokenize splits a line of text into space-separated
// tokens.
//
// Every occurrence of spaceDisplay becomes spaceToken.
// Entries of symbols which span more than one character
// are kept together, preferring the longest match, and
// every other character becomes its own token.
func Tokenize(text, spaceToken, spaceDisplay string, symbols []string) string {
	var multi []string
	for _, sym := range symbols {
		if utf8.RuneCountInString(sym) > 1 {
			multi = append(multi, sym)
		}
	}
	sort.SliceStable(multi, func(i, j int) bool {
		return len(multi[i]) > len(multi[j])
	})

	var tokens []string
	for len(text) > 0 {
		if spaceDisplay != "" && strings.HasPrefix(text, spaceDisplay) {
			tokens = append(tokens, spaceToken)
			text = text[len(spaceDisplay):]
			continue
		}
		if sym := matchPrefix(text, multi); sym != "" {
			tokens = append(tokens, sym)
			text = text[len(sym):]
			continue
		}
		_, size := utf8.DecodeRuneInString(text)
		tokens = append(tokens, text[:size])
		text = text[size:]
	}
	return strings.Join(tokens, " ")
}

// Untokenize reverses Tokenize.
func Untokenize(tokens, spaceToken, spaceDisplay string) string {
	var res strings.Builder
	for _, tok := range strings.Fields(tokens) {
		if tok == spaceToken {
			res.WriteString(spaceDisplay)
		} else {
			res.WriteString(tok)
		}
	}
	return res.String()
}

func matchPrefix(text string, symbols []string) string {
	for _, sym := range symbols {
		if strings.HasPrefix(text, sym) {
			return sym
		}
	}
	return ""
}
