package anylm

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadLexicon(t *testing.T) {
	lex, err := LoadLexicon(strings.NewReader(`# words
ba b a

ab a b
ba b a a
`))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lex.Words(), []string{"ba", "ab"}) {
		t.Errorf("unexpected words: %v", lex.Words())
	}
	expected := [][]string{{"b", "a"}, {"b", "a", "a"}}
	if !reflect.DeepEqual(lex.Spellings("ba"), expected) {
		t.Errorf("unexpected spellings: %v", lex.Spellings("ba"))
	}
	if lex.Spellings("xyz") != nil {
		t.Error("unexpected spellings for missing word")
	}

	if _, err := LoadLexicon(strings.NewReader("lonely\n")); err == nil {
		t.Error("expected an error for a word without a spelling")
	}
}

func TestLoadTokens(t *testing.T) {
	tokens, err := LoadTokens(strings.NewReader("<ctc>\na A\nb\n<space>\n"))
	if err != nil {
		t.Fatal(err)
	}
	if tokens.Len() != 4 {
		t.Fatalf("expected 4 indices but got %d", tokens.Len())
	}
	for tok, idx := range map[string]int{"<ctc>": 0, "a": 1, "A": 1, "b": 2, "<space>": 3} {
		if actual, ok := tokens.Index(tok); !ok || actual != idx {
			t.Errorf("token %s: expected index %d but got %d", tok, idx, actual)
		}
	}
	if tokens.Token(1) != "a" {
		t.Errorf("unexpected canonical token: %s", tokens.Token(1))
	}
	if _, ok := tokens.Index("c"); ok {
		t.Error("unexpected index for missing token")
	}

	if _, err := LoadTokens(strings.NewReader("a\nb a\n")); err == nil {
		t.Error("expected an error for a repeated token")
	}
}

func TestTrie(t *testing.T) {
	root := newTrieNode()
	root.Insert([]int{2, 1}, "ba")
	root.Insert([]int{2, 1}, "BA")
	root.Insert([]int{2, 1}, "ba")
	root.Insert([]int{2}, "b")
	node := root.children[2]
	if node == nil || !reflect.DeepEqual(node.words, []string{"b"}) {
		t.Fatalf("unexpected node: %+v", node)
	}
	node = node.children[1]
	if node == nil || !reflect.DeepEqual(node.words, []string{"ba", "BA"}) {
		t.Fatalf("unexpected node: %+v", node)
	}
	if root.children[1] != nil {
		t.Error("unexpected child")
	}
}
