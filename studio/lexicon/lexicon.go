// Package lexicon matches fixed keyword sets against free text.
//
// A keyword matches a token when it is a prefix of that token, so "dance"
// matches "dancing" and "city" matches "cityscape". Matching is
// case-insensitive and ignores punctuation.
package lexicon

import (
	"strings"
	"unicode"

	"github.com/armon/go-radix"
)

// Matcher is an immutable keyword set. It is safe for concurrent use.
type Matcher struct {
	tree *radix.Tree
}

// New builds a Matcher from words. Blank entries are ignored.
func New(words []string) *Matcher {
	tree := radix.New()
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		tree.Insert(w, struct{}{})
	}
	return &Matcher{tree: tree}
}

// Len reports the number of distinct keywords.
func (m *Matcher) Len() int {
	return m.tree.Len()
}

// MatchToken returns the longest keyword that prefixes token.
func (m *Matcher) MatchToken(token string) (string, bool) {
	word, _, ok := m.tree.LongestPrefix(strings.ToLower(token))
	return word, ok
}

// ContainsAny reports whether any token of text matches a keyword.
func (m *Matcher) ContainsAny(text string) bool {
	for _, tok := range Tokenize(text) {
		if _, ok := m.MatchToken(tok); ok {
			return true
		}
	}
	return false
}

// Find returns the distinct keywords present in text, in order of first appearance.
func (m *Matcher) Find(text string) []string {
	var found []string
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		word, ok := m.MatchToken(tok)
		if !ok {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		found = append(found, word)
	}
	return found
}

// Words lists the keywords in lexical order.
func (m *Matcher) Words() []string {
	words := make([]string, 0, m.tree.Len())
	m.tree.Walk(func(k string, _ interface{}) bool {
		words = append(words, k)
		return false
	})
	return words
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
