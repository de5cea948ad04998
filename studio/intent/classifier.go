// Package intent decides whether a chat utterance asks for a video.
package intent

import (
	"strings"
	"sync/atomic"

	"github.com/ZanzyTHEbar/video-studio/studio/lexicon"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// Lexicon is the keyword data a Classifier works from.
type Lexicon struct {
	Generation   *lexicon.Matcher
	Modification *lexicon.Matcher
}

// NewLexicon builds a Lexicon from plain word lists.
func NewLexicon(generationVerbs, modificationVerbs []string) *Lexicon {
	return &Lexicon{
		Generation:   lexicon.New(generationVerbs),
		Modification: lexicon.New(modificationVerbs),
	}
}

// Classifier is a keyword classifier:
//
//   - generation when the text or the joined history mentions a generation verb
//   - refinement when only the text carries a modification verb and history is non-empty
//   - conversational otherwise
//
// The lexicon can be swapped at runtime; each Classify call sees one
// consistent lexicon.
type Classifier struct {
	lex atomic.Pointer[Lexicon]
}

// NewClassifier creates a classifier over lex.
func NewClassifier(lex *Lexicon) *Classifier {
	c := &Classifier{}
	c.lex.Store(lex)
	return c
}

// SetLexicon replaces the keyword data for subsequent calls.
func (c *Classifier) SetLexicon(lex *Lexicon) {
	if lex != nil {
		c.lex.Store(lex)
	}
}

// Classify implements ports.IntentClassifier.
func (c *Classifier) Classify(text string, history []string) ports.Intent {
	lex := c.lex.Load()

	corpus := text
	if len(history) > 0 {
		corpus = text + " " + strings.Join(history, " ")
	}
	if lex.Generation.ContainsAny(corpus) {
		return ports.Intent{Kind: ports.IntentGeneration}
	}
	if len(history) > 0 && lex.Modification.ContainsAny(text) {
		return ports.Intent{Kind: ports.IntentRefinement}
	}
	return ports.Intent{Kind: ports.IntentConversational}
}

var _ ports.IntentClassifier = (*Classifier)(nil)
