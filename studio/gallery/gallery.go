// Package gallery indexes generated videos for the sidebar search.
//
// Every settled assistant message carrying an artifact becomes an Entry.
// Titles are tokenized; each token maps to a bitmap of entry ordinals in a
// radix tree, so a query token matches every indexed word it prefixes.
package gallery

import (
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/armon/go-radix"

	"github.com/ZanzyTHEbar/video-studio/studio/lexicon"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const maxQueryTokens = 5

// Entry is one video in the gallery.
type Entry struct {
	MessageID       string    `json:"messageId"`
	Title           string    `json:"title"`
	ArtifactURL     string    `json:"artifactUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	Style           string    `json:"style"`
	BackendProfile  string    `json:"backendProfile,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Gallery is safe for concurrent use.
type Gallery struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]uint32
	terms   *radix.Tree // token -> *roaring.Bitmap
	styles  map[string]*roaring.Bitmap
}

func New() *Gallery {
	return &Gallery{
		byID:   make(map[string]uint32),
		terms:  radix.New(),
		styles: make(map[string]*roaring.Bitmap),
	}
}

// Attach keeps g in step with o's log until cancel is called. The observer
// is registered before the backfill so a video settling in between is not
// lost; Add ignores anything seen twice.
func (g *Gallery) Attach(o *pipeline.Orchestrator) (cancel func()) {
	cancel = o.Observe(func(ev pipeline.Event) {
		switch ev.Kind {
		case pipeline.EventReset:
			g.Clear()
		default:
			g.Add(ev.Message)
		}
	})
	for _, m := range o.Messages() {
		g.Add(m)
	}
	return cancel
}

// Add indexes msg if it carries a finished artifact. It reports whether
// a new entry was created; messages already indexed are ignored.
func (g *Gallery) Add(msg ports.Message) bool {
	if msg.Role != ports.RoleAssistant || msg.Stage != ports.StageNone || msg.Artifact == nil {
		return false
	}

	title := msg.Text
	if msg.Directive != nil && msg.Directive.OriginalText != "" {
		title = msg.Directive.OriginalText
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byID[msg.ID]; ok {
		return false
	}

	ord := uint32(len(g.entries))
	g.entries = append(g.entries, Entry{
		MessageID:       msg.ID,
		Title:           title,
		ArtifactURL:     msg.Artifact.ArtifactURL,
		ThumbnailURL:    msg.Artifact.ThumbnailURL,
		DurationSeconds: msg.Artifact.DurationSeconds,
		Style:           msg.Artifact.Style,
		BackendProfile:  msg.BackendProfile,
		CreatedAt:       msg.CreatedAt,
	})
	g.byID[msg.ID] = ord

	for _, tok := range lexicon.Tokenize(title) {
		bm, ok := g.terms.Get(tok)
		if !ok {
			bm = roaring.New()
			g.terms.Insert(tok, bm)
		}
		bm.(*roaring.Bitmap).Add(ord)
	}

	if style := msg.Artifact.Style; style != "" {
		bm, ok := g.styles[style]
		if !ok {
			bm = roaring.New()
			g.styles[style] = bm
		}
		bm.Add(ord)
	}
	return true
}

// Search returns entries whose title has a word starting with every query
// token, newest first. An empty query lists everything. style narrows the
// result when non-empty; limit <= 0 means no limit.
func (g *Gallery) Search(query, style string, limit int) []Entry {
	tokens := lexicon.Tokenize(query)
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	hits := roaring.New()
	hits.AddRange(0, uint64(len(g.entries)))

	for _, tok := range tokens {
		matched := roaring.New()
		g.terms.WalkPrefix(tok, func(_ string, v interface{}) bool {
			matched.Or(v.(*roaring.Bitmap))
			return false
		})
		hits.And(matched)
		if hits.IsEmpty() {
			return nil
		}
	}

	if style != "" {
		bm, ok := g.styles[style]
		if !ok {
			return nil
		}
		hits.And(bm)
	}

	ords := hits.ToArray()
	slices.Reverse(ords)
	if limit > 0 && len(ords) > limit {
		ords = ords[:limit]
	}

	out := make([]Entry, 0, len(ords))
	for _, ord := range ords {
		out = append(out, g.entries[ord])
	}
	return out
}

// Len reports the number of indexed entries.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Clear drops every entry.
func (g *Gallery) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = nil
	g.byID = make(map[string]uint32)
	g.terms = radix.New()
	g.styles = make(map[string]*roaring.Bitmap)
}
