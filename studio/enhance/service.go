// Package enhance turns free-text requests into generation directives.
package enhance

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/video-studio/studio/lexicon"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const (
	StyleRealistic = "realistic"
	StyleAbstract  = "abstract"
	StyleLandscape = "landscape"
	StyleCinematic = "cinematic"

	MotionLow    = "low"
	MotionMedium = "medium"
	MotionHigh   = "high"

	durationWithAction = 8
	durationStill      = 5

	integrationClause = ", seamlessly integrated with existing elements"
)

const (
	realisticTemplate = "Cinematic shot of %s, professional lighting, smooth motion, vibrant colors, high detail, 4K quality"
	abstractTemplate  = "Abstract artistic %s, fluid motion, gradient colors, mesmerizing patterns, smooth transitions"
	landscapeTemplate = "Beautiful %s, golden hour lighting, atmospheric depth, cinematic composition, ultra-detailed"
	genericTemplate   = "Professional %s, cinematic quality, dynamic composition, vibrant colors, smooth motion"
)

// Keywords are the category word lists the enhancer looks for.
type Keywords struct {
	Subjects     []string
	Actions      []string
	Settings     []string
	Abstract     []string
	Modification []string
}

// Config tunes a Service.
type Config struct {
	MinLatency       time.Duration
	MaxLatency       time.Duration
	RefineMinLatency time.Duration
	RefineMaxLatency time.Duration
	Resolution       string
	Keywords         Keywords
}

// Service is the keyword-driven enhancer. Directive construction is pure;
// the only nondeterminism is the simulated latency drawn from rng.
type Service struct {
	cfg          Config
	subjects     *lexicon.Matcher
	actions      *lexicon.Matcher
	settings     *lexicon.Matcher
	abstract     *lexicon.Matcher
	modification *lexicon.Matcher

	latency ports.Latency
	rngMu   sync.Mutex
	rng     *rand.Rand // nil uses the global source
}

// NewService creates an enhancer. rng may be nil.
func NewService(cfg Config, latency ports.Latency, rng *rand.Rand) *Service {
	return &Service{
		cfg:          cfg,
		subjects:     lexicon.New(cfg.Keywords.Subjects),
		actions:      lexicon.New(cfg.Keywords.Actions),
		settings:     lexicon.New(cfg.Keywords.Settings),
		abstract:     lexicon.New(cfg.Keywords.Abstract),
		modification: lexicon.New(cfg.Keywords.Modification),
		latency:      latency,
		rng:          rng,
	}
}

// Enhance implements ports.Enhancer.
func (s *Service) Enhance(ctx context.Context, text string, history []string) (ports.Directive, error) {
	if err := s.latency.Wait(ctx, s.draw(s.cfg.MinLatency, s.cfg.MaxLatency)); err != nil {
		return ports.Directive{}, fmt.Errorf("enhance: %w", err)
	}
	return s.Build(text, history), nil
}

// Refine implements ports.Enhancer. The refinement is appended to the
// original request and the original joins the history.
func (s *Service) Refine(ctx context.Context, original, refinement string, history []string) (ports.Directive, error) {
	if err := s.latency.Wait(ctx, s.draw(s.cfg.RefineMinLatency, s.cfg.RefineMaxLatency)); err != nil {
		return ports.Directive{}, fmt.Errorf("refine: %w", err)
	}
	combined := original + ", " + refinement
	extended := make([]string, 0, len(history)+1)
	extended = append(extended, history...)
	extended = append(extended, original)
	return s.Build(combined, extended), nil
}

// Build computes the directive for text and history without waiting.
func (s *Service) Build(text string, history []string) ports.Directive {
	corpus := text
	if len(history) > 0 {
		corpus = text + " " + strings.Join(history, " ")
	}

	hasSubject := s.subjects.ContainsAny(corpus)
	hasAction := s.actions.ContainsAny(corpus)
	hasSetting := s.settings.ContainsAny(corpus)

	d := ports.Directive{
		OriginalText: text,
		Resolution:   s.cfg.Resolution,
	}

	switch {
	case hasSubject && hasAction:
		d.EnhancedText = fmt.Sprintf(realisticTemplate, text)
		d.Style, d.MotionIntensity = StyleRealistic, MotionHigh
	case s.abstract.ContainsAny(text):
		d.EnhancedText = fmt.Sprintf(abstractTemplate, text)
		d.Style, d.MotionIntensity = StyleAbstract, MotionMedium
	case hasSetting:
		d.EnhancedText = fmt.Sprintf(landscapeTemplate, text)
		d.Style, d.MotionIntensity = StyleLandscape, MotionLow
	default:
		d.EnhancedText = fmt.Sprintf(genericTemplate, text)
		d.Style, d.MotionIntensity = StyleCinematic, MotionMedium
	}

	if n := len(history); n > 0 && s.modification.ContainsAny(history[n-1]) {
		d.EnhancedText += integrationClause
	}

	d.DurationSeconds = durationStill
	if hasAction {
		d.DurationSeconds = durationWithAction
	}
	return d
}

// draw picks a uniform duration in [lo, hi].
func (s *Service) draw(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64(hi-lo) + 1
	if s.rng == nil {
		return lo + time.Duration(rand.Int64N(span))
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return lo + time.Duration(s.rng.Int64N(span))
}

var _ ports.Enhancer = (*Service)(nil)
