package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	studio "github.com/ZanzyTHEbar/video-studio/studio"
	"github.com/ZanzyTHEbar/video-studio/studio/config"
	"github.com/ZanzyTHEbar/video-studio/studio/db"
	"github.com/ZanzyTHEbar/video-studio/studio/enhance"
	"github.com/ZanzyTHEbar/video-studio/studio/generation"
	"github.com/ZanzyTHEbar/video-studio/studio/intent"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline/adapters"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const redisMirrorTTL = 24 * time.Hour

// Factory creates and wires pipeline components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB // Optional, for the libsql mirror
	logger zerolog.Logger

	classifier *intent.Classifier
	stats      *adapters.LatencyStats
}

// NewFactory creates a new pipeline factory.
func NewFactory(cfg *config.Config, conn *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		db:     conn,
		logger: logger,
		stats:  adapters.NewLatencyStats(cfg.Pipeline.StatsWindow),
	}
}

// CreateOrchestrator creates a fully wired Orchestrator from config.
func (f *Factory) CreateOrchestrator(ctx context.Context) (*Orchestrator, error) {
	latency := f.createLatency()
	f.classifier = f.CreateClassifier()

	opts := []Option{
		WithCache(f.createCache()),
		WithRateLimiter(f.createRateLimiter()),
		WithTracer(f.createTracer()),
		WithRecorder(f.createRecorder()),
		WithLogger(f.logger),
	}

	if f.cfg.Pipeline.EnableGuardrails {
		guardrails, err := NewGuardrails()
		if err != nil {
			return nil, fmt.Errorf("failed to create guardrails: %w", err)
		}
		opts = append(opts, WithGuardrails(guardrails))
	}

	sink, err := f.createSink(ctx)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		opts = append(opts, WithSink(sink))
	}

	return NewOrchestrator(
		f.classifier,
		f.CreateEnhancer(latency),
		f.CreateGenerator(latency),
		f.CreatePolicy(),
		opts...,
	), nil
}

// Stats returns the in-process stage latency window fed by every orchestrator
// this factory creates.
func (f *Factory) Stats() *adapters.LatencyStats {
	return f.stats
}

// WatchLexicon swaps the classifier lexicon whenever the config file changes.
// It reports false when no config file is being used.
func (f *Factory) WatchLexicon() bool {
	if f.classifier == nil {
		f.classifier = f.CreateClassifier()
	}
	classifier := f.classifier
	return config.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			f.logger.Error().Err(err).Msg("Config reload failed, keeping current lexicon")
			return
		}
		classifier.SetLexicon(intent.NewLexicon(cfg.Intent.GenerationVerbs, cfg.Intent.ModificationVerbs))
		f.logger.Info().
			Int("generation_verbs", len(cfg.Intent.GenerationVerbs)).
			Int("modification_verbs", len(cfg.Intent.ModificationVerbs)).
			Msg("Intent lexicon reloaded")
	})
}

// CreateClassifier creates the lexicon classifier from config.
func (f *Factory) CreateClassifier() *intent.Classifier {
	return intent.NewClassifier(intent.NewLexicon(f.cfg.Intent.GenerationVerbs, f.cfg.Intent.ModificationVerbs))
}

var resolutionPattern = regexp.MustCompile(`^[0-9]+x[0-9]+$`)

// CreateEnhancer creates the keyword enhancer from config. A resolution the
// guardrails would reject falls back to the default.
func (f *Factory) CreateEnhancer(latency ports.Latency) *enhance.Service {
	e := f.cfg.Enhance
	if !resolutionPattern.MatchString(e.Resolution) {
		f.logger.Warn().Str("resolution", e.Resolution).Msg("Resolution is not WxH, using " + studio.DefaultResolution)
		e.Resolution = studio.DefaultResolution
	}
	return enhance.NewService(enhance.Config{
		MinLatency:       e.MinLatency,
		MaxLatency:       e.MaxLatency,
		RefineMinLatency: e.RefineMinLatency,
		RefineMaxLatency: e.RefineMaxLatency,
		Resolution:       e.Resolution,
		Keywords: enhance.Keywords{
			Subjects:     e.Subjects,
			Actions:      e.Actions,
			Settings:     e.Settings,
			Abstract:     e.AbstractKeywords,
			Modification: e.ModificationVerbs,
		},
	}, latency, nil)
}

// CreateGenerator creates the generation service, routing the custom profile
// to the HTTP backend when an endpoint is configured.
func (f *Factory) CreateGenerator(latency ports.Latency) *generation.Service {
	custom := f.cfg.Generation.Custom
	opts := []generation.Option{
		generation.WithProfile(generation.Profile{
			ID:          generation.ProfileCustom,
			DisplayName: custom.Name,
			Description: custom.Description,
			Latency:     10 * time.Second,
		}),
	}
	if custom.Endpoint != "" {
		opts = append(opts, generation.WithBackend(
			generation.ProfileCustom,
			generation.NewHTTPBackend(custom.Endpoint, custom.APIKey, custom.Timeout),
		))
		f.logger.Info().Str("endpoint", custom.Endpoint).Msg("Custom generation backend enabled")
	}
	return generation.NewService(latency, opts...)
}

// CreatePolicy creates a policy from config with validation.
func (f *Factory) CreatePolicy() *Policy {
	p := f.cfg.Pipeline
	policy := &Policy{
		DefaultProfile:  p.DefaultProfile,
		StageTimeout:    p.StageTimeout,
		MaxInputLength:  f.cfg.Session.MaxInputLength,
		WelcomeMessage:  f.cfg.Session.WelcomeMessage,
		CacheTTLSeconds: p.CacheTTLSeconds,
	}

	// Validate and clamp policy values
	if policy.DefaultProfile == "" {
		policy.DefaultProfile = generation.ProfileRunway
		f.logger.Warn().Msg("DefaultProfile empty, using " + generation.ProfileRunway)
	}
	if policy.StageTimeout < 0 {
		policy.StageTimeout = 0
		f.logger.Warn().Dur("stage_timeout", p.StageTimeout).Msg("StageTimeout clamped to 0 (disabled)")
	}
	if policy.MaxInputLength < 1 {
		policy.MaxInputLength = DefaultPolicy().MaxInputLength
		f.logger.Warn().Int("max_input_length", f.cfg.Session.MaxInputLength).Msg("MaxInputLength clamped to default")
	}
	if policy.CacheTTLSeconds < 1 {
		policy.CacheTTLSeconds = 1
		f.logger.Warn().Int("cache_ttl_seconds", p.CacheTTLSeconds).Msg("CacheTTLSeconds clamped to minimum of 1")
	}

	return policy
}

func (f *Factory) createLatency() ports.Latency {
	if !f.cfg.Pipeline.SimulateLatency {
		return adapters.NoLatency{}
	}
	return adapters.SleepLatency{}
}

func (f *Factory) createCache() ports.Cache {
	if !f.cfg.Pipeline.CacheEnabled {
		return &noOpCache{}
	}
	return adapters.NewLRUCache(f.cfg.Pipeline.CacheCapacity)
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Pipeline.RateLimitEnabled {
		return &noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Pipeline.RateLimitCapacity, f.cfg.Pipeline.RateLimitRefillRate)
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Pipeline.EnableTracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) createRecorder() ports.StageRecorder {
	if !f.cfg.Pipeline.EnableMetrics {
		return f.stats
	}
	return adapters.MultiRecorder{adapters.PromRecorder{}, f.stats}
}

// createSink returns nil when mirroring is off.
func (f *Factory) createSink(ctx context.Context) (ports.MessageSink, error) {
	switch f.cfg.Storage.Backend {
	case "", "none":
		return nil, nil
	case "libsql":
		conn := f.db
		if conn == nil {
			var err error
			conn, err = db.ConnectToDB(ctx, f.cfg.Storage.LibSQLPath, f.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to open mirror database: %w", err)
			}
		}
		sink, err := adapters.NewLibSQLSink(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql mirror: %w", err)
		}
		return sink, nil
	case "redis":
		sink, err := adapters.NewRedisSink(ctx, f.cfg.Storage.RedisURL, redisMirrorTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis mirror: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", f.cfg.Storage.Backend)
	}
}

// noOpCache implements Cache interface with no-op behavior for testing/disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter implements RateLimiter interface with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

type noOpRecorder struct{}

func (noOpRecorder) ObserveStage(stage, outcome string, d time.Duration) {}
func (noOpRecorder) CountTurn(kind ports.IntentKind)                     {}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache         = (*noOpCache)(nil)
	_ ports.RateLimiter   = (*noOpRateLimiter)(nil)
	_ ports.Tracer        = (*noOpTracer)(nil)
	_ ports.StageRecorder = noOpRecorder{}
)
