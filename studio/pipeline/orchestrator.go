// Package pipeline runs the conversation-to-video pipeline.
//
// An Orchestrator owns one session's message log and utterance history.
// Every submitted turn appends a user message and one assistant message,
// then walks that assistant message through classify, enhance and generate,
// updating it in place after each stage. Stage failures never escape: they
// settle the assistant message with a notice.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// Policy controls orchestration behavior.
type Policy struct {
	DefaultProfile  string        // backend profile selected at startup
	StageTimeout    time.Duration // per enhance/generate call; 0 disables
	MaxInputLength  int           // runes; 0 disables
	WelcomeMessage  string        // posted at session start when non-empty
	CacheTTLSeconds int           // directive cache entry lifetime
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		DefaultProfile:  "runway-gen4",
		StageTimeout:    0,
		MaxInputLength:  500,
		CacheTTLSeconds: 3600,
	}
}

// TurnReceipt identifies the messages a submitted turn created.
type TurnReceipt struct {
	TurnID         string `json:"turnId"`
	SessionID      string `json:"sessionId"`
	UserMessageID  string `json:"userMessageId"`
	ReplyMessageID string `json:"replyMessageId"`
	Profile        string `json:"profile"`
}

// TurnResult is the outcome of a settled turn. Failure is informational;
// the log already carries the user-facing notice.
type TurnResult struct {
	TurnReceipt
	Intent  ports.Intent  `json:"intent"`
	Failure *StageFailure `json:"-"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache memoises directives. Enhancement is pure, so a hit is equivalent to a call.
func WithCache(c ports.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRateLimiter gates generation per backend profile.
func WithRateLimiter(l ports.RateLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

func WithTracer(t ports.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithRecorder(r ports.StageRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithSink mirrors every log mutation to s on a background worker.
func WithSink(s ports.MessageSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithGuardrails validates directives before generation.
func WithGuardrails(g *Guardrails) Option {
	return func(o *Orchestrator) { o.guardrails = g }
}

// WithEditor sets the artifact editor. By default the generator is used
// when it implements ports.Editor.
func WithEditor(e ports.Editor) Option {
	return func(o *Orchestrator) { o.editor = e }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithIDGenerator overrides the message id source.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithReplier overrides the conversational reply templates.
func WithReplier(r *Replier) Option {
	return func(o *Orchestrator) { o.replier = r }
}

// Orchestrator coordinates the stage services for one session.
type Orchestrator struct {
	classifier ports.IntentClassifier
	enhancer   ports.Enhancer
	generator  ports.Generator
	editor     ports.Editor
	policy     *Policy

	cache      ports.Cache
	limiter    ports.RateLimiter
	tracer     ports.Tracer
	recorder   ports.StageRecorder
	sink       ports.MessageSink
	guardrails *Guardrails
	replier    *Replier
	logger     zerolog.Logger
	newID      func() string
	now        func() time.Time

	log *messageLog

	// sessionMu orders turn admission against Reset.
	sessionMu sync.RWMutex

	profileMu sync.RWMutex
	profile   string

	turns      conc.WaitGroup
	closeMu    sync.RWMutex
	closed     bool
	mirror     *mirror
	stopMirror func()
}

// NewOrchestrator creates an orchestrator and starts its first session.
func NewOrchestrator(
	classifier ports.IntentClassifier,
	enhancer ports.Enhancer,
	generator ports.Generator,
	policy *Policy,
	opts ...Option,
) *Orchestrator {
	if policy == nil {
		policy = DefaultPolicy()
	}

	o := &Orchestrator{
		classifier: classifier,
		enhancer:   enhancer,
		generator:  generator,
		policy:     policy,
		cache:      &noOpCache{},
		limiter:    &noOpRateLimiter{},
		tracer:     &noOpTracer{},
		recorder:   &noOpRecorder{},
		replier:    NewReplier(),
		logger:     zerolog.Nop(),
		newID:      newMessageID,
		now:        time.Now,
		profile:    policy.DefaultProfile,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.editor == nil {
		if e, ok := generator.(ports.Editor); ok {
			o.editor = e
		}
	}

	o.log = newMessageLog(o.newID(), o.now)
	if o.sink != nil {
		o.mirror = newMirror(o.sink, o.tracer)
		o.stopMirror = o.log.observe(o.mirror.enqueue)
	}
	o.postWelcome()
	return o
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// turn carries the state captured when a submission is admitted.
type turn struct {
	ctx     context.Context
	receipt TurnReceipt
	text    string
	prior   []string
	settled *ports.Directive // refinement source, fixed at admission
}

// Submit runs one turn to completion. The returned error covers input
// rejection only; stage failures are reported in TurnResult.Failure.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*TurnResult, error) {
	t, err := o.admit(ctx, text)
	if err != nil {
		return nil, err
	}
	return o.runTurn(t), nil
}

// SubmitAsync admits a turn and runs its stages in the background. The
// user message and the assistant placeholder are in the log when it returns.
func (o *Orchestrator) SubmitAsync(ctx context.Context, text string) (*TurnReceipt, error) {
	o.closeMu.RLock()
	defer o.closeMu.RUnlock()
	if o.closed {
		return nil, ErrClosed
	}

	t, err := o.admit(ctx, text)
	if err != nil {
		return nil, err
	}
	o.turns.Go(func() { o.runTurn(t) })
	return &t.receipt, nil
}

// admit validates text and appends the user message and the placeholder.
func (o *Orchestrator) admit(ctx context.Context, text string) (*turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if limit := o.policy.MaxInputLength; limit > 0 {
		if n := utf8.RuneCountInString(text); n > limit {
			return nil, fmt.Errorf("%w: %d runes, limit %d", ErrInputTooLong, n, limit)
		}
	}

	o.sessionMu.RLock()
	defer o.sessionMu.RUnlock()

	now := o.now()
	t := &turn{
		ctx:  context.WithoutCancel(ctx),
		text: text,
		receipt: TurnReceipt{
			TurnID:         o.newID(),
			SessionID:      o.log.sessionID(),
			UserMessageID:  o.newID(),
			ReplyMessageID: o.newID(),
			Profile:        o.Profile(),
		},
	}

	adm, err := o.log.appendTurn(ports.Message{
		ID:        t.receipt.UserMessageID,
		TurnID:    t.receipt.TurnID,
		Role:      ports.RoleUser,
		Text:      text,
		Stage:     ports.StageNone,
		CreatedAt: now,
		UpdatedAt: now,
	}, ports.Message{
		ID:        t.receipt.ReplyMessageID,
		TurnID:    t.receipt.TurnID,
		Role:      ports.RoleAssistant,
		Text:      thinkingText,
		Stage:     ports.StageEnhancing,
		CreatedAt: now,
		UpdatedAt: now,
	}, text)
	if err != nil {
		return nil, err
	}
	t.prior, t.settled = adm.prior, adm.settled
	return t, nil
}

func (o *Orchestrator) runTurn(t *turn) *TurnResult {
	result := &TurnResult{TurnReceipt: t.receipt}

	ctx, finish := o.tracer.StartSpan(t.ctx, "turn", map[string]any{
		"turn_id": t.receipt.TurnID,
		"profile": t.receipt.Profile,
	})
	var spanErr error
	defer func() { finish(spanErr) }()

	intent, err := o.classify(t)
	if err != nil {
		result.Failure = o.fail(ctx, t, StageClassify, err)
		spanErr = result.Failure
		return result
	}
	result.Intent = intent
	o.recorder.CountTurn(intent.Kind)

	if !intent.IsGeneration() {
		reply := o.replier.Reply(t.text)
		o.updateReply(ctx, t, func(m *ports.Message) {
			m.Text = reply
			m.Stage = ports.StageNone
		})
		return result
	}

	directive, err := o.enhance(ctx, t, intent)
	if err != nil {
		result.Failure = o.fail(ctx, t, StageEnhance, err)
		spanErr = result.Failure
		return result
	}

	backend := o.generator.DisplayName(t.receipt.Profile)
	o.updateReply(ctx, t, func(m *ports.Message) {
		m.Text = generatingText(directive, backend)
		m.Stage = ports.StageGenerating
		m.Directive = &directive
		m.BackendProfile = t.receipt.Profile
	})

	artifact, err := o.generate(ctx, t, directive)
	if err != nil {
		result.Failure = o.fail(ctx, t, StageGenerate, err)
		spanErr = result.Failure
		return result
	}

	request := t.text
	if o.guardrails != nil {
		request = o.guardrails.SanitizeOutput(request)
	}
	o.updateReply(ctx, t, func(m *ports.Message) {
		m.Text = createdText(request)
		m.Stage = ports.StageNone
		m.Artifact = &artifact
		m.ArtifactRef = artifact.ArtifactURL
		m.BackendProfile = t.receipt.Profile
	})
	return result
}

func (o *Orchestrator) classify(t *turn) (intent ports.Intent, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
		o.recorder.ObserveStage(string(StageClassify), outcomeOf(err), time.Since(start))
	}()
	return o.classifier.Classify(t.text, t.prior), nil
}

func (o *Orchestrator) enhance(ctx context.Context, t *turn, intent ports.Intent) (d ports.Directive, err error) {
	start := time.Now()
	ctx, finish := o.tracer.StartSpan(ctx, "enhance", map[string]any{
		"turn_id": t.receipt.TurnID,
		"intent":  string(intent.Kind),
	})
	defer func() {
		if r := recover(); r != nil {
			d, err = ports.Directive{}, fmt.Errorf("enhancer panic: %v", r)
		}
		finish(err)
		o.recorder.ObserveStage(string(StageEnhance), outcomeOf(err), time.Since(start))
	}()

	var original string
	if intent.Kind == ports.IntentRefinement && t.settled != nil {
		original = t.settled.OriginalText
	}

	key := cacheKey(intent.Kind, original, t.text, t.prior)
	if cached, ok := o.cache.Get(ctx, key); ok {
		if jsonErr := json.Unmarshal(cached, &d); jsonErr == nil {
			o.tracer.Event(ctx, "cache_hit", map[string]any{"key": key})
			return d, nil
		}
		o.cache.Delete(ctx, key)
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	if original != "" {
		d, err = o.enhancer.Refine(stageCtx, original, t.text, t.prior)
	} else {
		d, err = o.enhancer.Enhance(stageCtx, t.text, t.prior)
	}
	if err != nil {
		return ports.Directive{}, timeoutCause(stageCtx, err)
	}

	if o.guardrails != nil {
		if err := o.guardrails.ValidateDirective(d); err != nil {
			return ports.Directive{}, err
		}
	}

	if data, jsonErr := json.Marshal(d); jsonErr == nil {
		o.cache.Set(ctx, key, data, o.policy.CacheTTLSeconds)
	}
	return d, nil
}

func (o *Orchestrator) generate(ctx context.Context, t *turn, d ports.Directive) (a ports.ArtifactResult, err error) {
	start := time.Now()
	ctx, finish := o.tracer.StartSpan(ctx, "generate", map[string]any{
		"turn_id": t.receipt.TurnID,
		"profile": t.receipt.Profile,
	})
	defer func() {
		if r := recover(); r != nil {
			a, err = ports.ArtifactResult{}, fmt.Errorf("%w: generator panic: %v", ports.ErrGenerationFailed, r)
		}
		finish(err)
		o.recorder.ObserveStage(string(StageGenerate), outcomeOf(err), time.Since(start))
	}()

	release, err := o.limiter.Acquire(ctx, t.receipt.Profile)
	if err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	defer release()

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	a, err = o.generator.Generate(stageCtx, d, t.receipt.Profile)
	if err != nil {
		return ports.ArtifactResult{}, timeoutCause(stageCtx, err)
	}
	return a, nil
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.policy.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.policy.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// timeoutCause marks err as a timeout when the stage deadline expired.
func timeoutCause(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return ports.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return ports.OutcomeTimeout
	default:
		return ports.OutcomeFailed
	}
}

// fail settles the reply with the notice for cause.
func (o *Orchestrator) fail(ctx context.Context, t *turn, stage FailedStage, cause error) *StageFailure {
	failure := &StageFailure{Stage: stage, Cause: cause}
	o.logger.Warn().
		Err(cause).
		Str("stage", string(stage)).
		Str("turn_id", t.receipt.TurnID).
		Msg("Turn failed")

	backend := o.generator.DisplayName(t.receipt.Profile)
	var notice string
	switch {
	case errors.Is(cause, ErrTimeout):
		notice = timeoutText
	case errors.Is(cause, ErrRateLimited):
		notice = rateLimitedText(backend)
	case stage == StageClassify:
		notice = classifyFailedText
	case stage == StageEnhance:
		notice = enhanceFailedText
	default:
		notice = generateFailedText(backend)
	}

	o.updateReply(ctx, t, func(m *ports.Message) {
		m.Text = notice
		m.Stage = ports.StageNone
		m.Artifact = nil
		m.ArtifactRef = ""
	})
	return failure
}

// updateReply mutates the turn's assistant message. Updates for messages
// that no longer exist (the session was reset) are dropped.
func (o *Orchestrator) updateReply(ctx context.Context, t *turn, fn func(*ports.Message)) {
	if _, err := o.log.update(t.receipt.ReplyMessageID, fn); err != nil {
		o.tracer.Event(ctx, "update_dropped", map[string]any{
			"message_id": t.receipt.ReplyMessageID,
			"error":      err.Error(),
		})
	}
}

// cacheKey hashes everything a directive depends on.
func cacheKey(kind ports.IntentKind, original, text string, history []string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte(0)
	b.WriteString(original)
	b.WriteByte(0)
	b.WriteString(text)
	for _, h := range history {
		b.WriteByte(0)
		b.WriteString(h)
	}
	return "directive:" + strconv.FormatUint(djb2(b.String()), 16) + ":" + strconv.Itoa(b.Len())
}

func djb2(s string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint64(s[i])
	}
	return h
}

// SelectBackendProfile changes the profile used by later turns. Turns
// already admitted keep the profile they were submitted with.
func (o *Orchestrator) SelectBackendProfile(profile string) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return
	}

	o.profileMu.Lock()
	changed := o.profile != profile
	o.profile = profile
	o.profileMu.Unlock()
	if !changed {
		return
	}

	o.sessionMu.RLock()
	defer o.sessionMu.RUnlock()
	now := o.now()
	o.appendStatus(ports.Message{
		ID:             o.newID(),
		Role:           ports.RoleSystem,
		Text:           profileSwitchedText(o.generator.DisplayName(profile)),
		Stage:          ports.StageNone,
		BackendProfile: profile,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// appendStatus appends a message no caller waits on; a rejected append is
// logged and otherwise ignored.
func (o *Orchestrator) appendStatus(msg ports.Message) {
	if err := o.log.append(msg); err != nil {
		o.logger.Error().Err(err).Str("role", string(msg.Role)).Msg("Status message dropped")
	}
}

// Profile returns the currently selected backend profile.
func (o *Orchestrator) Profile() string {
	o.profileMu.RLock()
	defer o.profileMu.RUnlock()
	return o.profile
}

// Profiles lists the generator's catalogue.
func (o *Orchestrator) Profiles() []ports.ProfileInfo {
	return o.generator.Profiles()
}

// Messages returns an ordered snapshot of the log.
func (o *Orchestrator) Messages() []ports.Message {
	return o.log.snapshot()
}

// Message returns one log entry.
func (o *Orchestrator) Message(id string) (ports.Message, bool) {
	return o.log.get(id)
}

// History returns the submitted utterances, oldest first.
func (o *Orchestrator) History() []string {
	return o.log.historySnapshot()
}

func (o *Orchestrator) SessionID() string {
	return o.log.sessionID()
}

// Reset starts a new session. Turns still in flight settle into nothing.
func (o *Orchestrator) Reset(ctx context.Context) string {
	o.sessionMu.Lock()
	id := o.newID()
	o.log.reset(id)
	o.sessionMu.Unlock()

	o.tracer.Event(ctx, "session_reset", map[string]any{"session_id": id})
	o.postWelcome()
	return id
}

func (o *Orchestrator) postWelcome() {
	if o.policy.WelcomeMessage == "" {
		return
	}
	o.sessionMu.RLock()
	defer o.sessionMu.RUnlock()
	now := o.now()
	o.appendStatus(ports.Message{
		ID:        o.newID(),
		Role:      ports.RoleAssistant,
		Text:      o.policy.WelcomeMessage,
		Stage:     ports.StageNone,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Wait blocks until every turn started with SubmitAsync has settled.
func (o *Orchestrator) Wait() {
	o.turns.Wait()
}

// Close stops accepting asynchronous turns, waits for in-flight ones and
// flushes the log mirror.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeMu.Lock()
	if o.closed {
		o.closeMu.Unlock()
		return nil
	}
	o.closed = true
	o.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		o.turns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for turns: %w", ctx.Err())
	}

	if o.mirror == nil {
		return nil
	}
	o.stopMirror()
	if err := o.mirror.close(ctx); err != nil {
		return fmt.Errorf("flushing mirror: %w", err)
	}
	return o.sink.Close()
}
