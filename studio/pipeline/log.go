package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// EventKind says what happened to the log.
type EventKind string

const (
	EventAppended EventKind = "appended"
	EventUpdated  EventKind = "updated"
	EventReset    EventKind = "reset"
)

// Event is one observable log mutation. Seq increases by one per mutation
// within a process; Message is empty for resets.
type Event struct {
	Seq       uint64        `json:"seq"`
	Kind      EventKind     `json:"kind"`
	SessionID string        `json:"sessionId"`
	Message   ports.Message `json:"message"`
}

// messageLog is the append-only conversation log plus the utterance history.
//
// mu guards the data. Each mutation takes a sequence number under mu and is
// then dispatched to observers strictly in sequence order, after mu is
// released, so observers may read the log but must not mutate it.
type messageLog struct {
	mu      sync.RWMutex
	session string
	entries []ports.Message
	index   map[string]int
	history []string
	seq     uint64

	observers map[int]func(Event)
	nextObs   int
	now       func() time.Time

	emitMu   sync.Mutex
	emitCond *sync.Cond
	emitted  uint64 // last dispatched seq
}

func newMessageLog(sessionID string, now func() time.Time) *messageLog {
	l := &messageLog{
		session:   sessionID,
		index:     make(map[string]int),
		observers: make(map[int]func(Event)),
		now:       now,
	}
	l.emitCond = sync.NewCond(&l.emitMu)
	return l
}

// publishLocked must be called with mu held for writing; it releases mu.
// Each message becomes one event; their sequence numbers are consecutive.
func (l *messageLog) publishLocked(kind EventKind, msgs ...ports.Message) {
	events := make([]Event, len(msgs))
	for i, msg := range msgs {
		l.seq++
		events[i] = Event{Seq: l.seq, Kind: kind, SessionID: l.session, Message: msg}
	}
	observers := make([]func(Event), 0, len(l.observers))
	for _, id := range l.observerIDs() {
		observers = append(observers, l.observers[id])
	}
	l.mu.Unlock()

	if len(events) == 0 {
		return
	}
	first, last := events[0].Seq, events[len(events)-1].Seq

	l.emitMu.Lock()
	for l.emitted+1 != first {
		l.emitCond.Wait()
	}
	defer func() {
		l.emitted = last
		l.emitCond.Broadcast()
		l.emitMu.Unlock()
	}()
	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

func (l *messageLog) observerIDs() []int {
	ids := make([]int, 0, len(l.observers))
	for id := range l.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// observe registers fn for every later mutation.
func (l *messageLog) observe(fn func(Event)) (cancel func()) {
	l.mu.Lock()
	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.observers, id)
			l.mu.Unlock()
		})
	}
}

// admission is what a turn sees of the log at the moment it is appended.
type admission struct {
	prior   []string         // utterances submitted before this one
	settled *ports.Directive // directive of the newest finished video, if any
}

// appendTurn appends a user message, its utterance and the assistant
// placeholder in one step. Nothing is appended when either id is taken.
func (l *messageLog) appendTurn(user, reply ports.Message, utterance string) (admission, error) {
	l.mu.Lock()
	if err := l.checkNewLocked(user.ID, reply.ID); err != nil {
		l.mu.Unlock()
		return admission{}, err
	}

	adm := admission{
		prior:   slices.Clone(l.history),
		settled: l.settledDirectiveLocked(),
	}
	l.history = append(l.history, utterance)
	l.insertLocked(user)
	l.insertLocked(reply)
	l.publishLocked(EventAppended, user.Clone(), reply.Clone())
	return adm, nil
}

func (l *messageLog) append(msg ports.Message) error {
	l.mu.Lock()
	if err := l.checkNewLocked(msg.ID); err != nil {
		l.mu.Unlock()
		return err
	}
	l.insertLocked(msg)
	l.publishLocked(EventAppended, msg.Clone())
	return nil
}

// checkNewLocked rejects ids already in the log or repeated within ids.
func (l *messageLog) checkNewLocked(ids ...string) error {
	for i, id := range ids {
		if _, taken := l.index[id]; taken || slices.Contains(ids[:i], id) {
			return fmt.Errorf("%w: %s", ErrDuplicateMessageID, id)
		}
	}
	return nil
}

func (l *messageLog) insertLocked(msg ports.Message) {
	l.index[msg.ID] = len(l.entries)
	l.entries = append(l.entries, msg.Clone())
}

// update applies fn to a copy of message id and stores the result. Identity
// fields are restored after fn runs, and a stage may only move forward.
func (l *messageLog) update(id string, fn func(*ports.Message)) (ports.Message, error) {
	l.mu.Lock()
	i, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return ports.Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}

	prev := l.entries[i]
	next := prev.Clone()
	fn(&next)
	next.ID, next.TurnID, next.Role, next.CreatedAt = prev.ID, prev.TurnID, prev.Role, prev.CreatedAt

	if next.Stage.Rank() < prev.Stage.Rank() {
		l.mu.Unlock()
		return prev.Clone(), fmt.Errorf("%w: %s %s -> %s", ErrStageRegression, id, prev.Stage, next.Stage)
	}

	next.UpdatedAt = l.now()
	l.entries[i] = next
	l.publishLocked(EventUpdated, next.Clone())
	return next.Clone(), nil
}

func (l *messageLog) get(id string) (ports.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return ports.Message{}, false
	}
	return l.entries[i].Clone(), true
}

func (l *messageLog) snapshot() []ports.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ports.Message, len(l.entries))
	for i, m := range l.entries {
		out[i] = m.Clone()
	}
	return out
}

func (l *messageLog) historySnapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.history)
}

func (l *messageLog) sessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// settledDirectiveLocked returns the directive of the newest assistant
// message whose video finished. In-flight and failed turns are skipped.
func (l *messageLog) settledDirectiveLocked() *ports.Directive {
	for i := len(l.entries) - 1; i >= 0; i-- {
		m := l.entries[i]
		if m.Role == ports.RoleAssistant && m.Stage == ports.StageNone && m.Artifact != nil && m.Directive != nil {
			d := *m.Directive
			return &d
		}
	}
	return nil
}

// reset empties the log under a new session id.
func (l *messageLog) reset(sessionID string) {
	l.mu.Lock()
	l.session = sessionID
	l.entries = nil
	l.history = nil
	l.index = make(map[string]int)
	l.publishLocked(EventReset, ports.Message{})
}
