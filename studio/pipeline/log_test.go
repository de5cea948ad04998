package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

func TestMessageLog_UpdateRejectsRegression(t *testing.T) {
	l := newMessageLog("s-1", func() time.Time { return testEpoch })
	l.append(ports.Message{ID: "a", Role: ports.RoleAssistant, Stage: ports.StageGenerating, CreatedAt: testEpoch})

	_, err := l.update("a", func(m *ports.Message) { m.Stage = ports.StageEnhancing })
	assert.ErrorIs(t, err, ErrStageRegression)

	got, ok := l.get("a")
	require.True(t, ok)
	assert.Equal(t, ports.StageGenerating, got.Stage)

	_, err = l.update("missing", func(m *ports.Message) {})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestMessageLog_UpdateKeepsIdentity(t *testing.T) {
	l := newMessageLog("s-1", func() time.Time { return testEpoch.Add(time.Minute) })
	l.append(ports.Message{ID: "a", TurnID: "t", Role: ports.RoleAssistant, Stage: ports.StageEnhancing, CreatedAt: testEpoch})

	got, err := l.update("a", func(m *ports.Message) {
		m.ID = "b"
		m.Role = ports.RoleUser
		m.CreatedAt = time.Time{}
		m.Text = "done"
		m.Stage = ports.StageNone
	})
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "t", got.TurnID)
	assert.Equal(t, ports.RoleAssistant, got.Role)
	assert.Equal(t, testEpoch, got.CreatedAt)
	assert.Equal(t, testEpoch.Add(time.Minute), got.UpdatedAt)
	assert.Equal(t, "done", got.Text)
}

func TestMessageLog_SnapshotsAreCopies(t *testing.T) {
	l := newMessageLog("s-1", time.Now)
	l.append(ports.Message{ID: "a", Directive: &ports.Directive{Style: "abstract"}})

	snap := l.snapshot()
	snap[0].Directive.Style = "mutated"
	snap[0].Text = "mutated"

	got, _ := l.get("a")
	assert.Equal(t, "abstract", got.Directive.Style)
	assert.Empty(t, got.Text)
}

func TestMessageLog_AppendTurnReturnsPriorHistory(t *testing.T) {
	l := newMessageLog("s-1", time.Now)

	adm, err := l.appendTurn(ports.Message{ID: "1"}, ports.Message{ID: "1r"}, "first")
	require.NoError(t, err)
	assert.Empty(t, adm.prior)

	adm, err = l.appendTurn(ports.Message{ID: "2"}, ports.Message{ID: "2r"}, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, adm.prior)
	assert.Equal(t, []string{"first", "second"}, l.historySnapshot())
	assert.Len(t, l.snapshot(), 4)
}

func TestMessageLog_RejectsDuplicateIDs(t *testing.T) {
	l := newMessageLog("s-1", time.Now)
	require.NoError(t, l.append(ports.Message{ID: "a"}))

	var events int
	l.observe(func(Event) { events++ })

	assert.ErrorIs(t, l.append(ports.Message{ID: "a", Text: "again"}), ErrDuplicateMessageID)

	_, err := l.appendTurn(ports.Message{ID: "b"}, ports.Message{ID: "b"}, "same id twice")
	assert.ErrorIs(t, err, ErrDuplicateMessageID)

	_, err = l.appendTurn(ports.Message{ID: "c"}, ports.Message{ID: "a"}, "reply id taken")
	assert.ErrorIs(t, err, ErrDuplicateMessageID)

	snap := l.snapshot()
	require.Len(t, snap, 1)
	assert.Empty(t, snap[0].Text)
	assert.Empty(t, l.historySnapshot())
	assert.Zero(t, events)
}

func TestMessageLog_AdmissionSeesNewestFinishedDirective(t *testing.T) {
	l := newMessageLog("s-1", time.Now)
	directive := func(text string) *ports.Directive { return &ports.Directive{OriginalText: text} }
	artifact := &ports.ArtifactResult{ArtifactURL: "/v/1"}

	l.append(ports.Message{ID: "frog", Role: ports.RoleAssistant, Stage: ports.StageNone, Directive: directive("a frog dancing"), Artifact: artifact})
	l.append(ports.Message{ID: "cat", Role: ports.RoleAssistant, Stage: ports.StageGenerating, Directive: directive("a cat running")})
	l.append(ports.Message{ID: "dog", Role: ports.RoleAssistant, Stage: ports.StageNone, Directive: directive("a dog jumping")})

	adm, err := l.appendTurn(ports.Message{ID: "u"}, ports.Message{ID: "r"}, "add a cow")
	require.NoError(t, err)
	require.NotNil(t, adm.settled)
	assert.Equal(t, "a frog dancing", adm.settled.OriginalText)

	empty := newMessageLog("s-2", time.Now)
	adm, err = empty.appendTurn(ports.Message{ID: "u"}, ports.Message{ID: "r"}, "add a cow")
	require.NoError(t, err)
	assert.Nil(t, adm.settled)
}

func TestMessageLog_ObserversSeeSequenceOrder(t *testing.T) {
	l := newMessageLog("s-1", time.Now)

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	cancel := l.observe(func(ev Event) {
		// observers may read the log
		_ = l.snapshot()
		mu.Lock()
		seqs = append(seqs, ev.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.append(ports.Message{ID: string(rune('A' + i))})
		}(i)
	}
	wg.Wait()
	cancel()
	l.append(ports.Message{ID: "late"})

	require.Len(t, seqs, 50)
	for i, s := range seqs {
		assert.Equal(t, uint64(i+1), s)
	}
}

func TestMessageLog_Reset(t *testing.T) {
	l := newMessageLog("s-1", time.Now)
	_, err := l.appendTurn(ports.Message{ID: "1"}, ports.Message{ID: "1r"}, "hello")
	require.NoError(t, err)

	var got Event
	l.observe(func(ev Event) { got = ev })
	l.reset("s-2")

	assert.Equal(t, EventReset, got.Kind)
	assert.Equal(t, "s-2", got.SessionID)
	assert.Equal(t, "s-2", l.sessionID())
	assert.Empty(t, l.snapshot())
	assert.Empty(t, l.historySnapshot())
	_, ok := l.get("1")
	assert.False(t, ok)
}
