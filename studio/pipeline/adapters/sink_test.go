package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/video-studio/studio/db"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

func sampleMessages() (ports.Message, ports.Message) {
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	user := ports.Message{
		ID: "m-1", TurnID: "t-1", Role: ports.RoleUser, Text: "cyberpunk city at night",
		Stage: ports.StageNone, CreatedAt: created, UpdatedAt: created,
	}
	reply := ports.Message{
		ID: "m-2", TurnID: "t-1", Role: ports.RoleAssistant, Text: "Thinking about your request…",
		Stage: ports.StageEnhancing, CreatedAt: created.Add(time.Millisecond), UpdatedAt: created.Add(time.Millisecond),
	}
	return user, reply
}

func settle(reply ports.Message) ports.Message {
	reply.Stage = ports.StageNone
	reply.Text = `I've created your video: "cyberpunk city at night"`
	reply.Directive = &ports.Directive{OriginalText: "cyberpunk city at night", Style: "landscape", DurationSeconds: 5}
	reply.Artifact = &ports.ArtifactResult{ArtifactURL: "/api/placeholder/640/360?video=x", DurationSeconds: 5}
	reply.ArtifactRef = reply.Artifact.ArtifactURL
	reply.BackendProfile = "veo3"
	reply.UpdatedAt = reply.UpdatedAt.Add(time.Second)
	return reply
}

func TestLibSQLSink_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	conn, err := db.ConnectToDB(ctx, filepath.Join(t.TempDir(), "mirror.db"), zerolog.Nop())
	require.NoError(t, err)

	sink, err := NewLibSQLSink(ctx, conn)
	require.NoError(t, err)
	defer sink.Close()

	user, reply := sampleMessages()
	require.NoError(t, sink.Record(ctx, "s-1", user))
	require.NoError(t, sink.Record(ctx, "s-1", reply))
	require.NoError(t, sink.Record(ctx, "s-1", settle(reply)))
	require.NoError(t, sink.Record(ctx, "s-2", ports.Message{ID: "other", Role: ports.RoleSystem, Stage: ports.StageNone, CreatedAt: user.CreatedAt, UpdatedAt: user.CreatedAt}))

	got, err := sink.Load(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "m-1", got[0].ID)
	assert.Equal(t, ports.RoleUser, got[0].Role)
	assert.Nil(t, got[0].Directive)

	assert.Equal(t, "m-2", got[1].ID)
	assert.Equal(t, ports.StageNone, got[1].Stage)
	assert.Equal(t, "veo3", got[1].BackendProfile)
	require.NotNil(t, got[1].Artifact)
	assert.Equal(t, "/api/placeholder/640/360?video=x", got[1].ArtifactRef)
	assert.Equal(t, "landscape", got[1].Directive.Style)
	assert.True(t, reply.CreatedAt.Equal(got[1].CreatedAt), "created_at survives updates")

	assert.NoError(t, sink.Ping(ctx))
	assert.NoError(t, Migrate(ctx, conn), "migrations are idempotent")
}

func TestRedisSink_UpsertAndLoad(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	sink, err := NewRedisSink(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	defer sink.Close()

	session := uuid.NewString()
	user, reply := sampleMessages()
	require.NoError(t, sink.Record(ctx, session, reply))
	require.NoError(t, sink.Record(ctx, session, user))
	require.NoError(t, sink.Record(ctx, session, settle(reply)))

	got, err := sink.Load(ctx, session)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m-1", got[0].ID, "ordered by creation time, not write order")
	assert.Equal(t, ports.StageNone, got[1].Stage)
	assert.Equal(t, "veo3", got[1].BackendProfile)
}

func TestNewRedisSink_BadURL(t *testing.T) {
	_, err := NewRedisSink(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
