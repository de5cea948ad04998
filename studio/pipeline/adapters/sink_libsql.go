package adapters

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the mirror schema up to date.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// LibSQLSink mirrors the message log into a libsql database, one row per
// message id. Later updates overwrite the mutable columns.
type LibSQLSink struct {
	db *sql.DB
}

// NewLibSQLSink migrates db and returns a sink writing to it.
func NewLibSQLSink(ctx context.Context, db *sql.DB) (*LibSQLSink, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return &LibSQLSink{db: db}, nil
}

const upsertMessage = `
	INSERT INTO messages (
		id, session_id, turn_id, role, text, stage, artifact_ref, backend_profile,
		directive_json, artifact_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		stage = excluded.stage,
		artifact_ref = excluded.artifact_ref,
		backend_profile = excluded.backend_profile,
		directive_json = excluded.directive_json,
		artifact_json = excluded.artifact_json,
		updated_at = excluded.updated_at
`

// Record upserts msg.
func (s *LibSQLSink) Record(ctx context.Context, sessionID string, msg ports.Message) error {
	directiveJSON, err := nullableJSON(msg.Directive)
	if err != nil {
		return fmt.Errorf("failed to marshal directive: %w", err)
	}
	artifactJSON, err := nullableJSON(msg.Artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertMessage,
		msg.ID, sessionID, msg.TurnID, string(msg.Role), msg.Text, string(msg.Stage),
		msg.ArtifactRef, msg.BackendProfile, directiveJSON, artifactJSON,
		msg.CreatedAt.UnixNano(), msg.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Load returns the mirrored messages of a session in creation order.
func (s *LibSQLSink) Load(ctx context.Context, sessionID string) ([]ports.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, turn_id, role, text, stage, artifact_ref, backend_profile,
		       directive_json, artifact_json, created_at, updated_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []ports.Message
	for rows.Next() {
		var (
			msg                     ports.Message
			role, stage             string
			directiveJSON, artifact sql.NullString
			created, updated        int64
		)
		if err := rows.Scan(&msg.ID, &msg.TurnID, &role, &msg.Text, &stage, &msg.ArtifactRef,
			&msg.BackendProfile, &directiveJSON, &artifact, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = ports.Role(role)
		msg.Stage = ports.Stage(stage)
		msg.CreatedAt = time.Unix(0, created)
		msg.UpdatedAt = time.Unix(0, updated)
		if directiveJSON.Valid {
			msg.Directive = &ports.Directive{}
			if err := json.Unmarshal([]byte(directiveJSON.String), msg.Directive); err != nil {
				return nil, fmt.Errorf("failed to unmarshal directive: %w", err)
			}
		}
		if artifact.Valid {
			msg.Artifact = &ports.ArtifactResult{}
			if err := json.Unmarshal([]byte(artifact.String), msg.Artifact); err != nil {
				return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return out, nil
}

func (s *LibSQLSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *LibSQLSink) Close() error {
	return s.db.Close()
}

func nullableJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Ensure LibSQLSink implements the MessageSink interface.
var _ ports.MessageSink = (*LibSQLSink)(nil)
