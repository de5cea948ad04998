package pipelineports

import "context"

// MessageSink mirrors log entries to external storage. The orchestrator
// never reads back from a sink.
type MessageSink interface {
	Record(ctx context.Context, sessionID string, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
