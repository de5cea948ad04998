package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// RedisSink mirrors the message log into Redis:
//
//	studio:session:{sid}:messages  hash   id -> message JSON
//	studio:session:{sid}:order     zset   id scored by creation time (µs)
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink connects to redisURL and verifies the connection.
func NewRedisSink(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSink{client: client, ttl: ttl}, nil
}

func messagesKey(sessionID string) string {
	return fmt.Sprintf("studio:session:%s:messages", sessionID)
}

func orderKey(sessionID string) string {
	return fmt.Sprintf("studio:session:%s:order", sessionID)
}

// Record writes msg and keeps its original position.
func (s *RedisSink) Record(ctx context.Context, sessionID string, msg ports.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, messagesKey(sessionID), msg.ID, data)
	pipe.ZAddNX(ctx, orderKey(sessionID), redis.Z{
		Score:  float64(msg.CreatedAt.UnixMicro()),
		Member: msg.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, messagesKey(sessionID), s.ttl)
		pipe.Expire(ctx, orderKey(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Load returns the mirrored messages of a session in creation order.
func (s *RedisSink) Load(ctx context.Context, sessionID string) ([]ports.Message, error) {
	ids, err := s.client.ZRange(ctx, orderKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, messagesKey(sessionID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	out := make([]ports.Message, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var msg ports.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// Ensure RedisSink implements the MessageSink interface.
var _ ports.MessageSink = (*RedisSink)(nil)
