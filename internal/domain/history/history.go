package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"persona-call-golang/internal/domain/call"
	log "persona-call-golang/logger"
)

// Store keeps per-call transcripts in a redis sorted set, scored by
// message time. A nil client degrades to a no-op so calls still work
// without redis.
type Store struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

type Option func(*Store)

// WithTTL expires a call's history after the given duration. Zero keeps
// it forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func NewStore(redisClient *redis.Client, keyPrefix string, opts ...Option) *Store {
	s := &Store{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(callID string) string {
	return fmt.Sprintf("%s:call:%s", s.keyPrefix, callID)
}

// Add appends one chat message to the call's history.
func (s *Store) Add(ctx context.Context, callID string, msg call.ChatMessage) error {
	if s.redisClient == nil {
		log.Log().Warn("redis client is nil, history disabled")
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.key(callID)
	err = s.redisClient.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp.UnixNano()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.redisClient.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// Get returns up to limit messages in chronological order. limit <= 0
// returns all of them.
func (s *Store) Get(ctx context.Context, callID string, limit int) ([]call.ChatMessage, error) {
	if s.redisClient == nil {
		return nil, nil
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.redisClient.ZRange(ctx, s.key(callID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	out := make([]call.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg call.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			log.Warnf("skip malformed history entry: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear removes the call's history.
func (s *Store) Clear(ctx context.Context, callID string) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Del(ctx, s.key(callID)).Err()
}
