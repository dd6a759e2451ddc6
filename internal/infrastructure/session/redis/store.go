package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

const keyPrefix = "cnrag:session:"

// Store keeps each session as a capped redis list of JSON-encoded turns.
type Store struct {
	client   goredis.UniversalClient
	ttl      time.Duration
	maxTurns int
}

func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func New(client goredis.UniversalClient, ttl time.Duration, maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &Store{client: client, ttl: ttl, maxTurns: maxTurns}
}

func (s *Store) Get(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	key := sessionKey(sessionID)
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange session: %w", err)
	}
	if s.ttl > 0 && len(raw) > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis expire session: %w", err)
		}
	}
	return decodeTurns(raw), nil
}

func (s *Store) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	key := sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append session: %w", err)
	}
	return nil
}

func (s *Store) Evict(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func encodeTurns(turns []domain.Turn) ([]any, error) {
	out := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("marshal turn: %w", err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

// decodeTurns skips entries that are not valid turns.
func decodeTurns(raw []string) []domain.Turn {
	out := make([]domain.Turn, 0, len(raw))
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil || turn.Role == "" {
			continue
		}
		out = append(out, turn)
	}
	return out
}
