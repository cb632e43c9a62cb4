package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "tecret-anta:session:"

// PasscodeSessionTTL caps how long a session holding a plaintext creation
// passcode may live.
const PasscodeSessionTTL = 10 * time.Minute

// RedisSessionStore keeps sessions in Redis as JSON with a sliding TTL, so
// abandoned dialogs expire on their own.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// OpenRedis parses a redis:// URL and checks the server is reachable.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, userID)
}

func (s *RedisSessionStore) Get(ctx context.Context, userID int64) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, userID int64, session Session) error {
	if session.Idle() {
		if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), data, s.ttlFor(session)).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ttlFor(session Session) time.Duration {
	if session.Passcode != "" && (s.ttl <= 0 || s.ttl > PasscodeSessionTTL) {
		return PasscodeSessionTTL
	}
	return s.ttl
}
