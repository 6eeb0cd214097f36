package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptWindow is how long failed sign-in attempts are remembered.
const attemptWindow = 15 * time.Minute

// SessionStore tracks live sessions and failed sign-in attempts.
type SessionStore interface {
	Save(ctx context.Context, sessionID, uid string, ttl time.Duration) error
	// Lookup returns the uid owning sessionID or ErrSessionNotFound.
	Lookup(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
	Attempts(ctx context.Context, email string) (int, error)
	RecordFailure(ctx context.Context, email string) (int, error)
	ResetAttempts(ctx context.Context, email string) error
}

type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func sessionKey(id string) string { return "session:" + id }
func attemptsKey(email string) string { return "login:attempts:" + email }

func (s *RedisSessions) Save(ctx context.Context, sessionID, uid string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, sessionKey(sessionID), uid, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Lookup(ctx context.Context, sessionID string) (string, error) {
	uid, err := s.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return uid, nil
}

func (s *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Attempts(ctx context.Context, email string) (int, error) {
	n, err := s.rdb.Get(ctx, attemptsKey(email)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisSessions) RecordFailure(ctx context.Context, email string) (int, error) {
	key := attemptsKey(email)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, attemptWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisSessions) ResetAttempts(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, attemptsKey(email)).Err()
}

type memorySession struct {
	uid     string
	expires time.Time
}

type memoryAttempts struct {
	count   int
	expires time.Time
}

// MemorySessions keeps sessions in process memory; used when no Redis is
// configured and in tests.
type MemorySessions struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]memorySession
	attempts map[string]memoryAttempts
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		now:      time.Now,
		sessions: make(map[string]memorySession),
		attempts: make(map[string]memoryAttempts),
	}
}

func (s *MemorySessions) Save(_ context.Context, sessionID, uid string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memorySession{uid: uid, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessions) Lookup(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, sessionID)
		return "", ErrSessionNotFound
	}
	return sess.uid, nil
}

func (s *MemorySessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessions) Attempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[email]
	if !ok || s.now().After(a.expires) {
		return 0, nil
	}
	return a.count, nil
}

func (s *MemorySessions) RecordFailure(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.attempts[email]
	if s.now().After(a.expires) {
		a.count = 0
	}
	a.count++
	a.expires = s.now().Add(attemptWindow)
	s.attempts[email] = a
	return a.count, nil
}

func (s *MemorySessions) ResetAttempts(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, email)
	return nil
}
