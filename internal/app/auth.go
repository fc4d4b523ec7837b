package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"
)

// Session is the server side state behind a session cookie. A session opened
// with a substitute token carries the token and its class.
type Session struct {
	ID                string
	UserID            int64
	SubstituteTokenID int64
	SubstituteClassID int64
	CreatedAt         time.Time
}

func (s *Session) IsSubstitute() bool {
	return s.SubstituteTokenID != 0
}

type SessionStore interface {
	Create(ctx context.Context, session *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Auth keeps sessions in redis, one hash per session with a key TTL.
type Auth struct {
	redis       *redis.Client
	keyTemplate string
}

func NewAuth(config *Config) (SessionStore, error) {
	if config.Auth.RedisURL == "" {
		logger.Info.Printf("auth.redis_url is empty, keeping sessions in memory")
		return NewMemorySessions(), nil
	}

	opt, err := redis.ParseURL(config.Auth.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Auth{
		redis:       client,
		keyTemplate: config.Auth.SessionKeyTemplate,
	}, nil
}

func (a *Auth) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *Auth) key(id string) string {
	return strings.NewReplacer("{id}", id).Replace(a.keyTemplate)
}

func (a *Auth) Create(ctx context.Context, session *Session, ttl time.Duration) error {
	session.ID = uuid.NewString()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	key := a.key(session.ID)

	pipe := a.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":             session.UserID,
		"substitute_token_id": session.SubstituteTokenID,
		"substitute_class_id": session.SubstituteClassID,
		"created_at":          session.CreatedAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (a *Auth) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	key := a.key(id)

	fields, err := a.redis.HGetAll(ctx, key).Result()
	if err == redis.Nil || (err == nil && len(fields) == 0) {
		logger.Debug.Printf("Session not found for key: %s", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	session := &Session{ID: id}
	if session.UserID, err = strconv.ParseInt(fields["user_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("malformed session %s: %w", key, err)
	}
	session.SubstituteTokenID, _ = strconv.ParseInt(fields["substitute_token_id"], 10, 64)
	session.SubstituteClassID, _ = strconv.ParseInt(fields["substitute_class_id"], 10, 64)
	if created, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		session.CreatedAt = time.Unix(created, 0).UTC()
	}
	return session, nil
}

func (a *Auth) Delete(ctx context.Context, id string) error {
	if err := a.redis.Del(ctx, a.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// MemorySessions is used when no redis is configured and in tests.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (m *MemorySessions) Create(ctx context.Context, session *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.ID = uuid.NewString()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now().UTC()
	}
	m.sessions[session.ID] = memorySession{session: *session, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if m.now().After(stored.expiresAt) {
		delete(m.sessions, id)
		return nil, nil
	}
	session := stored.session
	return &session, nil
}

func (m *MemorySessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessions) Close() error {
	return nil
}
