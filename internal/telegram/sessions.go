package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prashanttc/tweetAut/internal/agents"
)

// SessionTTL bounds how long a preview can wait for approval.
const SessionTTL = time.Hour

// SessionStore keeps the pending draft per Telegram user.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (agents.Draft, bool, error)
	Put(ctx context.Context, userID int64, d agents.Draft) error
	Delete(ctx context.Context, userID int64) error
}

type memoryEntry struct {
	draft   agents.Draft
	expires time.Time
}

// MemorySessions is a process-local SessionStore.
type MemorySessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]memoryEntry
	now     func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &MemorySessions{ttl: ttl, entries: map[int64]memoryEntry{}, now: time.Now}
}

func (m *MemorySessions) Get(_ context.Context, userID int64) (agents.Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return agents.Draft{}, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, userID)
		return agents.Draft{}, false, nil
	}
	return e.draft, true, nil
}

func (m *MemorySessions) Put(_ context.Context, userID int64, d agents.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{draft: d, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// RedisSessions stores drafts as JSON with a TTL so previews survive restarts
// and are shared between replicas.
type RedisSessions struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSessions(client goredis.UniversalClient, ttl time.Duration) *RedisSessions {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &RedisSessions{client: client, prefix: "tweetbot:session:", ttl: ttl}
}

func (r *RedisSessions) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisSessions) Get(ctx context.Context, userID int64) (agents.Draft, bool, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return agents.Draft{}, false, nil
	}
	if err != nil {
		return agents.Draft{}, false, fmt.Errorf("load session: %w", err)
	}
	var d agents.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return agents.Draft{}, false, fmt.Errorf("decode session: %w", err)
	}
	return d, true, nil
}

func (r *RedisSessions) Put(ctx context.Context, userID int64, d agents.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
