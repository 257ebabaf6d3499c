package response

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// latchKey escapes each field so the "|" separator cannot occur inside one.
func latchKey(batch, subject, subtopic string) string {
	parts := []string{batch, subject, subtopic}
	for i, p := range parts {
		parts[i] = url.PathEscape(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// MemoryLatch is process-local. Use it only with a single instance.
type MemoryLatch struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLatch() *MemoryLatch {
	return &MemoryLatch{seen: make(map[string]struct{})}
}

func (l *MemoryLatch) MarkAndCheck(ctx context.Context, batch, subject, subtopic string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := latchKey(batch, subject, subtopic)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[k]; ok {
		return false, nil
	}
	l.seen[k] = struct{}{}
	return true, nil
}

// RedisLatch uses SETNX so the check-and-set is atomic across instances.
type RedisLatch struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLatch(rdb *goredis.Client, prefix string, ttl time.Duration) *RedisLatch {
	if prefix == "" {
		prefix = "quizportal:teacher_notified:"
	}
	return &RedisLatch{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *RedisLatch) Key(batch, subject, subtopic string) string {
	return l.prefix + latchKey(batch, subject, subtopic)
}

func (l *RedisLatch) MarkAndCheck(ctx context.Context, batch, subject, subtopic string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.Key(batch, subject, subtopic), time.Now().UTC().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
