package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror shadow-writes store documents to an external document store.
// Writes are best-effort: the in-memory store never waits on or fails with
// the mirror. Implementations must be safe for concurrent use.
type Mirror interface {
	Put(ctx context.Context, key string, doc interface{}) error
	Close() error
}

const mirrorWriteTimeout = 2 * time.Second

// RedisMirror stores documents as JSON values in Redis.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects to the Redis instance described by url
// (redis://host:port/db). The connection is lazy; call WaitReady to verify
// reachability before serving.
func NewRedisMirror(url string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse mirror url: %w", err)
	}
	return &RedisMirror{client: redis.NewClient(opts)}, nil
}

// WaitReady pings the mirror until it responds or ctx expires. A configured
// mirror that never answers within the startup grace period is fatal to the
// caller; running silently without the mirror the operator asked for is not
// an option.
func (m *RedisMirror) WaitReady(ctx context.Context) error {
	for {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := m.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mirror unreachable: %w", err)
		case <-time.After(time.Second):
		}
	}
}

// Put writes doc as a JSON value under key.
func (m *RedisMirror) Put(ctx context.Context, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()
	if err := m.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// shadowWrite dispatches a best-effort mirror write. Failures are logged and
// never propagated: the in-memory write already succeeded and stays
// authoritative.
func shadowWrite(m Mirror, key string, doc interface{}) {
	if m == nil {
		return
	}
	go func() {
		if err := m.Put(context.Background(), key, doc); err != nil {
			log.Printf("WARN: mirror write %s: %v", key, err)
		}
	}()
}
