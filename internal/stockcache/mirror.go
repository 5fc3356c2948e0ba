package stockcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"estoque-backend/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotKey = "estoque:stock-snapshot"
	fetchLock   = "estoque:stock-fetch"
)

// Mirror shares snapshots between server instances. Errors are logged by the
// cache and never fail a refresh.
type Mirror interface {
	Load(ctx context.Context) (*Snapshot, bool, error)
	Store(ctx context.Context, s *Snapshot, ttl time.Duration) error
}

// Locker is implemented by mirrors that can elect a single fetching instance.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type RedisMirror struct {
	client *redis.Client
	locker *redislock.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client, locker: redislock.New(client)}
}

func (m *RedisMirror) Load(ctx context.Context) (*Snapshot, bool, error) {
	val, err := m.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var s Snapshot
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (m *RedisMirror) Store(ctx context.Context, s *Snapshot, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, snapshotKey, b, ttl).Err()
}

func (m *RedisMirror) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	lock, err := m.locker.Obtain(ctx, fetchLock, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return func() { _ = lock.Release(context.Background()) }, true, nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}

func (c *Cache) loadMirror(ctx context.Context) *Snapshot {
	if c.cfg.Mirror == nil {
		return nil
	}
	s, ok, err := c.cfg.Mirror.Load(ctx)
	if err != nil {
		logging.LogError("stockcache", "loadMirror", "reading mirrored snapshot", nil, err)
		return nil
	}
	if !ok || !c.fresh(s) {
		return nil
	}
	return s
}

func (c *Cache) storeMirror(ctx context.Context, s *Snapshot) {
	if c.cfg.Mirror == nil {
		return
	}
	if err := c.cfg.Mirror.Store(ctx, s, c.cfg.TTL); err != nil {
		logging.LogError("stockcache", "storeMirror", "writing mirrored snapshot", nil, err)
	}
}

// acquire returns a release func when this instance may fetch. It returns nil
// only when a Locker reports that another instance holds the lock.
func (c *Cache) acquire(ctx context.Context) func() {
	l, ok := c.cfg.Mirror.(Locker)
	if !ok {
		return func() {}
	}
	release, obtained, err := l.Acquire(ctx, fetchLockTTL)
	if err != nil {
		logging.LogError("stockcache", "acquire", "obtaining fetch lock", nil, err)
		return func() {}
	}
	if !obtained {
		return nil
	}
	return release
}

func (c *Cache) waitMirror(ctx context.Context) *Snapshot {
	deadline := time.NewTimer(lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-tick.C:
			if s := c.loadMirror(ctx); s != nil {
				return s
			}
		}
	}
}
