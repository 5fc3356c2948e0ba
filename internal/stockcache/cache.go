// Package stockcache keeps the latest enriched stock snapshot in memory and
// refreshes it from the warehouse on demand or on a schedule.
package stockcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"estoque-backend/internal/logging"
	"estoque-backend/internal/lookup"
	"estoque-backend/internal/stockmetrics"
	"estoque-backend/internal/warehouse"
)

var ErrNoData = errors.New("no stock data available")

const (
	defaultTTL        = 10 * time.Minute
	defaultRetryAfter = time.Minute
	lockWait          = 5 * time.Second
	fetchLockTTL      = time.Minute
)

// Snapshot is immutable once published; a failed refresh publishes a copy
// with Stale set instead of touching the old one.
type Snapshot struct {
	Items     []stockmetrics.EnrichedItem `json:"items"`
	Join      stockmetrics.JoinReport     `json:"join"`
	FetchedAt time.Time                   `json:"fetched_at"`
	Stale     bool                        `json:"stale"`
	Warning   string                      `json:"warning,omitempty"`
}

// LookupFunc returns a code -> label map.
type LookupFunc func() (map[int]string, error)

// LookupFile loads path through the lookup package on every call, so edits to
// the spreadsheet are picked up by the next refresh. Empty path returns nil.
func LookupFile(path string, opts lookup.Options) LookupFunc {
	if path == "" {
		return nil
	}
	return func() (map[int]string, error) {
		t, err := lookup.Load(path, opts)
		if err != nil {
			return nil, err
		}
		if t.Duplicates > 0 {
			logging.Module("stockcache").WithFields(map[string]any{
				"path":       path,
				"duplicates": t.Duplicates,
			}).Warn("lookup has duplicated codes, first occurrence kept")
		}
		return t.Entries, nil
	}
}

type Config struct {
	Source       warehouse.Source
	Names        LookupFunc
	Classes      LookupFunc // optional
	RequireNames bool
	Metrics      stockmetrics.Options
	TTL          time.Duration
	RetryAfter   time.Duration
	Mirror       Mirror // optional
}

type Cache struct {
	cfg Config
	now func() time.Time

	mu   sync.RWMutex
	snap *Snapshot

	refreshMu   sync.Mutex
	lastAttempt time.Time
	lastErr     error
}

func New(cfg Config) *Cache {
	if cfg.Source == nil {
		cfg.Source = warehouse.Unconfigured()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaultRetryAfter
	}
	return &Cache{cfg: cfg, now: time.Now}
}

// Current returns the published snapshot without triggering a refresh.
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Cache) fresh(s *Snapshot) bool {
	return s != nil && !s.Stale && c.now().Sub(s.FetchedAt) < c.cfg.TTL
}

// Get returns the current snapshot, refreshing first when it is older than
// the TTL. ErrNoData means no snapshot was ever built.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if s := c.Current(); c.fresh(s) {
		return s, nil
	}
	return c.Refresh(ctx, false)
}

// Refresh rebuilds the snapshot. Without force, a refresh that another
// caller just completed, or a recent failure, is reused instead.
func (c *Cache) Refresh(ctx context.Context, force bool) (*Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur := c.Current()
	if !force {
		if c.fresh(cur) {
			return cur, nil
		}
		if c.lastErr != nil && c.now().Sub(c.lastAttempt) < c.cfg.RetryAfter {
			return c.fallback(cur, c.lastErr)
		}
		if s := c.loadMirror(ctx); s != nil {
			c.publish(s)
			return s, nil
		}
	}

	if release := c.acquire(ctx); release != nil {
		defer release()
	} else if !force {
		// another instance holds the fetch lock; give it a moment to publish
		if s := c.waitMirror(ctx); s != nil {
			c.publish(s)
			return s, nil
		}
	}

	c.lastAttempt = c.now()
	s, err := c.build(ctx)
	if err != nil {
		c.lastErr = err
		logging.LogError("stockcache", "Refresh", "building stock snapshot", nil, err)
		return c.fallback(cur, err)
	}
	c.lastErr = nil
	c.publish(s)
	c.storeMirror(ctx, s)

	logging.Module("stockcache").WithFields(map[string]any{
		"items":     s.Join.Total,
		"unmatched": s.Join.Unmatched,
	}).Info("stock snapshot refreshed")
	return s, nil
}

// LastError is the error of the most recent refresh attempt, nil on success.
func (c *Cache) LastError() error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.lastErr
}

func (c *Cache) publish(s *Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

func (c *Cache) fallback(cur *Snapshot, cause error) (*Snapshot, error) {
	if cur == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, cause)
	}
	stale := *cur
	stale.Stale = true
	stale.Warning = fmt.Sprintf("dados de %s, atualização falhou: %v", cur.FetchedAt.Format("02/01/2006 15:04"), cause)
	c.publish(&stale)
	return &stale, nil
}

func (c *Cache) build(ctx context.Context) (*Snapshot, error) {
	stock, err := c.cfg.Source.FetchStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stock: %w", err)
	}

	var warnings []string

	names, err := c.loadNames()
	if err != nil {
		if c.cfg.RequireNames {
			return nil, fmt.Errorf("load names: %w", err)
		}
		warnings = append(warnings, "descrições indisponíveis: "+err.Error())
		names = nil
	}

	var classes map[int]string
	if c.cfg.Classes != nil {
		classes, err = c.cfg.Classes()
		if err != nil {
			warnings = append(warnings, "classificação indisponível: "+err.Error())
			classes = nil
		}
	}

	joined, rep := stockmetrics.Join(stock, names, classes)
	s := &Snapshot{
		Items:     stockmetrics.Enrich(joined, c.cfg.Metrics),
		Join:      rep,
		FetchedAt: c.now(),
	}
	for i, w := range warnings {
		if i > 0 {
			s.Warning += "; "
		}
		s.Warning += w
	}
	return s, nil
}

func (c *Cache) loadNames() (map[int]string, error) {
	if c.cfg.Names == nil {
		return nil, lookup.ErrLookupMissing
	}
	return c.cfg.Names()
}
