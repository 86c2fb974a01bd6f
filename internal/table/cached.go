package table

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"roomshare/internal/domain"
)

// invalidateTimeout bounds the cache cleanup that follows a write. It runs
// detached from the caller so a dropped request cannot leave stale rows.
const invalidateTimeout = 2 * time.Second

// Cached is a read-through cache in front of an Accessor. Every write
// through it drops the cached rows, even when the write fails partway.
//
// Writers also bump a per-tab version key. A reader only stores what it
// loaded when the version is unchanged since it started, so a read that
// raced a write does not put the old rows back.
type Cached struct {
	Accessor
	cache domain.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewCached(inner Accessor, cache domain.Cache, ttl time.Duration) *Cached {
	return &Cached{Accessor: inner, cache: cache, ttl: ttl, now: time.Now}
}

func (c *Cached) key() string { return "tab:" + c.Name() }
func (c *Cached) versionKey() string { return "tabver:" + c.Name() }

func (c *Cached) ReadAll(ctx context.Context) ([]Row, error) {
	var rows []Row
	if ok, err := c.cache.Get(ctx, c.key(), &rows); err != nil {
		log.Warn().Err(err).Str("tab", c.Name()).Msg("cache read failed")
	} else if ok {
		return rows, nil
	}
	before, verOK := c.version(ctx)
	rows, err := c.Accessor.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if !verOK {
		return rows, nil
	}
	if after, ok := c.version(ctx); !ok || after != before {
		log.Debug().Str("tab", c.Name()).Msg("tab changed during read, not caching")
		return rows, nil
	}
	if err := c.cache.Set(ctx, c.key(), rows, int(c.ttl.Seconds())); err != nil {
		log.Warn().Err(err).Str("tab", c.Name()).Msg("cache write failed")
	}
	return rows, nil
}

// version returns the tab's write version, 0 when none was recorded yet.
// ok is false when the cache could not be asked.
func (c *Cached) version(ctx context.Context) (int64, bool) {
	var v int64
	if _, err := c.cache.Get(ctx, c.versionKey(), &v); err != nil {
		log.Warn().Err(err).Str("tab", c.Name()).Msg("cache version read failed")
		return 0, false
	}
	return v, true
}

func (c *Cached) AppendRow(ctx context.Context, values []any) error {
	defer c.Invalidate(ctx)
	return c.Accessor.AppendRow(ctx, values)
}

func (c *Cached) EnsureHeader(ctx context.Context) error {
	defer c.Invalidate(ctx)
	return c.Accessor.EnsureHeader(ctx)
}

func (c *Cached) ReplaceAll(ctx context.Context, header []string, rows [][]any) error {
	defer c.Invalidate(ctx)
	return c.Accessor.ReplaceAll(ctx, header, rows)
}

func (c *Cached) DeleteWhere(ctx context.Context, match func(Row) bool) (int, error) {
	defer c.Invalidate(ctx)
	return c.Accessor.DeleteWhere(ctx, match)
}

// Invalidate bumps the tab version and drops the cached rows. It ignores
// cancellation of ctx: the remote write may already have landed.
func (c *Cached) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	// the version outlives the rows so an in-flight reader still sees the bump
	verTTL := 2 * int(c.ttl.Seconds())
	if err := c.cache.Set(ctx, c.versionKey(), c.now().UnixNano(), verTTL); err != nil {
		log.Warn().Err(err).Str("tab", c.Name()).Msg("cache version bump failed")
	}
	if err := c.cache.Del(ctx, c.key()); err != nil {
		log.Warn().Err(err).Str("tab", c.Name()).Msg("cache invalidate failed")
	}
}
