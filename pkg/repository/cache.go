package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ammar0144/repo4go/pkg/db"
)

// Interface assertion to ensure CacheRepository implements Repository[T]
var _ Repository[any] = (*CacheRepository[any])(nil)

// snapshot is one immutable, fully populated copy of the table. A
// snapshot is built completely off to the side and published with a
// single atomic store; it is never mutated afterwards.
type snapshot[T any] struct {
	entities    []T
	index       map[int64]int // key -> position in entities
	refreshedAt time.Time
}

// CacheRepository wraps a BaseRepository with a read-through in-memory
// snapshot of the whole table and time-based staleness. Reads are
// served from the snapshot, refreshing it on the caller's critical path
// when it is missing or its age has reached the refresh interval.
// Writes delegate to the base repository and discard the snapshot on
// success. With a zero interval caching is disabled and every operation
// passes through.
type CacheRepository[T any] struct {
	base     *BaseRepository[T]
	interval time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger

	snap atomic.Pointer[snapshot[T]]
	// refreshMu serializes refreshers; readers never take it
	refreshMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// CacheOption configures a cache repository at construction time
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	clock      clockwork.Clock
	background bool
	base       []Option
}

// WithClock injects a clock, used by tests to control staleness
func WithClock(clock clockwork.Clock) CacheOption {
	return func(o *cacheOptions) {
		o.clock = clock
	}
}

// WithBackgroundRefresh starts a maintenance goroutine that refreshes a
// stale snapshot once per interval without waiting for a read. The
// goroutine runs until Close.
func WithBackgroundRefresh() CacheOption {
	return func(o *cacheOptions) {
		o.background = true
	}
}

// WithBaseOptions forwards options to the underlying base repository
func WithBaseOptions(opts ...Option) CacheOption {
	return func(o *cacheOptions) {
		o.base = append(o.base, opts...)
	}
}

// NewCacheRepository creates a caching repository for entity type T.
// An interval of zero (or less) disables caching: the instance behaves
// exactly like a BaseRepository.
func NewCacheRepository[T any](manager *db.Manager, interval time.Duration, opts ...CacheOption) (*CacheRepository[T], error) {
	o := cacheOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := NewBaseRepository[T](manager, o.base...)
	if err != nil {
		return nil, err
	}

	c := &CacheRepository[T]{
		base:     base,
		interval: interval,
		clock:    o.clock,
		log:      base.log.With().Str("component", "cache").Logger(),
	}

	if o.background && c.enabled() {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.backgroundLoop()
	}

	return c, nil
}

// Metadata returns the resolved entity metadata
func (c *CacheRepository[T]) Metadata() *Metadata {
	return c.base.Metadata()
}

// Initialized reports whether a snapshot is currently populated
func (c *CacheRepository[T]) Initialized() bool {
	return c.snap.Load() != nil
}

// LastRefresh returns the time of the last successful refresh, or zero
// when the cache is uninitialized
func (c *CacheRepository[T]) LastRefresh() time.Time {
	if snap := c.snap.Load(); snap != nil {
		return snap.refreshedAt
	}
	return time.Time{}
}

// Invalidate discards the snapshot wholesale. The next read rebuilds it
// from the table. Calling Invalidate on an unpopulated cache is a no-op.
func (c *CacheRepository[T]) Invalidate() {
	c.snap.Store(nil)
}

// Close stops the background refresh goroutine, if any. Idempotent.
func (c *CacheRepository[T]) Close() error {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
			<-c.done
		}
	})
	return nil
}

func (c *CacheRepository[T]) enabled() bool {
	return c.interval > 0
}

func (c *CacheRepository[T]) fresh(snap *snapshot[T]) bool {
	return snap != nil && c.clock.Since(snap.refreshedAt) < c.interval
}

// current returns a fresh snapshot, refreshing on the caller's critical
// path when the cache is uninitialized or stale. Readers holding an
// older snapshot pointer are unaffected by a concurrent swap.
func (c *CacheRepository[T]) current(ctx context.Context) (*snapshot[T], error) {
	if snap := c.snap.Load(); c.fresh(snap) {
		return snap, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another refresher may have completed while we waited
	if snap := c.snap.Load(); c.fresh(snap) {
		return snap, nil
	}
	return c.refreshLocked(ctx)
}

// refreshLocked reads the whole table, builds a complete replacement
// snapshot, and publishes it with one atomic store. Caller must hold
// refreshMu. A failed read leaves the previous snapshot in place.
func (c *CacheRepository[T]) refreshLocked(ctx context.Context) (*snapshot[T], error) {
	entities, err := c.base.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(entities))
	for i := range entities {
		index[c.base.meta.KeyValue(&entities[i])] = i
	}

	next := &snapshot[T]{
		entities:    entities,
		index:       index,
		refreshedAt: c.clock.Now(),
	}
	c.snap.Store(next)
	c.log.Debug().Int("rows", len(entities)).Msg("cache snapshot refreshed")
	return next, nil
}

// backgroundLoop refreshes a stale snapshot once per interval. Failures
// are logged and never terminate the loop; the next tick retries.
func (c *CacheRepository[T]) backgroundLoop() {
	defer close(c.done)

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.refreshIfStale()
		}
	}
}

func (c *CacheRepository[T]) refreshIfStale() {
	if c.fresh(c.snap.Load()) {
		return
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.fresh(c.snap.Load()) {
		return
	}
	if _, err := c.refreshLocked(context.Background()); err != nil {
		c.log.Warn().Err(err).Msg("background cache refresh failed")
	}
}

// ============================================================================
// READ OPERATIONS - snapshot-backed
// ============================================================================

// GetByID serves the entity from the snapshot, refreshing it first if
// needed. Returns a copy; mutating the result does not affect the cache.
func (c *CacheRepository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	if !c.enabled() {
		return c.base.GetByID(ctx, id)
	}

	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if pos, ok := snap.index[id]; ok {
		entity := snap.entities[pos]
		return &entity, nil
	}
	return nil, nil
}

// GetByIDs serves a positionally aligned batch lookup from the snapshot
func (c *CacheRepository[T]) GetByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	if !c.enabled() {
		return c.base.GetByIDs(ctx, ids)
	}

	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*T, len(ids))
	for i, id := range ids {
		if pos, ok := snap.index[id]; ok {
			entity := snap.entities[pos]
			out[i] = &entity
		}
	}
	return out, nil
}

// GetAll returns a copy of the snapshot contents
func (c *CacheRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	if !c.enabled() {
		return c.base.GetAll(ctx)
	}

	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(snap.entities))
	copy(out, snap.entities)
	return out, nil
}

// Count returns the number of entities in the snapshot
func (c *CacheRepository[T]) Count(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return c.base.Count(ctx)
	}

	snap, err := c.current(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(snap.entities)), nil
}

// Exists reports key membership in the snapshot
func (c *CacheRepository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	if !c.enabled() {
		return c.base.Exists(ctx, id)
	}

	snap, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	_, ok := snap.index[id]
	return ok, nil
}

// ============================================================================
// WRITE OPERATIONS - delegate, then invalidate on success
// ============================================================================

// Add delegates to the base repository and discards the snapshot once
// the insert succeeded. A failed write leaves the cache untouched.
func (c *CacheRepository[T]) Add(ctx context.Context, entity *T) (int64, error) {
	id, err := c.base.Add(ctx, entity)
	if err == nil {
		c.Invalidate()
	}
	return id, err
}

// AddAll delegates the transactional batch insert and invalidates on
// success
func (c *CacheRepository[T]) AddAll(ctx context.Context, entities []*T) error {
	err := c.base.AddAll(ctx, entities)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// Update delegates and invalidates only when a row was actually written
func (c *CacheRepository[T]) Update(ctx context.Context, entity *T) (bool, error) {
	ok, err := c.base.Update(ctx, entity)
	if err == nil && ok {
		c.Invalidate()
	}
	return ok, err
}

// UpdateAll delegates the transactional batch update and invalidates
// when it committed
func (c *CacheRepository[T]) UpdateAll(ctx context.Context, entities []*T) (bool, error) {
	ok, err := c.base.UpdateAll(ctx, entities)
	if err == nil && ok {
		c.Invalidate()
	}
	return ok, err
}

// Delete delegates and invalidates only when a row was removed
func (c *CacheRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := c.base.Delete(ctx, id)
	if err == nil && ok {
		c.Invalidate()
	}
	return ok, err
}

// DeleteAll delegates the transactional batch delete and invalidates
// when it committed
func (c *CacheRepository[T]) DeleteAll(ctx context.Context, ids []int64) (bool, error) {
	ok, err := c.base.DeleteAll(ctx, ids)
	if err == nil && ok {
		c.Invalidate()
	}
	return ok, err
}

// ============================================================================
// RAW PASSTHROUGHS
// ============================================================================

// Execute passes the command through. The statement may mutate the
// table, so the snapshot is discarded on success.
func (c *CacheRepository[T]) Execute(ctx context.Context, cmd Command) (int64, error) {
	affected, err := c.base.Execute(ctx, cmd)
	if err == nil {
		c.Invalidate()
	}
	return affected, err
}

// ExecuteScalar passes the scalar query through without touching the
// snapshot
func (c *CacheRepository[T]) ExecuteScalar(ctx context.Context, dest any, cmd Command) error {
	return c.base.ExecuteScalar(ctx, dest, cmd)
}

// ExecuteBatch passes the transactional batch through and discards the
// snapshot on success
func (c *CacheRepository[T]) ExecuteBatch(ctx context.Context, cmds []Command) error {
	err := c.base.ExecuteBatch(ctx, cmds)
	if err == nil {
		c.Invalidate()
	}
	return err
}
