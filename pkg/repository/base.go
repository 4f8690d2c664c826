package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ammar0144/repo4go/pkg/db"
)

// Interface assertion to ensure BaseRepository implements Repository[T]
var _ Repository[any] = (*BaseRepository[any])(nil)

// DefaultMaxBatchSize bounds how many rows a single batched statement
// covers. Larger inputs are chunked into sub-batches of at most this
// size, all inside one transaction.
const DefaultMaxBatchSize = 1000

// BaseRepository provides generic CRUD operations against one table for
// one entity type. It holds no mutable state: every operation draws a
// connection from the manager's pool, so instances are safe for
// concurrent use.
type BaseRepository[T any] struct {
	manager      *db.Manager
	meta         *Metadata
	log          zerolog.Logger
	maxBatchSize int
}

// Option configures a repository at construction time
type Option func(*options)

type options struct {
	log          *zerolog.Logger
	maxBatchSize int
}

// WithLogger attaches an explicit logger. Without it the manager's
// logger is used (a no-op by default).
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = &log
	}
}

// WithMaxBatchSize overrides DefaultMaxBatchSize
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatchSize = n
		}
	}
}

// NewBaseRepository creates a repository for entity type T. Metadata
// resolution happens here, once; a type without a resolvable key fails
// construction.
func NewBaseRepository[T any](manager *db.Manager, opts ...Option) (*BaseRepository[T], error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: manager cannot be nil", db.ErrMissingConfig)
	}

	meta, err := metadataFor[T]()
	if err != nil {
		return nil, err
	}

	o := options{maxBatchSize: DefaultMaxBatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	log := manager.Logger()
	if o.log != nil {
		log = *o.log
	}

	return &BaseRepository[T]{
		manager:      manager,
		meta:         meta,
		log:          log.With().Str("table", meta.TableName).Logger(),
		maxBatchSize: o.maxBatchSize,
	}, nil
}

// Metadata returns the resolved entity metadata
func (r *BaseRepository[T]) Metadata() *Metadata {
	return r.meta
}

// fail logs an execution failure with its table and operation, then
// wraps it in a repository-level error
func (r *BaseRepository[T]) fail(op string, err error) error {
	r.log.Error().Err(err).Str("op", op).Msg("repository operation failed")
	return &Error{Table: r.meta.TableName, Op: op, Err: err}
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// GetByID retrieves a single entity by key. A missing row yields
// (nil, nil), not an error.
func (r *BaseRepository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	var entity T
	err := r.manager.DB().GetContext(ctx, &entity, buildSelectByKey(r.meta), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail("get_by_id", err)
	}
	return &entity, nil
}

// GetByIDs retrieves many entities by key. The result is aligned
// positionally with ids: position k holds the entity with key ids[k] or
// nil when absent, for any permutation or duplication of ids.
func (r *BaseRepository[T]) GetByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	out := make([]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	found := make(map[int64]T, len(ids))
	for _, batch := range chunk(ids, r.maxBatchSize) {
		var rows []T
		err := r.manager.DB().SelectContext(ctx, &rows, buildSelectByKeys(r.meta, len(batch)), int64Args(batch)...)
		if err != nil {
			return nil, r.fail("get_by_ids", err)
		}
		for _, row := range rows {
			found[r.meta.KeyValue(&row)] = row
		}
	}

	for i, id := range ids {
		if entity, ok := found[id]; ok {
			e := entity
			out[i] = &e
		}
	}
	return out, nil
}

// GetAll retrieves every row in the table, in whatever order the store
// returns them
func (r *BaseRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	var entities []T
	if err := r.manager.DB().SelectContext(ctx, &entities, buildSelectAll(r.meta)); err != nil {
		return nil, r.fail("get_all", err)
	}
	return entities, nil
}

// Count returns the number of rows in the table
func (r *BaseRepository[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.manager.DB().GetContext(ctx, &count, buildCountAll(r.meta)); err != nil {
		return 0, r.fail("count", err)
	}
	return count, nil
}

// Exists reports whether a row with the given key exists
func (r *BaseRepository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.manager.DB().GetContext(ctx, &count, buildCount(r.meta), id); err != nil {
		return false, r.fail("exists", err)
	}
	return count > 0, nil
}

// ============================================================================
// WRITE OPERATIONS
// ============================================================================

// Add inserts the entity (all persistable columns except the key) and
// returns the newly assigned key, which is also written back onto the
// entity
func (r *BaseRepository[T]) Add(ctx context.Context, entity *T) (int64, error) {
	if entity == nil {
		return 0, fmt.Errorf("entity cannot be nil")
	}

	args := r.meta.values(entity, r.meta.NonKeyColumns())
	res, err := r.manager.DB().ExecContext(ctx, buildInsert(r.meta, 1), args...)
	if err != nil {
		return 0, r.fail("add", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.fail("add", err)
	}
	r.meta.SetKey(entity, id)
	return id, nil
}

// AddAll inserts every entity inside one transaction, chunked into
// multi-row inserts of at most the batch size. Any failure rolls the
// whole batch back. Keys are not written back; MySQL only reports the
// first auto-increment id of a multi-row insert.
func (r *BaseRepository[T]) AddAll(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := r.manager.DB().BeginTxx(ctx, nil)
	if err != nil {
		return r.fail("add_all", err)
	}
	defer tx.Rollback()

	cols := r.meta.NonKeyColumns()
	for _, batch := range chunk(entities, r.maxBatchSize) {
		args := make([]any, 0, len(batch)*len(cols))
		for _, entity := range batch {
			args = append(args, r.meta.values(entity, cols)...)
		}
		if _, err := tx.ExecContext(ctx, buildInsert(r.meta, len(batch)), args...); err != nil {
			return r.fail("add_all", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.fail("add_all", err)
	}
	return nil
}

// Update rewrites all persistable columns of the row matching the
// entity's key. Returns false when no row matched; that is not an
// error. Existence is inferred from the affected-row count, in a single
// round trip (see DESIGN.md).
func (r *BaseRepository[T]) Update(ctx context.Context, entity *T) (bool, error) {
	if entity == nil {
		return false, fmt.Errorf("entity cannot be nil")
	}

	args := append(r.meta.values(entity, r.meta.NonKeyColumns()), r.meta.KeyValue(entity))
	res, err := r.manager.DB().ExecContext(ctx, buildUpdate(r.meta), args...)
	if err != nil {
		return false, r.fail("update", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.fail("update", err)
	}
	return affected > 0, nil
}

// UpdateAll updates every entity by key inside one transaction, chunked
// into CASE-form batch updates. A chunk whose affected-row count does
// not match its size means some target row was missing: the whole
// transaction rolls back and UpdateAll returns false.
func (r *BaseRepository[T]) UpdateAll(ctx context.Context, entities []*T) (bool, error) {
	if len(entities) == 0 {
		return true, nil
	}

	tx, err := r.manager.DB().BeginTxx(ctx, nil)
	if err != nil {
		return false, r.fail("update_all", err)
	}
	defer tx.Rollback()

	cols := r.meta.NonKeyColumns()
	for _, batch := range chunk(entities, r.maxBatchSize) {
		// Per column: (key, value) pairs for every row, then the keys
		// for the IN list. Must match buildUpdateBatch.
		args := make([]any, 0, len(cols)*len(batch)*2+len(batch))
		for _, col := range cols {
			for _, entity := range batch {
				args = append(args, r.meta.KeyValue(entity), r.meta.value(entity, col))
			}
		}
		for _, entity := range batch {
			args = append(args, r.meta.KeyValue(entity))
		}

		res, err := tx.ExecContext(ctx, buildUpdateBatch(r.meta, len(batch)), args...)
		if err != nil {
			return false, r.fail("update_all", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, r.fail("update_all", err)
		}
		if affected != int64(len(batch)) {
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, r.fail("update_all", err)
	}
	return true, nil
}

// Delete removes the row with the given key. Returns false when no row
// matched; that is not an error.
func (r *BaseRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.manager.DB().ExecContext(ctx, buildDelete(r.meta, 1), id)
	if err != nil {
		return false, r.fail("delete", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.fail("delete", err)
	}
	return affected > 0, nil
}

// DeleteAll removes the rows with the given keys inside one
// transaction. If any targeted id has no row the whole transaction
// rolls back and DeleteAll returns false.
func (r *BaseRepository[T]) DeleteAll(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	tx, err := r.manager.DB().BeginTxx(ctx, nil)
	if err != nil {
		return false, r.fail("delete_all", err)
	}
	defer tx.Rollback()

	for _, batch := range chunk(ids, r.maxBatchSize) {
		res, err := tx.ExecContext(ctx, buildDelete(r.meta, len(batch)), int64Args(batch)...)
		if err != nil {
			return false, r.fail("delete_all", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, r.fail("delete_all", err)
		}
		if affected != int64(len(batch)) {
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, r.fail("delete_all", err)
	}
	return true, nil
}

// ============================================================================
// RAW PASSTHROUGHS
// ============================================================================

// Execute runs a raw parameterized command and returns the affected-row
// count. Cancellation via ctx surfaces as a wrapped context error.
func (r *BaseRepository[T]) Execute(ctx context.Context, cmd Command) (int64, error) {
	res, err := r.manager.DB().ExecContext(ctx, cmd.text(), cmd.Args...)
	if err != nil {
		return 0, r.fail("execute", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, r.fail("execute", err)
	}
	return affected, nil
}

// ExecuteScalar runs a raw parameterized command and scans the first
// column of the first row into dest
func (r *BaseRepository[T]) ExecuteScalar(ctx context.Context, dest any, cmd Command) error {
	if err := r.manager.DB().GetContext(ctx, dest, cmd.text(), cmd.Args...); err != nil {
		return r.fail("execute_scalar", err)
	}
	return nil
}

// ExecuteBatch runs all commands inside one transaction; any failure
// rolls back every statement
func (r *BaseRepository[T]) ExecuteBatch(ctx context.Context, cmds []Command) error {
	if len(cmds) == 0 {
		return nil
	}

	tx, err := r.manager.DB().BeginTxx(ctx, nil)
	if err != nil {
		return r.fail("execute_batch", err)
	}
	defer tx.Rollback()

	for _, cmd := range cmds {
		if _, err := tx.ExecContext(ctx, cmd.text(), cmd.Args...); err != nil {
			return r.fail("execute_batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.fail("execute_batch", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// chunk splits items into sub-slices of at most size elements
func chunk[E any](items []E, size int) [][]E {
	if size <= 0 {
		size = DefaultMaxBatchSize
	}
	var batches [][]E
	for len(items) > size {
		batches = append(batches, items[:size])
		items = items[size:]
	}
	return append(batches, items)
}

// int64Args widens ids for variadic query arguments
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
