package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/ammar0144/repo4go/pkg/db"
)

// userAccount is the entity used across the repository test suite
type userAccount struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

const userAccountSchema = `
CREATE TABLE user_account (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT ''
)`

// newTestManager opens an in-memory SQLite database with the test
// schema. The generated statements are driver-agnostic (`?` markers),
// so the suite runs without a MySQL server.
func newTestManager(t *testing.T) *db.Manager {
	t.Helper()

	conn, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(userAccountSchema)
	require.NoError(t, err)

	return db.NewManagerFromDB(conn, zerolog.Nop())
}

func newBaseRepo(t *testing.T, opts ...Option) (*BaseRepository[userAccount], *db.Manager) {
	t.Helper()
	manager := newTestManager(t)
	repo, err := NewBaseRepository[userAccount](manager, opts...)
	require.NoError(t, err)
	return repo, manager
}

func mustAdd(t *testing.T, repo Repository[userAccount], names ...string) []int64 {
	t.Helper()
	ids := make([]int64, len(names))
	for i, name := range names {
		id, err := repo.Add(context.Background(), &userAccount{Name: name})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestNewBaseRepository_RequiresManager(t *testing.T) {
	_, err := NewBaseRepository[userAccount](nil)
	require.Error(t, err)
	assert.True(t, db.IsMissingConfig(err))
}

func TestNewBaseRepository_RequiresKeyField(t *testing.T) {
	_, err := NewBaseRepository[orphan](newTestManager(t))
	require.Error(t, err)
	assert.True(t, IsNoKeyField(err))
}

func TestBaseRepository_EndToEnd(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()

	entity := &userAccount{Name: "Alice"}
	id, err := repo.Add(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, id, entity.ID, "new key is written back onto the entity")

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	ok, err := repo.Update(ctx, &userAccount{ID: id, Name: "Alicia"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alicia", got.Name)

	ok, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "deleted row reads as absent, not as an error")

	ok, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second delete finds nothing")
}

func TestBaseRepository_GetByID_NotFound(t *testing.T) {
	repo, _ := newBaseRepo(t)

	got, err := repo.GetByID(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBaseRepository_GetByIDs_PositionalAlignment(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b", "c")

	query := []int64{ids[2], ids[0], 9999, ids[2], ids[1]}
	got, err := repo.GetByIDs(ctx, query)
	require.NoError(t, err)
	require.Len(t, got, len(query), "result length always matches input length")

	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)
	assert.Nil(t, got[2], "missing id yields a nil slot at its position")
	assert.Equal(t, "c", got[3].Name, "duplicate ids each get their own slot")
	assert.Equal(t, "b", got[4].Name)
}

func TestBaseRepository_GetByIDs_Empty(t *testing.T) {
	repo, _ := newBaseRepo(t)

	got, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBaseRepository_GetByIDs_Chunked(t *testing.T) {
	repo, _ := newBaseRepo(t, WithMaxBatchSize(2))
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b", "c", "d", "e")

	got, err := repo.GetByIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		require.NotNil(t, got[i])
		assert.Equal(t, name, got[i].Name)
	}
}

func TestBaseRepository_GetAllAndCount(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	mustAdd(t, repo, "a", "b", "c")

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestBaseRepository_Exists(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	ids := mustAdd(t, repo, "a")

	ok, err := repo.Exists(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBaseRepository_AddAll(t *testing.T) {
	repo, _ := newBaseRepo(t, WithMaxBatchSize(2))
	ctx := context.Background()

	entities := []*userAccount{
		{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"},
	}
	require.NoError(t, repo.AddAll(ctx, entities))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	require.NoError(t, repo.AddAll(ctx, nil), "empty batch is a no-op")
}

func TestBaseRepository_AddAll_Atomicity(t *testing.T) {
	repo, _ := newBaseRepo(t, WithMaxBatchSize(2))
	ctx := context.Background()

	// The duplicate name violates UNIQUE in the second chunk; the rows
	// from the first chunk must be rolled back with it.
	entities := []*userAccount{
		{Name: "a"}, {Name: "b"}, {Name: "a"}, {Name: "d"}, {Name: "e"},
	}
	err := repo.AddAll(ctx, entities)
	require.Error(t, err)

	repoErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "user_account", repoErr.Table)
	assert.Equal(t, "add_all", repoErr.Op)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "no element of the failed batch is persisted")
}

func TestBaseRepository_Update_NotFound(t *testing.T) {
	repo, _ := newBaseRepo(t)

	ok, err := repo.Update(context.Background(), &userAccount{ID: 9999, Name: "ghost"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBaseRepository_Update_UnchangedValuesStillMatch(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	ids := mustAdd(t, repo, "a")

	// Rewriting identical values must still report the row as matched
	ok, err := repo.Update(ctx, &userAccount{ID: ids[0], Name: "a"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBaseRepository_UpdateAll(t *testing.T) {
	repo, _ := newBaseRepo(t, WithMaxBatchSize(2))
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b", "c")

	ok, err := repo.UpdateAll(ctx, []*userAccount{
		{ID: ids[0], Name: "a2", Email: "a@x"},
		{ID: ids[1], Name: "b2", Email: "b@x"},
		{ID: ids[2], Name: "c2", Email: "c@x"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, "a2", got[0].Name)
	assert.Equal(t, "b@x", got[1].Email)
	assert.Equal(t, "c2", got[2].Name)
}

func TestBaseRepository_UpdateAll_MissingRowRollsBack(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b")

	ok, err := repo.UpdateAll(ctx, []*userAccount{
		{ID: ids[0], Name: "a2"},
		{ID: 9999, Name: "ghost"},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name, "partial update is rolled back")
}

func TestBaseRepository_DeleteAll(t *testing.T) {
	repo, _ := newBaseRepo(t, WithMaxBatchSize(2))
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b", "c")

	ok, err := repo.DeleteAll(ctx, ids)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBaseRepository_DeleteAll_MissingRowRollsBack(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	ids := mustAdd(t, repo, "a", "b")

	ok, err := repo.DeleteAll(ctx, []int64{ids[0], 9999})
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "partial delete is rolled back")
}

func TestBaseRepository_Execute(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	mustAdd(t, repo, "a", "b")

	affected, err := repo.Execute(ctx, NewCommand(
		"UPDATE user_account SET email = ? WHERE email = ?", "none@x", ""))
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
}

func TestBaseRepository_ExecuteScalar(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()
	mustAdd(t, repo, "a", "b", "c")

	var count int64
	err := repo.ExecuteScalar(ctx, &count, NewCommand(
		"SELECT COUNT(1) FROM user_account WHERE name != ?", "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBaseRepository_ExecuteBatch_RollsBackOnFailure(t *testing.T) {
	repo, _ := newBaseRepo(t)
	ctx := context.Background()

	err := repo.ExecuteBatch(ctx, []Command{
		NewCommand("INSERT INTO user_account (name, email) VALUES (?, ?)", "a", ""),
		NewCommand("INSERT INTO no_such_table (name) VALUES (?)", "b"),
	})
	require.Error(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBaseRepository_Cancellation(t *testing.T) {
	repo, _ := newBaseRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Execute(ctx, NewCommand(
		"INSERT INTO user_account (name, email) VALUES (?, ?)", "a", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "cancellation surfaces through the wrapped error")
}

func TestBaseRepository_ErrorCarriesTableAndOp(t *testing.T) {
	repo, manager := newBaseRepo(t)
	ctx := context.Background()

	_, err := manager.DB().Exec("DROP TABLE user_account")
	require.NoError(t, err)

	_, err = repo.GetAll(ctx)
	require.Error(t, err)

	repoErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "user_account", repoErr.Table)
	assert.Equal(t, "get_all", repoErr.Op)
	assert.NotNil(t, repoErr.Unwrap())
}

func TestChunk(t *testing.T) {
	assert.Len(t, chunk([]int{1, 2, 3, 4, 5}, 2), 3)
	assert.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 10))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, chunk([]int{1, 2, 3, 4}, 2))
	assert.Len(t, chunk([]int{}, 2), 1, "empty input yields one empty batch")
}
