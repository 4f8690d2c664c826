package db

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestNewManager_NilConfig(t *testing.T) {
	_, err := NewManager(nil)
	require.Error(t, err)
	assert.True(t, IsMissingConfig(err))
}

func TestNewManager_InvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.Database = ""

	_, err := NewManager(c)
	require.Error(t, err)
	assert.True(t, IsMissingConfig(err))
}

func TestNewManager_OpensPoolWithoutDialing(t *testing.T) {
	// sqlx.Open validates the DSN but does not dial, so constructing a
	// manager never requires a reachable server
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	defer m.Close()

	assert.NotNil(t, m.DB())
	assert.NotNil(t, m.SqlDB())
	assert.Equal(t, 25, m.Stats().MaxOpenConnections)
}

func TestManager_PingWrapsConnectionFailure(t *testing.T) {
	c := DefaultConfig()
	c.Host = "127.0.0.1"
	c.Port = 1 // nothing listens here

	m, err := NewManager(c)
	require.NoError(t, err)
	defer m.Close()

	err = m.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionFailed(err))
}

func TestNewManagerFromDB(t *testing.T) {
	pool, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)

	m := NewManagerFromDB(pool, zerolog.Nop())
	defer m.Close()

	require.NoError(t, m.Ping(context.Background()))

	var one int
	require.NoError(t, m.DB().Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
	assert.NotNil(t, m.Config())
}

func TestManager_CloseIsSafe(t *testing.T) {
	pool, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)

	m := NewManagerFromDB(pool, zerolog.Nop())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
