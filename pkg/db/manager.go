package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	_ "github.com/go-sql-driver/mysql"
)

var (
	// instance holds the singleton database manager
	// Protected by once for thread-safe initialization
	instance *Manager
	once     sync.Once
)

// Singleton Lifecycle Documentation:
//
// The singleton pattern ensures only one database connection pool exists per application.
// This is appropriate for most applications to avoid connection pool exhaustion.
//
// Thread-Safety Guarantees:
//   - NewSingletonManager is safe for concurrent calls
//   - Once initialized, the instance is immutable and safe for concurrent access
//   - First call determines the configuration; subsequent calls return the same instance
//
// Lifecycle Pattern:
//  1. Call NewSingletonManager(config) once at application startup
//  2. Use the returned Manager throughout the application lifetime
//  3. Call Close() at application shutdown to release resources
//
// For testing environments with multiple configuration changes, avoid the singleton
// and use NewManager(config) directly instead.

// NewDefaultManager creates a database manager for the local development
// profile, overriding only the basic connection settings
func NewDefaultManager(host, database, username, password string) (*Manager, error) {
	config := DefaultConfig()
	config.Host = host
	config.Database = database
	config.Username = username
	config.Password = password

	return NewManager(config)
}

// NewManager creates a new database manager instance with full configuration.
// Logging defaults to a no-op logger; use NewManagerWithLogger to attach one.
func NewManager(config *Config) (*Manager, error) {
	return NewManagerWithLogger(config, zerolog.Nop())
}

// NewManagerWithLogger creates a new database manager with an explicit logger.
// The logger is filtered to the level from config.Logging.
func NewManagerWithLogger(config *Config, log zerolog.Logger) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrMissingConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn, err := config.GetDSN()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return &Manager{
		config: config,
		db:     db,
		log:    log.Level(logLevel(config.Logging.Level)),
	}, nil
}

// NewManagerFromDB wraps an already-open connection pool. Useful when the
// caller manages the pool itself or targets a different driver (tests use
// this with an in-memory SQLite database).
func NewManagerFromDB(db *sqlx.DB, log zerolog.Logger) *Manager {
	return &Manager{
		config: DefaultConfig(),
		db:     db,
		log:    log,
	}
}

// NewSingletonManager returns the singleton database manager instance
//
// IMPORTANT: Singleton Initialization Behavior
//   - The first call to NewSingletonManager initializes the singleton instance
//   - If the first call fails, the singleton remains uninitialized permanently
//   - Subsequent calls return the error from the first failed attempt
//   - There is no automatic retry mechanism - this is by design for production stability
//   - Once successfully initialized, subsequent calls ignore the config parameter
//
// Thread-Safety:
//   - This function is safe for concurrent calls
//   - The initialization only happens once, protected by sync.Once
func NewSingletonManager(config *Config) (*Manager, error) {
	var initErr error
	once.Do(func() {
		instance, initErr = NewManager(config)
	})

	if instance == nil {
		if initErr != nil {
			return nil, fmt.Errorf("singleton initialization failed (permanent until restart): %w", initErr)
		}
		return nil, fmt.Errorf("singleton initialization failed with unknown error (permanent until restart)")
	}

	return instance, nil
}

// DB returns the sqlx database handle
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// SqlDB returns the underlying sql.DB instance
func (m *Manager) SqlDB() *sql.DB {
	return m.db.DB
}

// Logger returns the manager's logger
func (m *Manager) Logger() zerolog.Logger {
	return m.log
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// Stats returns database connection statistics
func (m *Manager) Stats() sql.DBStats {
	return m.db.Stats()
}
