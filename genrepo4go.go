// Package repo4go provides a minimal generic SQL repository library for
// MySQL with snapshot caching for high read, low write applications.
package repo4go

import (
	"time"

	"github.com/ammar0144/repo4go/pkg/db"
	"github.com/ammar0144/repo4go/pkg/repository"
)

// Config represents database configuration
type Config = db.Config

// DefaultConfig returns the local development profile
func DefaultConfig() *Config {
	return db.DefaultConfig()
}

// NewManager creates a new database manager
func NewManager(config *Config) (*db.Manager, error) {
	return db.NewManager(config)
}

// Repository provides the generic repository interface
type Repository[T any] interface {
	repository.Repository[T]
}

// Command is a raw parameterized statement for passthrough execution
type Command = repository.Command

// NewRepository creates a plain repository instance for entity type T
func NewRepository[T any](manager *db.Manager, opts ...repository.Option) (Repository[T], error) {
	return repository.NewBaseRepository[T](manager, opts...)
}

// NewCachedRepository creates a repository for entity type T whose reads
// are served from an in-memory snapshot refreshed at the given interval.
// A zero interval disables caching.
func NewCachedRepository[T any](manager *db.Manager, interval time.Duration, opts ...repository.CacheOption) (Repository[T], error) {
	return repository.NewCacheRepository[T](manager, interval, opts...)
}

// NewFactory creates a repository factory with generic fallback
func NewFactory(manager *db.Manager, opts ...repository.Option) *repository.Factory {
	return repository.NewFactory(manager, opts...)
}

// NewCacheFactory creates a repository factory whose fallback caches
func NewCacheFactory(manager *db.Manager, opts ...repository.CacheOption) *repository.CacheFactory {
	return repository.NewCacheFactory(manager, opts...)
}
