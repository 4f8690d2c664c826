package repository

import (
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ammar0144/repo4go/pkg/db"
)

// Constructor builds a repository for one entity type from a connection
// manager. Registered constructors take precedence over the generic
// fallback.
type Constructor[T any] func(*db.Manager) (Repository[T], error)

// Factory resolves, instantiates and memoizes one repository per entity
// type. Custom implementations are installed through Register; every
// other type gets a generic BaseRepository, which is the common path.
type Factory struct {
	manager *db.Manager
	log     zerolog.Logger
	opts    []Option // forwarded to fallback base repositories

	mu           sync.Mutex
	repos        map[reflect.Type]any
	constructors map[reflect.Type]func() (any, error)
}

// NewFactory creates a repository factory bound to one connection
// manager. The options apply to every fallback repository it builds.
func NewFactory(manager *db.Manager, opts ...Option) *Factory {
	return &Factory{
		manager:      manager,
		log:          manager.Logger(),
		opts:         opts,
		repos:        make(map[reflect.Type]any),
		constructors: make(map[reflect.Type]func() (any, error)),
	}
}

// Register installs a custom constructor for entity type T. Must be
// called before the first GetRepository for that type; a repository
// already memoized is not replaced.
func Register[T any](f *Factory, ctor Constructor[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[typeOf[T]()] = func() (any, error) {
		return ctor(f.manager)
	}
}

// GetRepository returns the singleton repository for entity type T,
// creating it on first use. A registered constructor that fails is
// logged and the generic fallback is used instead.
func GetRepository[T any](f *Factory) (Repository[T], error) {
	t := typeOf[T]()

	f.mu.Lock()
	defer f.mu.Unlock()

	if repo, ok := f.repos[t]; ok {
		return repo.(Repository[T]), nil
	}

	repo := buildCustom[T](f.constructors[t], f.log)
	if repo == nil {
		base, err := NewBaseRepository[T](f.manager, f.opts...)
		if err != nil {
			return nil, err
		}
		repo = base
	}

	f.repos[t] = repo
	return repo, nil
}

// CacheFactory is the caching variant of Factory: its fallback is a
// CacheRepository using the refresh interval registered for the type.
// Types without a registered interval get a passthrough (caching
// disabled) repository.
type CacheFactory struct {
	manager *db.Manager
	log     zerolog.Logger
	opts    []CacheOption // forwarded to fallback cache repositories

	mu           sync.Mutex
	repos        map[reflect.Type]any
	constructors map[reflect.Type]func() (any, error)
	intervals    map[reflect.Type]time.Duration
}

// NewCacheFactory creates a caching repository factory. The options
// (clock, background refresh, base options) apply to every fallback
// cache repository it builds.
func NewCacheFactory(manager *db.Manager, opts ...CacheOption) *CacheFactory {
	return &CacheFactory{
		manager:      manager,
		log:          manager.Logger(),
		opts:         opts,
		repos:        make(map[reflect.Type]any),
		constructors: make(map[reflect.Type]func() (any, error)),
		intervals:    make(map[reflect.Type]time.Duration),
	}
}

// SetRefreshInterval records the cache refresh interval for entity type
// T, consulted when the fallback cache repository for that type is
// constructed. Registering an interval after the repository has been
// created has no effect, since creation is memoized.
func SetRefreshInterval[T any](f *CacheFactory, interval time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intervals[typeOf[T]()] = interval
}

// RegisterCached installs a custom constructor for entity type T on the
// caching factory
func RegisterCached[T any](f *CacheFactory, ctor Constructor[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[typeOf[T]()] = func() (any, error) {
		return ctor(f.manager)
	}
}

// GetCachedRepository returns the singleton repository for entity type
// T, creating it on first use. A registered constructor that fails is
// logged and the generic caching fallback is used instead.
func GetCachedRepository[T any](f *CacheFactory) (Repository[T], error) {
	t := typeOf[T]()

	f.mu.Lock()
	defer f.mu.Unlock()

	if repo, ok := f.repos[t]; ok {
		return repo.(Repository[T]), nil
	}

	repo := buildCustom[T](f.constructors[t], f.log)
	if repo == nil {
		cached, err := NewCacheRepository[T](f.manager, f.intervals[t], f.opts...)
		if err != nil {
			return nil, err
		}
		repo = cached
	}

	f.repos[t] = repo
	return repo, nil
}

// Close stops every cache repository the factory created
func (f *CacheFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, repo := range f.repos {
		if closer, ok := repo.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	return nil
}

// buildCustom runs a registered constructor, if any. Any failure (error
// or wrong contract) falls back to the generic implementation.
func buildCustom[T any](ctor func() (any, error), log zerolog.Logger) Repository[T] {
	if ctor == nil {
		return nil
	}

	built, err := ctor()
	if err != nil {
		log.Warn().Err(err).Str("entity", typeOf[T]().Name()).
			Msg("custom repository constructor failed, using generic fallback")
		return nil
	}

	repo, ok := built.(Repository[T])
	if !ok {
		log.Warn().Str("entity", typeOf[T]().Name()).
			Msg("custom repository does not satisfy the contract, using generic fallback")
		return nil
	}
	return repo
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
