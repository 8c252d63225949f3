package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendly/internal/amqp"
	"spendly/internal/cache"
	"spendly/internal/core"
	applog "spendly/internal/log"
	"spendly/internal/services"
	"spendly/internal/storage"
	"spendly/internal/storage/memory"
	"spendly/internal/storage/postgres"
	"spendly/internal/storage/sqlite"
)

const (
	statsKeyPrefix       = "spendly:stats:"
	defaultStatsCacheTTL = 5 * time.Minute
	redisDialTimeout     = 5 * time.Second
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// Create opens the store and attaches the stats cache and publisher. The
// cache and the publisher degrade instead of failing: an unreachable Redis
// falls back to the in-process cache and an unreachable broker disables
// events.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	cleanups := []CleanupFunc{store.Close}

	stats, stopStats := f.statsCache(ctx, config)
	cleanups = append(cleanups, stopStats)

	res := &Result{Store: store, Stats: stats}
	if client := f.publisher(config); client != nil {
		res.Publisher = client
		cleanups = append(cleanups, client.Close)
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Backend initialized",
		"backend", config.Type.String(),
		"redis_enabled", config.RedisAddr != "",
		"amqp_enabled", res.Publisher != nil)
	return res, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		store, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresBackend:
		store, err := postgres.Open(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres store")
		return store, nil
	case MemoryBackend:
		f.logger.WarnContext(ctx, "Using in-memory store, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) statsCache(ctx context.Context, config Config) (cache.Cache[core.Stats], CleanupFunc) {
	ttl := config.StatsCacheTTL
	if ttl <= 0 {
		ttl = defaultStatsCacheTTL
	}

	if config.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
		client, err := cache.NewRedisClient(dialCtx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		cancel()
		if err == nil {
			f.logger.InfoContext(ctx, "Using Redis stats cache", "addr", config.RedisAddr)
			return cache.NewRedisCache[core.Stats](client, statsKeyPrefix, ttl), client.Close
		}
		f.logger.WarnContext(ctx, "Redis unavailable, falling back to in-process stats cache",
			"addr", config.RedisAddr, applog.FieldError, err.Error())
	}

	lru := cache.NewLRUCache[core.Stats](config.StatsCacheSize, ttl)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(ttl)
	return lru, func() error {
		manager.Stop()
		return nil
	}
}

// publisher returns nil when events are disabled so callers never hold a
// typed nil inside the EventPublisher interface.
func (f *DefaultFactory) publisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err.Error())
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
	return client
}

var _ services.EventPublisher = (*amqp.Client)(nil)
