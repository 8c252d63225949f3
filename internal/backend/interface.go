// Package backend assembles the infrastructure behind the API: the store,
// the stats cache and the optional event publisher.
package backend

import (
	"context"
	"time"

	"spendly/internal/cache"
	"spendly/internal/core"
	"spendly/internal/services"
	"spendly/internal/storage"
)

// BackendType names a persistence backend.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (t BackendType) IsValid() bool {
	switch t {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (t BackendType) String() string {
	return string(t)
}

// CleanupFunc releases the resources acquired by a factory.
type CleanupFunc func() error

// Result contains the wired infrastructure. Publisher is nil when no broker
// is configured or reachable.
type Result struct {
	Store     storage.Store
	Stats     cache.Cache[core.Stats]
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StatsCacheTTL  time.Duration
	StatsCacheSize int
}
