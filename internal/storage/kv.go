package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// KV is a durable string key-value store. A missing key is ("", false, nil).
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string
	StatePath   string
	RedisURL    string
	DatabaseURL string
	Migrations  fs.FS
}

// Open connects the backend named by opts.Backend: "file", "redis",
// "postgres" or "memory".
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileKV(opts.StatePath), nil
	case "memory":
		return NewMemoryKV(), nil
	case "redis":
		client, err := ConnectRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("opening redis storage: %w", err)
		}
		return NewRedisKV(client), nil
	case "postgres":
		pool, err := Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		if opts.Migrations != nil {
			if err := RunMigrations(ctx, pool, opts.Migrations); err != nil {
				pool.Close()
				return nil, fmt.Errorf("opening postgres storage: %w", err)
			}
		}
		return NewPostgresKV(pool), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}

// MemoryKV keeps values in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Ping(context.Context) error { return nil }

func (m *MemoryKV) Close() error { return nil }
