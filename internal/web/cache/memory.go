package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Backend with TTL eviction. Expired entries are
// dropped lazily on read and swept by a background janitor.
type Memory struct {
	entries sync.Map
	config  Config
	stop    context.CancelFunc
}

type entry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an in-process cache with the default configuration.
func NewMemory() *Memory {
	return NewMemoryWithConfig(DefaultConfig())
}

// NewMemoryWithConfig creates an in-process cache.
func NewMemoryWithConfig(config Config) *Memory {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{config: config, stop: cancel}
	go m.sweep(ctx)
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := m.config.Prefix + key
	loaded, ok := m.entries.Load(full)
	if !ok {
		return nil, ErrMiss{Key: key}
	}
	e := loaded.(entry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		m.entries.Delete(full)
		return nil, ErrMiss{Key: key}
	}
	return e.value, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries.Store(m.config.Prefix+key, e)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Delete(m.config.Prefix + key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Range(func(key, _ any) bool {
		m.entries.Delete(key)
		return true
	})
	return nil
}

// Close stops the janitor.
func (m *Memory) Close() error {
	m.stop()
	return nil
}

func (m *Memory) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.entries.Range(func(key, loaded any) bool {
				e := loaded.(entry)
				if !e.expires.IsZero() && now.After(e.expires) {
					m.entries.Delete(key)
				}
				return true
			})
		}
	}
}
