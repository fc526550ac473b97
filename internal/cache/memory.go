package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// MemoryProvider is a process-local Provider with per-key TTL. A janitor
// goroutine evicts expired keys until Close is called.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]memoryItem

	stop chan struct{}
	done chan struct{}
	once sync.Once
	now  func() time.Time
}

// NewMemoryProvider creates an in-memory cache sweeping expired keys every interval.
// A non-positive interval disables the janitor.
func NewMemoryProvider(interval time.Duration) *MemoryProvider {
	m := &MemoryProvider{
		data: make(map[string]memoryItem),
		stop: make(chan struct{}),
		done: make(chan struct{}),
		now:  time.Now,
	}
	if interval > 0 {
		go m.janitor(interval)
	} else {
		close(m.done)
	}
	return m
}

// Get returns a copy of the stored value, or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	it, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || it.expired(m.now()) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores value with an optional TTL.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.item(value, ttl)
	return nil
}

// SetNX stores value only if key is absent or expired.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.data[key]; ok && !it.expired(m.now()) {
		return false, nil
	}
	m.data[key] = m.item(value, ttl)
	return true, nil
}

// Del removes a key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close stops the janitor and waits for it to exit.
func (m *MemoryProvider) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

// Len reports the number of stored keys, expired or not.
func (m *MemoryProvider) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryProvider) item(value []byte, ttl time.Duration) memoryItem {
	it := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	return it
}

func (m *MemoryProvider) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryProvider) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, it := range m.data {
		if it.expired(now) {
			delete(m.data, k)
		}
	}
}
