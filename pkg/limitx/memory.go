package limitx

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	expires time.Time
}

// MemoryCounter is a mutex-guarded Counter for single-process use.
type MemoryCounter struct {
	mu   sync.Mutex
	keys map[string]*window
	now  func() time.Time
}

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{keys: make(map[string]*window), now: now}
}

func (m *MemoryCounter) live(key string) *window {
	w, ok := m.keys[key]
	if !ok {
		return nil
	}
	if !m.now().Before(w.expires) {
		delete(m.keys, key)
		return nil
	}
	return w
}

func (m *MemoryCounter) Acquire(_ context.Context, key string, limit int, win time.Duration) (bool, int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.live(key)
	if w != nil && w.count >= limit {
		return false, w.count, w.expires.Sub(m.now()), nil
	}
	if w == nil {
		w = &window{}
		m.keys[key] = w
	}
	w.count++
	w.expires = m.now().Add(win)
	return true, w.count, win, nil
}

func (m *MemoryCounter) Incr(_ context.Context, key string, win time.Duration) (int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.live(key)
	if w == nil {
		w = &window{}
		m.keys[key] = w
	}
	w.count++
	w.expires = m.now().Add(win)
	return w.count, win, nil
}

func (m *MemoryCounter) Peek(_ context.Context, key string) (int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.live(key)
	if w == nil {
		return 0, 0, nil
	}
	return w.count, w.expires.Sub(m.now()), nil
}

func (m *MemoryCounter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
