package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ironsheep/contour-mcp/internal/pipeline"
)

type memoryEntry struct {
	report *pipeline.Report
	stored time.Time
}

// Memory is an in-process Store. Entries are shared, not copied, so callers
// must treat returned reports as read-only.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an empty memory store whose entries lapse after ttl
// (zero keeps them forever).
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*pipeline.Report, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if expired(e.stored, m.ttl, m.now()) {
		m.mu.Lock()
		// A Set may have replaced the entry since the read lock was released.
		if cur, ok := m.entries[key]; ok && expired(cur.stored, m.ttl, m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.report, true, nil
}

func (m *Memory) Set(_ context.Context, key string, report *pipeline.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{report: report, stored: m.now()}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
