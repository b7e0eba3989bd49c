// Package cache holds the volatile, MIME-scoped store used by the cache filter. Entries live
// for the lifetime of the process and are never evicted.
package cache

import (
	"sync"
	"time"
)

// Entry is one cached response body.
type Entry struct {
	ETag    string
	Data    []byte
	ModTime time.Time
}

// MTimeMillis returns the modification time in unix milliseconds.
func (e Entry) MTimeMillis() int64 {
	return e.ModTime.UnixMilli()
}

// Store is keyed by (url, mime). Each key holds at most one entry; Set overwrites.
type Store interface {
	Get(url, mime string) (Entry, bool)
	Set(url, mime string, e Entry) error
}

type key struct{ url, mime string }

// Memory is an in-process Store. Writers are serialized; readers may observe the previous
// entry while a write is in flight but never a partial one.
type Memory struct {
	mu      sync.RWMutex
	entries map[key]Entry
}

// NewMemory inits an empty memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[key]Entry)}
}

// Get returns a copy of the entry stored under (url, mime).
func (m *Memory) Get(url, mime string) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key{url, mime}]
	m.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	e.Data = clone(e.Data)

	return e, true
}

// Set stores a copy of e under (url, mime), replacing any previous entry.
func (m *Memory) Set(url, mime string, e Entry) error {
	e.Data = clone(e.Data)

	m.mu.Lock()
	m.entries[key{url, mime}] = e
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}

	return append([]byte(nil), b...)
}

var _ Store = &Memory{}
