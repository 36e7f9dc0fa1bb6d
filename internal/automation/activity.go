package automation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLogCapacity bounds the activity log.
const DefaultLogCapacity = 100

// ActivityLog is a bounded, newest-first record of trigger events. Entries
// are never modified; the oldest is evicted once capacity is exceeded.
type ActivityLog struct {
	mu       sync.RWMutex
	capacity int
	entries  []LogEntry
}

// NewActivityLog returns an empty log. capacity <= 0 selects the default.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &ActivityLog{capacity: capacity}
}

// Append prepends entry, filling in its id and timestamp when missing.
func (l *ActivityLog) Append(entry LogEntry) LogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Type == "" {
		entry.Type = LogInfo
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return entry
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (l *ActivityLog) List(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[:n])
	return out
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the maximum number of retained entries.
func (l *ActivityLog) Capacity() int {
	return l.capacity
}

// Restore replaces the log with saved entries, which must already be newest
// first, keeping at most capacity of them.
func (l *ActivityLog) Restore(saved []LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := min(len(saved), l.capacity)
	l.entries = make([]LogEntry, n)
	copy(l.entries, saved[:n])
}
