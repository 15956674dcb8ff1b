package mcp

import (
	"sync"
	"time"
)

// CallRecord captures one MCP round trip for the dashboard debug endpoint.
type CallRecord struct {
	Tool     string        `json:"tool"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
	Error    string        `json:"error,omitempty"`
}

// CallLog is a fixed-capacity ring of recent CallRecords. Old entries are
// overwritten once the ring is full.
type CallLog struct {
	mu    sync.Mutex
	buf   []CallRecord
	next  int
	count int
}

// NewCallLog creates a CallLog holding up to capacity records.
func NewCallLog(capacity int) *CallLog {
	if capacity <= 0 {
		capacity = callLogCapacity
	}
	return &CallLog{buf: make([]CallRecord, capacity)}
}

// Record appends a call record, evicting the oldest when full.
func (l *CallLog) Record(r CallRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = r
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

// Recent returns up to n records, newest first. n <= 0 returns everything.
func (l *CallLog) Recent(n int) []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]CallRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + 2*len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Len returns the number of records currently held.
func (l *CallLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
