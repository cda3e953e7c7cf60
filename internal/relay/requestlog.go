package relay

import (
	"sync"
	"time"
)

const DefaultRequestLogSize = 1000

// LogEntry is one relay outcome.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Fan       string    `json:"fan,omitempty"`
	Creator   string    `json:"creator,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	TxHash    string    `json:"transactionHash,omitempty"`
}

// RequestLog keeps the most recent entries, oldest first.
type RequestLog struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func NewRequestLog(size int) *RequestLog {
	if size <= 0 {
		size = DefaultRequestLogSize
	}
	return &RequestLog{entries: make([]LogEntry, size)}
}

func (l *RequestLog) Append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Snapshot copies the retained entries in arrival order.
func (l *RequestLog) Snapshot() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		out := make([]LogEntry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]LogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

func (l *RequestLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

func (l *RequestLog) Cap() int {
	return len(l.entries)
}
