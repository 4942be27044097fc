package threshold

import (
	"sync"
	"time"
)

// Log retains alerts until they age out or the count cap is reached.
// Alerts are appended in emission order and only ever leave through Prune.
type Log struct {
	mu       sync.RWMutex
	alerts   []Alert
	maxAge   time.Duration
	maxCount int
}

// NewLog creates a Log. A zero maxAge or maxCount disables that limit.
func NewLog(maxAge time.Duration, maxCount int) *Log {
	return &Log{maxAge: maxAge, maxCount: maxCount}
}

func (l *Log) Add(alerts ...Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.alerts = append(l.alerts, alerts...)
}

// Replace overwrites stored alerts that share an ID with updated.
func (l *Log) Replace(updated []Alert) {
	if len(updated) == 0 {
		return
	}

	byID := make(map[string]Alert, len(updated))
	for _, a := range updated {
		byID[a.ID] = a
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, a := range l.alerts {
		if u, ok := byID[a.ID]; ok {
			l.alerts[i] = u
		}
	}
}

// Alerts returns a copy of every retained alert, oldest first.
func (l *Log) Alerts() []Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)

	return out
}

func (l *Log) Unresolved() []Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Alert
	for _, a := range l.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}

	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.alerts)
}

// Prune drops alerts older than the age limit, then the oldest alerts beyond
// the count cap. It returns the number removed.
func (l *Log) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.alerts)

	if l.maxAge > 0 {
		cutoff := now.Add(-l.maxAge)
		kept := l.alerts[:0]
		for _, a := range l.alerts {
			if !a.Timestamp.Before(cutoff) {
				kept = append(kept, a)
			}
		}
		l.alerts = kept
	}

	if l.maxCount > 0 && len(l.alerts) > l.maxCount {
		l.alerts = append([]Alert(nil), l.alerts[len(l.alerts)-l.maxCount:]...)
	}

	return before - len(l.alerts)
}
