package memory

import (
	"context"
	"sync"
)

// Ledger is an in-memory completion ledger tier. It backs guest completion
// state and serves as the local cache in single-process deployments.
type Ledger struct {
	mu        sync.RWMutex
	completed map[string]map[string]bool // identity key -> quiz id -> done
}

func NewLedger() *Ledger {
	return &Ledger{
		completed: make(map[string]map[string]bool),
	}
}

func (l *Ledger) Completions(_ context.Context, key string) (map[string]bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.completed[key]))
	for quizID, done := range l.completed[key] {
		out[quizID] = done
	}
	return out, nil
}

func (l *Ledger) MarkCompleted(_ context.Context, key, quizID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.completed[key] == nil {
		l.completed[key] = make(map[string]bool)
	}
	l.completed[key][quizID] = true
	return nil
}

func (l *Ledger) ReplaceCompletions(_ context.Context, key string, completed map[string]bool) error {
	fresh := make(map[string]bool, len(completed))
	for quizID, done := range completed {
		fresh[quizID] = done
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed[key] = fresh
	return nil
}
