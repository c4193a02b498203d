package app

import (
	"context"
	"sync"

	"quiz-progression-service/internal/domain"
)

// LedgerStore persists completion flags keyed by identity ledger key.
type LedgerStore interface {
	Completions(ctx context.Context, key string) (map[string]bool, error)
	MarkCompleted(ctx context.Context, key, quizID string) error
}

// LocalLedgerStore is a ledger tier that can also be rewritten wholesale
// when reconciling against the authoritative remote copy.
type LocalLedgerStore interface {
	LedgerStore
	ReplaceCompletions(ctx context.Context, key string, completed map[string]bool) error
}

// CompletionLedger is the per-identity completion map over two tiers: a
// local store (the only tier for guests) and, for authenticated users, an
// authoritative remote store. The guest and user tiers are keyed apart and
// never merged: completing quizzes as a guest carries nothing into a later
// authenticated identity.
type CompletionLedger struct {
	identity domain.Identity
	local    LocalLedgerStore
	remote   LedgerStore // nil for guests

	mu    sync.RWMutex
	cache map[string]bool
}

func NewCompletionLedger(identity domain.Identity, local LocalLedgerStore, remote LedgerStore) *CompletionLedger {
	if identity.IsGuest() {
		remote = nil
	}
	return &CompletionLedger{
		identity: identity,
		local:    local,
		remote:   remote,
		cache:    make(map[string]bool),
	}
}

// Load hydrates the in-memory view. Guests read their guest-scoped local
// copy. Authenticated users read the remote copy and reconcile the local
// cache to it, replacing rather than merging whatever was there.
func (l *CompletionLedger) Load(ctx context.Context) error {
	key := l.identity.LedgerKey()
	if l.remote == nil {
		completed, err := l.local.Completions(ctx, key)
		if err != nil {
			return err
		}
		l.replaceCache(completed)
		return nil
	}

	completed, err := l.remote.Completions(ctx, key)
	if err != nil {
		return err
	}
	l.replaceCache(completed)
	return l.local.ReplaceCompletions(ctx, key, completed)
}

// MarkCompleted flips the flag and persists immediately: the in-memory view
// and local tier first, then the remote tier. A remote failure is returned
// to the caller but the optimistic local update is never rolled back.
func (l *CompletionLedger) MarkCompleted(ctx context.Context, quizID string) error {
	key := l.identity.LedgerKey()
	l.mu.Lock()
	l.cache[quizID] = true
	l.mu.Unlock()

	if err := l.local.MarkCompleted(ctx, key, quizID); err != nil {
		return err
	}
	if l.remote == nil {
		return nil
	}
	return l.remote.MarkCompleted(ctx, key, quizID)
}

// HasCompleted reports whether the quiz was ever finished under this
// identity. Unknown quizzes are simply not completed.
func (l *CompletionLedger) HasCompleted(quizID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[quizID]
}

// Completed returns a copy of the completion map.
func (l *CompletionLedger) Completed() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.cache))
	for quizID, done := range l.cache {
		out[quizID] = done
	}
	return out
}

func (l *CompletionLedger) replaceCache(completed map[string]bool) {
	fresh := make(map[string]bool, len(completed))
	for quizID, done := range completed {
		fresh[quizID] = done
	}
	l.mu.Lock()
	l.cache = fresh
	l.mu.Unlock()
}
