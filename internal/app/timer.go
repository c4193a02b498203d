package app

import (
	"sync"
	"time"
)

// Scheduler arms cancellable callbacks. Sessions re-arm their timers on
// every question change, so a handle from a previous question must stop
// firing once its cancel func runs.
type Scheduler interface {
	// Repeat invokes fn once per interval until the returned cancel func is called.
	Repeat(interval time.Duration, fn func()) (cancel func())
	// Once invokes fn after delay unless the returned cancel func runs first.
	Once(delay time.Duration, fn func()) (cancel func())
}

// TickerScheduler is the production Scheduler backed by real timers.
type TickerScheduler struct{}

func (TickerScheduler) Repeat(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (TickerScheduler) Once(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

// ManualScheduler is test-only: callbacks fire only when Tick or
// FireOnces is called, so session timing is fully deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	repeats []*manualTask
	onces   []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Repeat(_ time.Duration, fn func()) func() {
	task := &manualTask{fn: fn}
	m.mu.Lock()
	m.repeats = append(m.repeats, task)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		task.cancelled = true
		m.mu.Unlock()
	}
}

func (m *ManualScheduler) Once(_ time.Duration, fn func()) func() {
	task := &manualTask{fn: fn}
	m.mu.Lock()
	m.onces = append(m.onces, task)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		task.cancelled = true
		m.mu.Unlock()
	}
}

// Tick fires every active repeating callback once.
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	active := make([]func(), 0, len(m.repeats))
	kept := m.repeats[:0]
	for _, task := range m.repeats {
		if task.cancelled {
			continue
		}
		kept = append(kept, task)
		active = append(active, task.fn)
	}
	m.repeats = kept
	m.mu.Unlock()

	for _, fn := range active {
		fn()
	}
}

// FireOnces runs and clears all pending one-shot callbacks.
func (m *ManualScheduler) FireOnces() {
	m.mu.Lock()
	pending := m.onces
	m.onces = nil
	m.mu.Unlock()

	for _, task := range pending {
		if !task.cancelled {
			task.fn()
		}
	}
}
