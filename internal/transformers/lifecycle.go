package transformers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Loader builds a classifier. closer may be nil when there is nothing to
// release.
type Loader func(ctx context.Context) (classifier Classifier, closer io.Closer, err error)

// Backend is what the engine sees of the model handle: either a ready
// classifier or an offline placeholder that reports why it cannot classify.
type Backend interface {
	State() State
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Handle is the read side of a Lifecycle used by the engines.
type Handle interface {
	EnsureReady(ctx context.Context)
	Backend() Backend
}

type readyBackend struct {
	classifier Classifier
}

func (b readyBackend) State() State { return StateReady }

func (b readyBackend) Classify(ctx context.Context, text string) (Prediction, error) {
	return b.classifier.Classify(ctx, text)
}

type offlineBackend struct {
	state State
}

func (b offlineBackend) State() State { return b.state }

func (b offlineBackend) Classify(context.Context, string) (Prediction, error) {
	return Prediction{}, ErrUnavailable
}

// Lifecycle owns the neural model handle. EnsureReady runs at most one load
// at a time; callers arriving while a load is in flight return immediately
// and see the current (not ready) state.
type Lifecycle struct {
	name   string
	loader Loader

	mu           sync.Mutex
	initializing bool
	state        State
	classifier   Classifier
	closer       io.Closer
	lastErr      error
	attempts     int
	// generation changes on Close; a load started before it is discarded.
	generation int

	onTransition func(name string, from, to State, elapsed time.Duration)
}

type LifecycleOption func(*Lifecycle)

// WithTransitionHook is called after every load attempt, outside the lock.
func WithTransitionHook(fn func(name string, from, to State, elapsed time.Duration)) LifecycleOption {
	return func(l *Lifecycle) {
		l.onTransition = fn
	}
}

// NewLifecycle returns an uninitialized handle. A nil loader means no
// backend is configured; every EnsureReady then ends in StateUnavailable.
func NewLifecycle(name string, loader Loader, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		name:   name,
		loader: loader,
		state:  StateUninitialized,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) EnsureReady(ctx context.Context) {
	l.mu.Lock()
	if l.state == StateReady || l.initializing {
		l.mu.Unlock()
		return
	}
	l.initializing = true
	l.attempts++
	from, attempt, generation := l.state, l.attempts, l.generation
	l.mu.Unlock()

	slog.Info("[ModelLifecycle] Initializing neural backend",
		slog.String("backend", l.name),
		slog.Int("attempt", attempt))
	start := time.Now()

	classifier, closer, err := l.load(ctx)

	l.mu.Lock()
	if generation != l.generation {
		l.mu.Unlock()
		l.discard(closer)
		return
	}
	l.initializing = false
	if err != nil {
		l.state = StateUnavailable
		l.lastErr = err
	} else {
		l.state = StateReady
		l.classifier = classifier
		l.closer = closer
		l.lastErr = nil
	}
	to := l.state
	l.mu.Unlock()

	elapsed := time.Since(start)
	if err != nil {
		slog.Error("[ModelLifecycle] Neural backend unavailable, falling back to lexical scoring",
			slog.String("backend", l.name),
			slog.Int("attempt", attempt),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
	} else {
		slog.Info("[ModelLifecycle] Neural backend ready",
			slog.String("backend", l.name),
			slog.Duration("elapsed", elapsed))
	}

	if l.onTransition != nil {
		l.onTransition(l.name, from, to, elapsed)
	}
}

func (l *Lifecycle) discard(closer io.Closer) {
	slog.Info("[ModelLifecycle] Discarding load finished after close",
		slog.String("backend", l.name))
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("[ModelLifecycle] Failed to release discarded model",
			slog.String("backend", l.name),
			slog.String("error", err.Error()))
	}
}

func (l *Lifecycle) load(ctx context.Context) (classifier Classifier, closer io.Closer, err error) {
	defer func() {
		if r := recover(); r != nil {
			classifier, closer, err = nil, nil, fmt.Errorf("loader panic: %v", r)
		}
	}()

	if l.loader == nil {
		return nil, nil, ErrNoBackend
	}
	classifier, closer, err = l.loader(ctx)
	if err == nil && classifier == nil {
		err = fmt.Errorf("loader returned no classifier")
	}
	return classifier, closer, err
}

// Backend returns a snapshot of the handle. The lock is released before the
// caller classifies.
func (l *Lifecycle) Backend() Backend {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateReady {
		return readyBackend{classifier: l.classifier}
	}
	return offlineBackend{state: l.state}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) Initializing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initializing
}

// LastError is the cause of the most recent failed load, nil once ready.
func (l *Lifecycle) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Lifecycle) Name() string {
	return l.name
}

// Close releases the loaded model and returns the handle to uninitialized.
// A load still in flight is released when it finishes and never becomes
// ready.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	closer := l.closer
	l.closer = nil
	l.classifier = nil
	l.state = StateUninitialized
	l.initializing = false
	l.generation++
	l.mu.Unlock()

	if closer == nil {
		return nil
	}
	return closer.Close()
}
