// Package health tracks the connection to the external reminder store and
// drives reconnection with bounded, jittered backoff.
package health

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"remindsync/internal/store"
)

// State is the connection state machine position.
type State int

const (
	// Idle means no sync has run yet or the last result was cleared.
	Idle State = iota
	// Syncing means a sync pass is executing.
	Syncing
	// Reconnecting means a transient failure occurred and the adapter
	// handle is being recreated before the pass restarts.
	Reconnecting
	// Success means the last pass completed.
	Success
	// Failed means the last pass exhausted its retries or hit a
	// permanent error.
	Failed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Reconnecting:
		return "reconnecting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxRetries bounds reconnect attempts per sync pass.
	DefaultMaxRetries = 3

	// backoffBase is multiplied by the attempt number for the delay.
	backoffBase = time.Second

	// jitterMax is the upper bound of the random delay added to each
	// backoff step.
	jitterMax = 500 * time.Millisecond

	// ProbeTimeout bounds the opportunistic health probe.
	ProbeTimeout = 2 * time.Second
)

// Status is a snapshot of the monitor for callers polling the engine.
type Status struct {
	State   State
	Matched int    // tasks matched by the last successful pass
	Message string // user-facing classification, set when State is Failed
}

// Monitor owns the retry policy wrapped around a whole sync sequence.
// A transient failure anywhere in the sequence triggers
// reconnect-and-restart-from-the-top; every phase is idempotent given a
// consistent identity map, so the restart is safe.
type Monitor struct {
	mu         sync.Mutex
	state      State
	matched    int
	message    string
	maxRetries int
	logger     *log.Logger

	// jitter is injectable so tests can pin delays.
	jitter func() time.Duration
}

// NewMonitor creates a monitor with the default retry bound.
// If logger is nil, a default logger writing to stderr is used.
func NewMonitor(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(os.Stderr, "[health] ", log.LstdFlags)
	}
	return &Monitor{
		state:      Idle,
		maxRetries: DefaultMaxRetries,
		logger:     logger,
		jitter:     func() time.Duration { return time.Duration(rand.Int63n(int64(jitterMax))) },
	}
}

// SetMaxRetries overrides the retry bound. Zero disables retries.
func (m *Monitor) SetMaxRetries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxRetries = n
}

// Status returns the current monitor snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Matched: m.matched, Message: m.message}
}

// linearBackOff implements backoff.BackOff with the engine's schedule:
// delay = attempt * base + jitter, stopping after maxRetries attempts.
// BackOff implementations are stateful; always build a fresh one per run.
type linearBackOff struct {
	attempt int
	max     int
	jitter  func() time.Duration
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.max {
		return backoff.Stop
	}
	return time.Duration(b.attempt)*backoffBase + b.jitter()
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// Run executes op under the retry policy. On a transient error it sleeps
// per the backoff schedule, calls reconnect so the caller can discard and
// recreate its adapter handle, and runs op again from the top. NotFound,
// PermissionDenied and Unknown errors are permanent: they stop the run
// immediately. On success the retry counter resets.
func (m *Monitor) Run(ctx context.Context, reconnect func(context.Context) error, op func(context.Context) error) error {
	m.setState(Syncing)

	bo := &linearBackOff{max: m.retryBound(), jitter: m.jitter}
	retrying := false

	attempt := func() error {
		if retrying {
			m.setState(Reconnecting)
			if err := reconnect(ctx); err != nil {
				if store.IsTransient(err) {
					return err
				}
				return backoff.Permanent(err)
			}
			m.setState(Syncing)
		}
		retrying = true

		err := op(ctx)
		if err == nil {
			return nil
		}
		if store.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, delay time.Duration) {
		m.logger.Printf("transient failure, reconnecting in %s: %v", delay.Round(time.Millisecond), err)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), notify)
	if err != nil {
		m.fail(err)
		return err
	}
	m.mu.Lock()
	m.state = Success
	m.message = ""
	m.mu.Unlock()
	return nil
}

// Probe checks the connection with a short-timeout list enumeration.
// Intended to run opportunistically (timer tick, foreground, wake) so a
// dead connection is noticed before a real sync pass needs it. A healthy
// probe resets a Failed monitor back to Idle.
func (m *Monitor) Probe(ctx context.Context, s store.Store) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	if _, err := s.ListAll(ctx); err != nil {
		m.fail(fmt.Errorf("health probe: %w", err))
		return err
	}

	m.mu.Lock()
	if m.state == Failed {
		m.state = Idle
		m.message = ""
	}
	m.mu.Unlock()
	return nil
}

// RecordMatched stores the matched count of a successful pass for the
// status surface.
func (m *Monitor) RecordMatched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matched = n
}

func (m *Monitor) retryBound() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxRetries
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Monitor) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Failed
	m.message = Message(err)
}

// Message translates a classified failure into user-facing status text.
// Adapter-internal error codes are not leaked.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		err = pe.Unwrap()
	}
	switch store.KindOf(err) {
	case store.Transient:
		return "sync failed: retry later"
	case store.PermissionDenied:
		return "permission needed: grant reminders access and run login again"
	default:
		return "sync failed: unrecoverable, restart the app"
	}
}
