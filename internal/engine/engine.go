// Package engine reconciles local groupings and tasks with lists and
// items in the external reminder store.
//
// The caller supplies a complete snapshot of groupings and tasks each
// pass; the engine does not take incremental diffs. A pass runs in
// phases: reference validation, grouping sync, item sync, orphan
// collection, identity persist. Every phase is idempotent given a
// consistent identity map, so the health monitor can safely restart a
// pass from the top after a transient failure.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"remindsync/internal/health"
	"remindsync/internal/identity"
	"remindsync/internal/store"
)

const (
	// DefaultManagedPrefix namespaces list titles so the engine can tell
	// its own lists from the user's. Only prefixed lists are ever
	// eligible for orphan collection or deletion.
	DefaultManagedPrefix = "[Remind] "

	// inboxName is the managed list for ungrouped tasks.
	inboxName = "Inbox"
)

// Engine keeps the external reminder store consistent with local state.
// All mutable engine state is confined to the running pass; Sync enforces
// single-flight, so no two passes ever interleave.
type Engine struct {
	factory store.Factory
	ids     *identity.Map
	monitor *health.Monitor
	logger  *log.Logger
	prefix  string

	onMapping func(MappingEvent)

	// handle is the current adapter connection. Never assumed valid
	// across passes; reconnect discards it and the next use reacquires
	// through the factory.
	handle store.Store

	syncMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Nil means stderr default.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithManagedPrefix overrides the managed list title prefix.
func WithManagedPrefix(prefix string) Option {
	return func(e *Engine) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

// WithMonitor substitutes the health monitor (for tests and for callers
// that observe the status surface).
func WithMonitor(m *health.Monitor) Option {
	return func(e *Engine) {
		if m != nil {
			e.monitor = m
		}
	}
}

// OnMapping registers the callback invoked whenever the engine adopts or
// creates an external identifier. The caller's persistence layer should
// apply the event so future snapshots include the ID.
func OnMapping(fn func(MappingEvent)) Option {
	return func(e *Engine) { e.onMapping = fn }
}

// New creates an engine backed by factory, with identifiers persisted in
// ids. The identity map is written once per completed pass, never
// mid-phase.
func New(factory store.Factory, ids *identity.Map, opts ...Option) *Engine {
	e := &Engine{
		factory: factory,
		ids:     ids,
		logger:  log.New(os.Stderr, "[sync] ", log.LstdFlags),
		prefix:  DefaultManagedPrefix,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.monitor == nil {
		e.monitor = health.NewMonitor(e.logger)
	}
	return e
}

// Status exposes the health monitor snapshot for the status surface.
func (e *Engine) Status() health.Status {
	return e.monitor.Status()
}

// Probe opportunistically checks the connection (short timeout); a
// healthy probe resets a failed monitor before the next real pass.
func (e *Engine) Probe(ctx context.Context) error {
	s, err := e.ensureHandle(ctx)
	if err != nil {
		return err
	}
	return e.monitor.Probe(ctx, s)
}

// Sync reconciles the snapshot with the external store and returns a
// terminal result. A call while another sync is in flight is rejected
// immediately with ErrBusy, never queued.
func (e *Engine) Sync(ctx context.Context, groupings []Grouping, tasks []Task) (SyncResult, error) {
	if !e.syncMu.TryLock() {
		return SyncResult{}, ErrBusy
	}
	defer e.syncMu.Unlock()

	var result SyncResult
	err := e.monitor.Run(ctx, e.reconnect, func(ctx context.Context) error {
		r, err := e.runPass(ctx, groupings, tasks)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	e.monitor.RecordMatched(result.Matched)
	return result, nil
}

// RecoverLeaks sweeps unmanaged lists for items carrying the provenance
// marker and relocates them into the managed inbox. Best-effort: nothing
// in an unmanaged list is ever edited or deleted, and per-item failures
// are logged and skipped.
func (e *Engine) RecoverLeaks(ctx context.Context) (int, error) {
	if !e.syncMu.TryLock() {
		return 0, ErrBusy
	}
	defer e.syncMu.Unlock()

	return e.recoverLeaks(ctx)
}

// reconnect discards the adapter handle so the next use reacquires a
// fresh one. Called by the health monitor between retry attempts.
func (e *Engine) reconnect(ctx context.Context) error {
	e.handle = nil
	_, err := e.ensureHandle(ctx)
	return err
}

func (e *Engine) ensureHandle(ctx context.Context) (store.Store, error) {
	if e.handle != nil {
		return e.handle, nil
	}
	s, err := e.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reminder store: %w", err)
	}
	e.handle = s
	return s, nil
}

// managed reports whether an external list belongs to this engine.
func (e *Engine) managed(l store.List) bool {
	return strings.HasPrefix(l.Title, e.prefix)
}

// managedTitle renders the external title for a grouping title.
func (e *Engine) managedTitle(title string) string {
	return e.prefix + title
}

func (e *Engine) inboxTitle() string {
	return e.managedTitle(inboxName)
}

func (e *Engine) emitMapping(kind EntityKind, localID, externalID string) {
	if e.onMapping != nil {
		e.onMapping(MappingEvent{Kind: kind, LocalID: localID, ExternalID: externalID})
	}
}
