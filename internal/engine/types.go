package engine

import (
	"errors"
	"time"
)

// ErrBusy is returned by Sync when a pass is already running. Callers
// should debounce and try again rather than queue.
var ErrBusy = errors.New("sync already in progress")

// OriginTag records where a task came from.
type OriginTag string

const (
	// OriginManual marks a task the user created directly.
	OriginManual OriginTag = "manual"
	// OriginEmail marks a task derived from an ingested email.
	OriginEmail OriginTag = "email"
)

// OriginMeta carries provenance for email-derived tasks.
type OriginMeta struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
}

// Grouping is a local task grouping. It maps 1:1 to an external list.
type Grouping struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ColorHex  string `json:"color_hex,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// Task is the sync-relevant projection of a local task.
//
// ExternalItemID is a cached pointer into the external store. It is
// advisory, not authoritative: the store is mutable outside this engine,
// so the pointer is re-validated every pass.
type Task struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Notes          string      `json:"notes,omitempty"`
	IsCompleted    bool        `json:"is_completed"`
	DueAt          *time.Time  `json:"due_at,omitempty"`
	GroupingID     string      `json:"grouping_id,omitempty"`
	ExternalItemID string      `json:"external_item_id,omitempty"`
	Origin         OriginTag   `json:"origin,omitempty"`
	OriginMeta     *OriginMeta `json:"origin_meta,omitempty"`
}

// EntityKind distinguishes mapping events.
type EntityKind int

const (
	// KindGrouping is a grouping-to-list mapping.
	KindGrouping EntityKind = iota
	// KindTask is a task-to-item mapping.
	KindTask
)

// MappingEvent is emitted when the engine adopts or creates an external
// identifier. The caller's persistence layer applies it so future
// snapshots carry the now-valid external ID.
type MappingEvent struct {
	Kind       EntityKind
	LocalID    string
	ExternalID string
}

// SyncResult reports the outcome of one sync pass.
type SyncResult struct {
	// Success is true when the pass completed, even with per-task errors.
	Success bool

	// Matched counts tasks reconciled to an external item this pass.
	Matched int

	// ErrorsByTask collects per-task failures that did not abort the
	// pass, keyed by task ID.
	ErrorsByTask map[string]string

	// OrphansRemoved counts external items deleted by orphan collection.
	OrphansRemoved int
}
