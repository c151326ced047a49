// Package store defines the backend-agnostic contract for the external
// reminder store. All calls to the out-of-process service go through this
// interface. The engine never imports a backend SDK directly.
package store

import "context"

// Store is the external reminder store adapter.
//
// Every call is potentially blocking and fallible; implementations must
// carry an explicit per-call timeout and classify failures into an
// *Error (see errors.go). A call that neither succeeds nor fails within
// the timeout is reported as Transient.
//
// Identifiers handed out by a Store are advisory once returned: the
// external service is mutable outside this process, so callers must
// re-confirm existence before relying on a cached ID.
type Store interface {
	// ListAll enumerates every list in the external store, managed or not.
	ListAll(ctx context.Context) ([]List, error)

	// CreateList creates a list with the given title and optional color.
	CreateList(ctx context.Context, title, colorHex string) (List, error)

	// UpdateList renames and/or recolors a list.
	UpdateList(ctx context.Context, listID, title, colorHex string) error

	// DeleteList deletes a list and everything in it.
	DeleteList(ctx context.Context, listID string) error

	// ListItems enumerates the items of one list.
	ListItems(ctx context.Context, listID string) ([]Item, error)

	// UpsertItem creates the item if ExternalID is empty, otherwise
	// patches the existing item's fields. Returns the stored item with
	// its ExternalID populated.
	UpsertItem(ctx context.Context, item Item) (Item, error)

	// MoveItem relocates an item between lists and returns its new ID.
	// Backends without a native cross-list move may reinsert and delete;
	// the returned ID supersedes the old one either way.
	MoveItem(ctx context.Context, itemID, fromListID, toListID string) (Item, error)

	// DeleteItem removes an item from a list.
	DeleteItem(ctx context.Context, listID, itemID string) error
}

// Factory creates a fresh Store handle.
//
// The health monitor recovers from transient failures by discarding the
// current handle and asking the factory for a new one, so factories must
// be safe to call repeatedly.
type Factory func(ctx context.Context) (Store, error)
