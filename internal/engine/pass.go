package engine

import (
	"context"
	"fmt"
	"time"

	"remindsync/internal/store"
)

// passState is the in-memory snapshot a pass computes over. It is built
// once from ListAll/ListItems and kept consistent as the pass mutates the
// external store, so later phases never need redundant fetches.
type passState struct {
	store store.Store

	// all external lists, by ID
	lists map[string]store.List

	// managed lists only (title carries the engine prefix), by ID
	managed map[string]store.List

	// items of managed lists, by list ID
	itemsByList map[string][]store.Item

	// item ID -> managed list ID holding it
	itemLoc map[string]string

	// list ID -> item IDs claimed by a local task this pass
	claimed map[string]map[string]bool
}

// runPass executes one full sync sequence. Transient and permission
// failures abort the pass (the health monitor decides what happens
// next); per-task failures of kind Unknown are collected into the result
// and do not abort.
func (e *Engine) runPass(ctx context.Context, groupings []Grouping, tasks []Task) (SyncResult, error) {
	s, err := e.ensureHandle(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	st, err := e.fetchState(ctx, s)
	if err != nil {
		return SyncResult{}, err
	}

	e.validateReferences(st)

	result := SyncResult{ErrorsByTask: make(map[string]string)}

	if err := e.syncGroupings(ctx, st, groupings); err != nil {
		return SyncResult{}, err
	}
	if err := e.syncItems(ctx, st, tasks, &result); err != nil {
		return SyncResult{}, err
	}
	e.collectOrphans(ctx, st, &result)

	// Identity is persisted once, after every phase completed. A pass
	// aborted earlier leaves the file exactly as the previous pass wrote
	// it.
	if err := e.ids.Save(); err != nil {
		return SyncResult{}, fmt.Errorf("failed to persist identity map: %w", err)
	}

	result.Success = true
	return result, nil
}

// fetchState enumerates lists and the items of every managed list.
func (e *Engine) fetchState(ctx context.Context, s store.Store) (*passState, error) {
	lists, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &passState{
		store:       s,
		lists:       make(map[string]store.List),
		managed:     make(map[string]store.List),
		itemsByList: make(map[string][]store.Item),
		itemLoc:     make(map[string]string),
		claimed:     make(map[string]map[string]bool),
	}

	for _, l := range lists {
		st.lists[l.ExternalID] = l
		if e.managed(l) {
			st.managed[l.ExternalID] = l
		}
	}

	for listID := range st.managed {
		items, err := s.ListItems(ctx, listID)
		if err != nil {
			// A list deleted between the two enumerations is stale
			// state, not a failure.
			if store.IsNotFound(err) {
				delete(st.managed, listID)
				delete(st.lists, listID)
				continue
			}
			return nil, err
		}
		st.itemsByList[listID] = items
		st.claimed[listID] = make(map[string]bool)
		for _, item := range items {
			st.itemLoc[item.ExternalID] = listID
		}
	}

	return st, nil
}

// validateReferences prunes identity entries whose external object no
// longer exists, using the snapshots already fetched for this pass.
// Later phases therefore fall back to find-by-title or create-new
// instead of erroring on a dangling identifier.
func (e *Engine) validateReferences(st *passState) {
	validLists := make(map[string]bool, len(st.lists))
	for id := range st.lists {
		validLists[id] = true
	}
	validItems := make(map[string]bool, len(st.itemLoc))
	for id := range st.itemLoc {
		validItems[id] = true
	}

	if n := e.ids.PruneLists(validLists); n > 0 {
		e.logger.Printf("dropped %d stale list mappings", n)
	}
	if n := e.ids.PruneItems(validItems); n > 0 {
		e.logger.Printf("dropped %d stale item mappings", n)
	}
}

// addItem records an item the pass just created or moved into listID.
func (st *passState) addItem(listID string, item store.Item) {
	st.itemsByList[listID] = append(st.itemsByList[listID], item)
	st.itemLoc[item.ExternalID] = listID
	if st.claimed[listID] == nil {
		st.claimed[listID] = make(map[string]bool)
	}
}

// removeItem forgets an item that was moved or deleted out of listID.
func (st *passState) removeItem(listID, itemID string) {
	items := st.itemsByList[listID]
	for i, it := range items {
		if it.ExternalID == itemID {
			st.itemsByList[listID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	delete(st.itemLoc, itemID)
}

// itemIn returns the cached item itemID within listID, if present.
func (st *passState) itemIn(listID, itemID string) (store.Item, bool) {
	for _, it := range st.itemsByList[listID] {
		if it.ExternalID == itemID {
			return it, true
		}
	}
	return store.Item{}, false
}

// addList records a list the pass just created.
func (st *passState) addList(l store.List) {
	st.lists[l.ExternalID] = l
	st.managed[l.ExternalID] = l
	st.itemsByList[l.ExternalID] = nil
	st.claimed[l.ExternalID] = make(map[string]bool)
}

// removeList forgets a list the pass just deleted, along with its items.
func (st *passState) removeList(listID string) {
	for _, it := range st.itemsByList[listID] {
		delete(st.itemLoc, it.ExternalID)
	}
	delete(st.lists, listID)
	delete(st.managed, listID)
	delete(st.itemsByList, listID)
	delete(st.claimed, listID)
}

// equalDue compares due dates at day granularity. Reminder backends
// commonly store date precision only, so comparing full timestamps would
// report drift on every pass.
func equalDue(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
