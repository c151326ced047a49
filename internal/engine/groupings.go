package engine

import (
	"context"
	"sort"

	"remindsync/internal/store"
)

// syncGroupings ensures one managed external list exists per local
// grouping, then deletes lists for groupings removed since the last run.
func (e *Engine) syncGroupings(ctx context.Context, st *passState, groupings []Grouping) error {
	ordered := make([]Grouping, len(groupings))
	copy(ordered, groupings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	present := make(map[string]bool, len(ordered))
	for _, g := range ordered {
		present[g.ID] = true
		if err := e.syncGrouping(ctx, st, g); err != nil {
			return err
		}
	}

	return e.deleteRemovedGroupings(ctx, st, present)
}

// syncGrouping resolves the external list for one grouping: validated
// mapping first, then exact managed-title match, then create. Identity
// is by ID once established; a rename collision that yields duplicate
// external titles is tolerated.
func (e *Engine) syncGrouping(ctx context.Context, st *passState, g Grouping) error {
	want := e.managedTitle(g.Title)

	// 1. Validated mapping.
	if listID, ok := e.ids.ListID(g.ID); ok {
		l, exists := st.managed[listID]
		if exists {
			if l.Title != want || l.ColorHex != g.ColorHex {
				if err := e.updateList(ctx, st, listID, want, g.ColorHex); err != nil {
					return err
				}
			}
			return nil
		}
		// Mapped list exists but lost its prefix: the user renamed it.
		// It is no longer ours to manage; fall through and re-derive.
		e.ids.DeleteList(g.ID)
	}

	// 2. Adopt a managed list with the exact expected title. Lists
	// already mapped to a grouping are not candidates: duplicate local
	// titles get one external list each, created in sort order.
	claimed := make(map[string]bool, len(e.ids.Lists))
	for _, listID := range e.ids.Lists {
		claimed[listID] = true
	}
	for listID, l := range st.managed {
		if l.Title == want && !claimed[listID] {
			e.ids.SetListID(g.ID, listID)
			e.emitMapping(KindGrouping, g.ID, listID)
			if l.ColorHex != g.ColorHex {
				if err := e.updateList(ctx, st, listID, want, g.ColorHex); err != nil {
					return err
				}
			}
			return nil
		}
	}

	// 3. Create.
	created, err := st.store.CreateList(ctx, want, g.ColorHex)
	if err != nil {
		return err
	}
	st.addList(created)
	e.ids.SetListID(g.ID, created.ExternalID)
	e.emitMapping(KindGrouping, g.ID, created.ExternalID)
	e.logger.Printf("created list %q for grouping %s", want, g.ID)
	return nil
}

func (e *Engine) updateList(ctx context.Context, st *passState, listID, title, colorHex string) error {
	if err := st.store.UpdateList(ctx, listID, title, colorHex); err != nil {
		if store.IsNotFound(err) {
			// Deleted out from under us mid-pass; the next pass
			// re-derives it.
			st.removeList(listID)
			return nil
		}
		return err
	}
	l := st.lists[listID]
	l.Title = title
	l.ColorHex = colorHex
	st.lists[listID] = l
	st.managed[listID] = l
	return nil
}

// deleteRemovedGroupings drops external lists whose grouping is gone from
// the snapshot. Best-effort: a delete failure is logged, the mapping is
// kept, and the next pass tries again.
func (e *Engine) deleteRemovedGroupings(ctx context.Context, st *passState, present map[string]bool) error {
	inUse := make(map[string]bool, len(e.ids.Lists))
	for groupingID, listID := range e.ids.Lists {
		if present[groupingID] {
			inUse[listID] = true
		}
	}
	for groupingID, listID := range e.ids.Lists {
		if present[groupingID] {
			continue
		}
		if inUse[listID] {
			// A surviving grouping still maps to this list. Drop only
			// the dead entry.
			e.ids.DeleteList(groupingID)
			continue
		}
		if _, ok := st.managed[listID]; ok {
			if err := st.store.DeleteList(ctx, listID); err != nil && !store.IsNotFound(err) {
				if store.IsTransient(err) {
					return err
				}
				e.logger.Printf("failed to delete list %s for removed grouping %s: %v", listID, groupingID, err)
				continue
			}
			// The list's items went with it; clear their mappings too.
			for taskID, itemID := range e.ids.Items {
				if st.itemLoc[itemID] == listID {
					e.ids.DeleteItem(taskID)
				}
			}
			st.removeList(listID)
			e.logger.Printf("deleted list for removed grouping %s", groupingID)
		}
		e.ids.DeleteList(groupingID)
	}
	return nil
}
