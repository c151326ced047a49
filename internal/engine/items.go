package engine

import (
	"context"

	"remindsync/internal/store"
)

// syncItems finds-or-creates the external item for every local task,
// relocating items whose grouping changed and overwriting fields
// local-to-external. The external store is never a source of truth for
// field values, only for existence and identity.
func (e *Engine) syncItems(ctx context.Context, st *passState, tasks []Task, result *SyncResult) error {
	var inboxID string

	for _, t := range tasks {
		targetID, err := e.targetList(ctx, st, t, &inboxID)
		if err != nil {
			return err
		}

		if err := e.syncItem(ctx, st, t, targetID, result); err != nil {
			return err
		}
	}
	return nil
}

// targetList resolves the external list a task's item belongs in. Tasks
// without a grouping go to the managed inbox, created on demand.
func (e *Engine) targetList(ctx context.Context, st *passState, t Task, inboxID *string) (string, error) {
	if t.GroupingID != "" {
		if listID, ok := e.ids.ListID(t.GroupingID); ok {
			if _, exists := st.managed[listID]; exists {
				return listID, nil
			}
		}
		// Task references a grouping the snapshot no longer carries.
		// Park it in the inbox rather than dropping it.
		e.logger.Printf("task %s references unknown grouping %s, using inbox", t.ID, t.GroupingID)
	}

	if *inboxID != "" {
		return *inboxID, nil
	}
	id, err := e.ensureInbox(ctx, st)
	if err != nil {
		return "", err
	}
	*inboxID = id
	return id, nil
}

// ensureInbox finds or creates the managed list for ungrouped tasks.
func (e *Engine) ensureInbox(ctx context.Context, st *passState) (string, error) {
	want := e.inboxTitle()
	for listID, l := range st.managed {
		if l.Title == want {
			return listID, nil
		}
	}
	created, err := st.store.CreateList(ctx, want, "")
	if err != nil {
		return "", err
	}
	st.addList(created)
	e.logger.Printf("created inbox list %q", want)
	return created.ExternalID, nil
}

// syncItem reconciles one task. Resolution order: validated identity (a
// move precedes field sync so orphan collection in the old list cannot
// race the still-registered mapping), then exact-title adoption in the
// target list, then create.
func (e *Engine) syncItem(ctx context.Context, st *passState, t Task, targetID string, result *SyncResult) error {
	itemID := e.resolveItemID(t, st)

	// Relocate if the cached identity sits in the wrong managed list.
	if itemID != "" {
		if loc := st.itemLoc[itemID]; loc != targetID {
			moved, err := st.store.MoveItem(ctx, itemID, loc, targetID)
			if err != nil {
				if store.IsNotFound(err) {
					// Stale identity; fall back to adopt-or-create.
					e.ids.DeleteItem(t.ID)
					itemID = ""
				} else if store.IsTransient(err) || store.KindOf(err) == store.PermissionDenied {
					return err
				} else {
					result.ErrorsByTask[t.ID] = err.Error()
					return nil
				}
			} else {
				st.removeItem(loc, itemID)
				st.addItem(targetID, moved)
				itemID = moved.ExternalID
			}
		}
	}

	// Adopt by exact title in the target list (recovers from a lost
	// cache while the external item survives). Already-claimed items are
	// skipped so two equally titled tasks do not collapse onto one item.
	if itemID == "" {
		for _, it := range st.itemsByList[targetID] {
			if it.Title == t.Title && !st.claimed[targetID][it.ExternalID] {
				itemID = it.ExternalID
				break
			}
		}
	}

	desired := store.Item{
		ExternalID:     itemID,
		ListExternalID: targetID,
		Title:          t.Title,
		Notes:          desiredNotes(t),
		IsCompleted:    t.IsCompleted,
		DueAt:          t.DueAt,
	}

	stored, changed, err := e.applyItem(ctx, st, desired)
	if err != nil {
		if store.IsNotFound(err) {
			// The resolved item vanished mid-pass; create a fresh one.
			e.ids.DeleteItem(t.ID)
			desired.ExternalID = ""
			stored, changed, err = e.applyItem(ctx, st, desired)
		}
		if err != nil {
			if store.IsTransient(err) || store.KindOf(err) == store.PermissionDenied {
				return err
			}
			result.ErrorsByTask[t.ID] = err.Error()
			return nil
		}
	}

	st.claimed[targetID][stored.ExternalID] = true
	result.Matched++

	prev, had := e.ids.ItemID(t.ID)
	e.ids.SetItemID(t.ID, stored.ExternalID)
	if !had || prev != stored.ExternalID {
		e.emitMapping(KindTask, t.ID, stored.ExternalID)
	}
	if changed {
		e.logger.Printf("synced task %s -> item %s", t.ID, stored.ExternalID)
	}
	return nil
}

// resolveItemID returns the validated external item ID for a task, if
// any. The snapshot's cached pointer is honored as a fallback when the
// identity map lost the entry but the item still exists in a managed
// list.
func (e *Engine) resolveItemID(t Task, st *passState) string {
	if itemID, ok := e.ids.ItemID(t.ID); ok {
		if _, exists := st.itemLoc[itemID]; exists {
			return itemID
		}
	}
	if t.ExternalItemID != "" {
		if _, exists := st.itemLoc[t.ExternalItemID]; exists {
			return t.ExternalItemID
		}
	}
	return ""
}

// applyItem writes desired to the external store, skipping the call when
// the stored fields already match so an unchanged snapshot produces zero
// external mutations.
func (e *Engine) applyItem(ctx context.Context, st *passState, desired store.Item) (store.Item, bool, error) {
	if desired.ExternalID != "" {
		if existing, ok := st.itemIn(desired.ListExternalID, desired.ExternalID); ok {
			if itemFieldsEqual(existing, desired) {
				return existing, false, nil
			}
		}
	}

	stored, err := st.store.UpsertItem(ctx, desired)
	if err != nil {
		return store.Item{}, false, err
	}
	if desired.ExternalID == "" {
		st.addItem(desired.ListExternalID, stored)
	} else {
		st.removeItem(desired.ListExternalID, desired.ExternalID)
		st.addItem(desired.ListExternalID, stored)
	}
	return stored, true, nil
}

func itemFieldsEqual(a, b store.Item) bool {
	return a.Title == b.Title &&
		a.Notes == b.Notes &&
		a.IsCompleted == b.IsCompleted &&
		equalDue(a.DueAt, b.DueAt)
}
