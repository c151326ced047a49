package engine

import (
	"context"

	"remindsync/internal/store"
)

// collectOrphans deletes items in managed lists that no local task
// claimed this pass. Runs strictly after item sync so fresh creates and
// moves are never misclassified. Unmanaged lists are never touched.
// Per-item failures are logged and skipped, not fatal.
func (e *Engine) collectOrphans(ctx context.Context, st *passState, result *SyncResult) {
	for listID, items := range st.itemsByList {
		claimed := st.claimed[listID]
		for _, item := range items {
			if claimed[item.ExternalID] {
				continue
			}
			if err := st.store.DeleteItem(ctx, listID, item.ExternalID); err != nil {
				if store.IsNotFound(err) {
					// Already gone; nothing was removed.
					continue
				}
				e.logger.Printf("failed to delete orphan item %s in list %s: %v", item.ExternalID, listID, err)
				continue
			}
			result.OrphansRemoved++
		}
	}
	if result.OrphansRemoved > 0 {
		e.logger.Printf("removed %d orphaned items", result.OrphansRemoved)
	}
}
