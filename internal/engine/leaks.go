package engine

import (
	"context"
)

// recoverLeaks finds items in unmanaged lists whose notes carry the
// provenance marker (presumed created by an earlier engine defect or
// moved by the user) and relocates them into the managed inbox. Nothing
// in an unmanaged list is ever edited or deleted; unmarked items are
// never touched.
func (e *Engine) recoverLeaks(ctx context.Context) (int, error) {
	s, err := e.ensureHandle(ctx)
	if err != nil {
		return 0, err
	}

	st, err := e.fetchState(ctx, s)
	if err != nil {
		return 0, err
	}

	var inboxID string
	recovered := 0

	for listID, l := range st.lists {
		if _, ok := st.managed[listID]; ok {
			continue
		}
		items, err := s.ListItems(ctx, listID)
		if err != nil {
			e.logger.Printf("leak sweep: cannot read list %q: %v", l.Title, err)
			continue
		}
		for _, item := range items {
			if !HasProvenance(item.Notes) {
				continue
			}
			if inboxID == "" {
				inboxID, err = e.ensureInbox(ctx, st)
				if err != nil {
					return recovered, err
				}
			}
			if _, err := s.MoveItem(ctx, item.ExternalID, listID, inboxID); err != nil {
				e.logger.Printf("leak sweep: cannot recover item %s from %q: %v", item.ExternalID, l.Title, err)
				continue
			}
			recovered++
			e.logger.Printf("recovered leaked item %q from list %q", item.Title, l.Title)
		}
	}
	return recovered, nil
}
