package engine

import (
	"fmt"
	"strings"
)

// provenanceMarker is the single reserved, versioned tag that identifies
// notes written by this engine. Leak recovery keys on an exact substring
// match of this marker and nothing else.
const provenanceMarker = "[remindsync:v1]"

// provenanceFooter renders the idempotent footer appended to the notes of
// email-derived items.
func provenanceFooter(sender, subject string) string {
	return fmt.Sprintf("%s from: %s | subject: %s", provenanceMarker, sender, subject)
}

// HasProvenance reports whether notes carry the engine's marker.
func HasProvenance(notes string) bool {
	return strings.Contains(notes, provenanceMarker)
}

// desiredNotes computes the external notes for a task. The footer is
// appended at most once; notes that already carry the marker are left
// alone so repeated syncs do not stack footers.
func desiredNotes(t Task) string {
	notes := t.Notes
	if t.Origin != OriginEmail || t.OriginMeta == nil {
		return notes
	}
	if HasProvenance(notes) {
		return notes
	}
	footer := provenanceFooter(t.OriginMeta.Sender, t.OriginMeta.Subject)
	if notes == "" {
		return footer
	}
	return notes + "\n\n" + footer
}
