// Package identity persists the mapping between local entities and their
// counterparts in the external reminder store.
//
// The mapping is advisory: every entry must be re-confirmed against the
// external store before use, because lists and items can be deleted or
// recreated outside this process. Stale entries are pruned, never reused.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Map holds the persisted local-to-external ID mappings.
type Map struct {
	path string

	// Lists maps groupingID -> externalListID.
	Lists map[string]string `json:"lists"`

	// Items maps taskID -> externalItemID.
	Items map[string]string `json:"items"`
}

// Load reads the identity map from path. A missing file yields an empty
// map; any other read or decode failure is an error.
func Load(path string) (*Map, error) {
	m := &Map{
		path:  path,
		Lists: make(map[string]string),
		Items: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity map: %w", err)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("invalid identity map %s: %w", path, err)
	}
	if m.Lists == nil {
		m.Lists = make(map[string]string)
	}
	if m.Items == nil {
		m.Items = make(map[string]string)
	}
	return m, nil
}

// Save writes the map back to its file atomically, so a crash mid-write
// never leaves a truncated map behind.
func (m *Map) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity map: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(m.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write identity map: %w", err)
	}
	return nil
}

// ListID returns the external list ID mapped to groupingID.
func (m *Map) ListID(groupingID string) (string, bool) {
	id, ok := m.Lists[groupingID]
	return id, ok
}

// ItemID returns the external item ID mapped to taskID.
func (m *Map) ItemID(taskID string) (string, bool) {
	id, ok := m.Items[taskID]
	return id, ok
}

// SetListID records a grouping-to-list mapping.
func (m *Map) SetListID(groupingID, externalListID string) {
	m.Lists[groupingID] = externalListID
}

// SetItemID records a task-to-item mapping.
func (m *Map) SetItemID(taskID, externalItemID string) {
	m.Items[taskID] = externalItemID
}

// DeleteList removes a grouping mapping.
func (m *Map) DeleteList(groupingID string) {
	delete(m.Lists, groupingID)
}

// DeleteItem removes a task mapping.
func (m *Map) DeleteItem(taskID string) {
	delete(m.Items, taskID)
}

// PruneLists drops every grouping mapping whose external list ID is not
// in valid. Returns the number of entries removed.
func (m *Map) PruneLists(valid map[string]bool) int {
	removed := 0
	for groupingID, listID := range m.Lists {
		if !valid[listID] {
			delete(m.Lists, groupingID)
			removed++
		}
	}
	return removed
}

// PruneItems drops every task mapping whose external item ID is not in
// valid. Returns the number of entries removed.
func (m *Map) PruneItems(valid map[string]bool) int {
	removed := 0
	for taskID, itemID := range m.Items {
		if !valid[itemID] {
			delete(m.Items, taskID)
			removed++
		}
	}
	return removed
}
