// Package localtasks owns the local snapshot of groupings and tasks that
// the sync engine reconciles against the external store. The snapshot is
// one JSON file under the config dir, written atomically.
package localtasks

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"remindsync/internal/engine"
)

// ErrNotFound is returned when a task or grouping reference matches
// nothing.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned when a reference matches more than one entry.
var ErrAmbiguous = errors.New("ambiguous")

// Snapshot is the complete local state handed to the engine each sync.
type Snapshot struct {
	Groupings []engine.Grouping `json:"groupings"`
	Tasks     []engine.Task     `json:"tasks"`
}

// Store loads, mutates and persists the snapshot file.
type Store struct {
	path string
	Snap Snapshot
}

// Load reads the snapshot from path. A missing file yields an empty
// snapshot.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.Snap); err != nil {
		return nil, fmt.Errorf("invalid task snapshot %s: %w", path, err)
	}
	return s, nil
}

// Save writes the snapshot back atomically.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(&s.Snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task snapshot: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write task snapshot: %w", err)
	}
	return nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// AddGrouping appends a grouping with the next sort order.
func (s *Store) AddGrouping(title, colorHex string) engine.Grouping {
	order := 0
	for _, g := range s.Snap.Groupings {
		if g.SortOrder >= order {
			order = g.SortOrder + 1
		}
	}
	g := engine.Grouping{
		ID:        "g-" + newID(),
		Title:     title,
		ColorHex:  colorHex,
		SortOrder: order,
	}
	s.Snap.Groupings = append(s.Snap.Groupings, g)
	return g
}

// FindGrouping resolves a grouping by exact title (case-insensitive) or
// ID prefix.
func (s *Store) FindGrouping(ref string) (engine.Grouping, error) {
	refLower := strings.ToLower(strings.TrimSpace(ref))
	var matches []engine.Grouping
	for _, g := range s.Snap.Groupings {
		if strings.ToLower(g.Title) == refLower || strings.HasPrefix(g.ID, ref) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		return engine.Grouping{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return engine.Grouping{}, ErrAmbiguous
	}
}

// RemoveGrouping deletes a grouping. Its tasks become ungrouped; the
// engine parks them in the inbox on the next sync.
func (s *Store) RemoveGrouping(id string) bool {
	for i, g := range s.Snap.Groupings {
		if g.ID == id {
			s.Snap.Groupings = append(s.Snap.Groupings[:i], s.Snap.Groupings[i+1:]...)
			for j := range s.Snap.Tasks {
				if s.Snap.Tasks[j].GroupingID == id {
					s.Snap.Tasks[j].GroupingID = ""
				}
			}
			return true
		}
	}
	return false
}

// AddTask appends a task, assigning an ID if the caller left it empty.
func (s *Store) AddTask(t engine.Task) engine.Task {
	if t.ID == "" {
		t.ID = "t-" + newID()
	}
	if t.Origin == "" {
		t.Origin = engine.OriginManual
	}
	s.Snap.Tasks = append(s.Snap.Tasks, t)
	return t
}

// FindTask resolves a task by ID prefix or exact title (case-insensitive).
func (s *Store) FindTask(ref string) (engine.Task, error) {
	refLower := strings.ToLower(strings.TrimSpace(ref))
	var matches []engine.Task
	for _, t := range s.Snap.Tasks {
		if strings.HasPrefix(t.ID, ref) || strings.ToLower(t.Title) == refLower {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return engine.Task{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return engine.Task{}, ErrAmbiguous
	}
}

// CompleteTask marks a task completed. The external item catches up on
// the next sync pass.
func (s *Store) CompleteTask(id string) bool {
	for i := range s.Snap.Tasks {
		if s.Snap.Tasks[i].ID == id {
			s.Snap.Tasks[i].IsCompleted = true
			return true
		}
	}
	return false
}

// RemoveTask deletes a task from the snapshot. Its external item is
// removed by orphan collection on the next sync pass.
func (s *Store) RemoveTask(id string) bool {
	for i := range s.Snap.Tasks {
		if s.Snap.Tasks[i].ID == id {
			s.Snap.Tasks = append(s.Snap.Tasks[:i], s.Snap.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyMapping records an external identifier the engine adopted or
// created, so future snapshots carry it.
func (s *Store) ApplyMapping(ev engine.MappingEvent) {
	if ev.Kind != engine.KindTask {
		return
	}
	for i := range s.Snap.Tasks {
		if s.Snap.Tasks[i].ID == ev.LocalID {
			s.Snap.Tasks[i].ExternalItemID = ev.ExternalID
			return
		}
	}
}

func newID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand does not fail on supported platforms
	}
	return hex.EncodeToString(b[:])
}
