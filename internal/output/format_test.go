package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"remindsync/internal/engine"
	"remindsync/internal/output"
)

func TestFormatSnapshotGroupsAndInbox(t *testing.T) {
	groupings := []engine.Grouping{
		{ID: "g2", Title: "Errands", SortOrder: 1},
		{ID: "g1", Title: "Bills", SortOrder: 0},
	}
	tasks := []engine.Task{
		{ID: "t-1", Title: "Pay rent", GroupingID: "g1"},
		{ID: "t-2", Title: "Post letter", GroupingID: "g2"},
		{ID: "t-3", Title: "Buy milk"},
	}

	var buf bytes.Buffer
	output.FormatSnapshot(&buf, groupings, tasks, false)
	got := buf.String()

	expected := "------------\n" +
		"Bills\n" +
		"------------\n" +
		"  t-1       Pay rent\n" +
		"------------\n" +
		"Errands\n" +
		"------------\n" +
		"  t-2       Post letter\n" +
		"------------\n" +
		"Inbox\n" +
		"------------\n" +
		"  t-3       Buy milk\n"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestFormatSnapshotHidesCompleted(t *testing.T) {
	tasks := []engine.Task{
		{ID: "t-1", Title: "Done thing", IsCompleted: true},
		{ID: "t-2", Title: "Open thing"},
	}

	var buf bytes.Buffer
	output.FormatSnapshot(&buf, nil, tasks, false)
	if strings.Contains(buf.String(), "Done thing") {
		t.Errorf("completed task should be hidden: %q", buf.String())
	}

	buf.Reset()
	output.FormatSnapshot(&buf, nil, tasks, true)
	got := buf.String()
	if !strings.Contains(got, "Done thing") || !strings.Contains(got, "[done]") {
		t.Errorf("expected completed task with marker in all view: %q", got)
	}
}

func TestFormatSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	output.FormatSnapshot(&buf, []engine.Grouping{{ID: "g1", Title: "Bills"}}, nil, false)
	if buf.String() != "no tasks\n" {
		t.Errorf("expected placeholder, got %q", buf.String())
	}
}

func TestFormatSnapshotDueDate(t *testing.T) {
	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	tasks := []engine.Task{{ID: "t-1", Title: "Pay rent", DueAt: &due}}

	var buf bytes.Buffer
	output.FormatSnapshot(&buf, nil, tasks, false)
	if !strings.Contains(buf.String(), "due 2026-03-14") {
		t.Errorf("expected due date, got %q", buf.String())
	}
}

func TestFormatSnapshotUntitled(t *testing.T) {
	tasks := []engine.Task{{ID: "t-1", Title: "  "}}

	var buf bytes.Buffer
	output.FormatSnapshot(&buf, nil, tasks, false)
	if !strings.Contains(buf.String(), "(untitled)") {
		t.Errorf("expected placeholder title, got %q", buf.String())
	}
}

func TestFormatSnapshotNewlinesFlattened(t *testing.T) {
	tasks := []engine.Task{{ID: "t-1", Title: "line1\nline2"}}

	var buf bytes.Buffer
	output.FormatSnapshot(&buf, nil, tasks, false)
	if !strings.Contains(buf.String(), "line1 line2") {
		t.Errorf("expected flattened title, got %q", buf.String())
	}
}

func TestFormatGrouping(t *testing.T) {
	var buf bytes.Buffer
	output.FormatGrouping(&buf, engine.Grouping{Title: "Bills", ColorHex: "#ff0000"}, 3)
	if buf.String() != "Bills  (3 open)  #ff0000\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	output.FormatGrouping(&buf, engine.Grouping{Title: "Errands"}, 0)
	if buf.String() != "Errands  (0 open)\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFormatSyncResult(t *testing.T) {
	cases := []struct {
		matched, orphans, leaks int
		want                    string
	}{
		{2, 0, 0, "synced 2 task(s)\n"},
		{2, 1, 0, "synced 2 task(s), removed 1 orphan(s)\n"},
		{0, 0, 3, "synced 0 task(s), recovered 3 leaked item(s)\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		output.FormatSyncResult(&buf, tc.matched, tc.orphans, tc.leaks)
		if buf.String() != tc.want {
			t.Errorf("FormatSyncResult(%d,%d,%d) = %q, want %q", tc.matched, tc.orphans, tc.leaks, buf.String(), tc.want)
		}
	}
}
