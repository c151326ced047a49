// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"remindsync/internal/engine"
)

const (
	// SectionSeparator is the separator line for group sections.
	SectionSeparator = "------------"

	dueLayout = "2006-01-02"
)

// FormatSnapshot writes the grouped task view. Tasks appear under their
// grouping in sort order, ungrouped tasks under an "Inbox" section at the
// end. Completed tasks are hidden unless all is set.
func FormatSnapshot(w io.Writer, groupings []engine.Grouping, tasks []engine.Task, all bool) {
	byGroup := make(map[string][]engine.Task)
	for _, t := range tasks {
		if t.IsCompleted && !all {
			continue
		}
		byGroup[t.GroupingID] = append(byGroup[t.GroupingID], t)
	}

	ordered := make([]engine.Grouping, len(groupings))
	copy(ordered, groupings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	empty := true
	for _, g := range ordered {
		section := byGroup[g.ID]
		if len(section) == 0 {
			continue
		}
		empty = false
		formatSectionHeader(w, g.Title)
		for _, t := range section {
			formatTaskLine(w, t)
		}
	}

	if inbox := byGroup[""]; len(inbox) > 0 {
		empty = false
		formatSectionHeader(w, "Inbox")
		for _, t := range inbox {
			formatTaskLine(w, t)
		}
	}

	if empty {
		fmt.Fprintln(w, "no tasks")
	}
}

// FormatGrouping writes one line for the groups command.
// Format: "{TITLE}  ({N} open)" with the color appended when set.
func FormatGrouping(w io.Writer, g engine.Grouping, openCount int) {
	line := fmt.Sprintf("%s  (%d open)", normalizeTitle(g.Title), openCount)
	if g.ColorHex != "" {
		line += "  " + g.ColorHex
	}
	fmt.Fprintln(w, line)
}

// FormatSyncResult writes the one-line sync summary.
func FormatSyncResult(w io.Writer, matched, orphansRemoved, leaksRecovered int) {
	line := fmt.Sprintf("synced %d task(s)", matched)
	if orphansRemoved > 0 {
		line += fmt.Sprintf(", removed %d orphan(s)", orphansRemoved)
	}
	if leaksRecovered > 0 {
		line += fmt.Sprintf(", recovered %d leaked item(s)", leaksRecovered)
	}
	fmt.Fprintln(w, line)
}

func formatSectionHeader(w io.Writer, title string) {
	fmt.Fprintln(w, SectionSeparator)
	fmt.Fprintln(w, normalizeTitle(title))
	fmt.Fprintln(w, SectionSeparator)
}

// formatTaskLine writes a single task.
// Format: "  {ID:<8}  {TITLE}" with "[done]" and "due {DATE}" suffixes.
func formatTaskLine(w io.Writer, t engine.Task) {
	line := fmt.Sprintf("  %-8s  %s", t.ID, normalizeTitle(t.Title))
	if t.IsCompleted {
		line += "  [done]"
	}
	if t.DueAt != nil {
		line += "  due " + t.DueAt.Format(dueLayout)
	}
	fmt.Fprintln(w, line)
}

// normalizeTitle normalizes a title for display.
// Empty or whitespace-only titles become "(untitled)", newlines become
// spaces.
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
