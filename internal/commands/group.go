package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"remindsync/internal/config"
	"remindsync/internal/exitcode"
	"remindsync/internal/localtasks"
	"remindsync/internal/output"
)

func init() {
	Register(&GroupCmd{})
	Register(&GroupsCmd{})
	Register(&RmGroupCmd{})
}

// GroupCmd creates a grouping.
type GroupCmd struct {
	colorHex string
}

func (c *GroupCmd) Name() string      { return "group" }
func (c *GroupCmd) Aliases() []string { return nil }
func (c *GroupCmd) Synopsis() string  { return "Create a group" }
func (c *GroupCmd) Usage() string     { return "remindsync group [--color <hex>] <title...>" }
func (c *GroupCmd) NeedsAuth() bool   { return false }

func (c *GroupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.colorHex, "color", "", "")
}

func (c *GroupCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	g := local.AddGrouping(title, c.colorHex)
	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "added %s\n", g.ID)
	}
	return exitcode.Success
}

// GroupsCmd lists groupings.
type GroupsCmd struct{}

func (c *GroupsCmd) Name() string      { return "groups" }
func (c *GroupsCmd) Aliases() []string { return nil }
func (c *GroupsCmd) Synopsis() string  { return "Show groups" }
func (c *GroupsCmd) Usage() string     { return "remindsync groups" }
func (c *GroupsCmd) NeedsAuth() bool   { return false }

func (c *GroupsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *GroupsCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	for _, g := range local.Snap.Groupings {
		output.FormatGrouping(out, g, countTasks(local, g.ID))
	}
	return exitcode.Success
}

func countTasks(local *localtasks.Store, groupingID string) int {
	n := 0
	for _, t := range local.Snap.Tasks {
		if t.GroupingID == groupingID && !t.IsCompleted {
			n++
		}
	}
	return n
}

// RmGroupCmd deletes a grouping. The external list is removed on the
// next sync pass; the group's tasks move to the inbox.
type RmGroupCmd struct{}

func (c *RmGroupCmd) Name() string      { return "rmgroup" }
func (c *RmGroupCmd) Aliases() []string { return nil }
func (c *RmGroupCmd) Synopsis() string  { return "Delete a group" }
func (c *RmGroupCmd) Usage() string     { return "remindsync rmgroup <group-name>" }
func (c *RmGroupCmd) NeedsAuth() bool   { return false }

func (c *RmGroupCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmGroupCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: group name required")
		return exitcode.UserError
	}

	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	g, err := local.FindGrouping(args[0])
	if err != nil {
		if err == localtasks.ErrAmbiguous {
			fmt.Fprintf(errOut, "error: ambiguous group name: %s\n", args[0])
		} else {
			fmt.Fprintf(errOut, "error: group not found: %s\n", args[0])
		}
		return exitcode.UserError
	}

	local.RemoveGrouping(g.ID)
	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
