package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"remindsync/internal/config"
	"remindsync/internal/engine"
	"remindsync/internal/exitcode"
	"remindsync/internal/localtasks"
	"remindsync/internal/store"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	groupName string
	due       string
	notes     string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "remindsync add [--group <name>] [--due <when>] [--notes <text>] <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return false }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.groupName, "group", "", "")
	fs.StringVar(&c.groupName, "g", "", "")
	fs.StringVar(&c.due, "due", "", "")
	fs.StringVar(&c.notes, "notes", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
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

	task := engine.Task{Title: title, Notes: c.notes}

	if c.groupName != "" {
		g, err := local.FindGrouping(c.groupName)
		if err != nil {
			if err == localtasks.ErrAmbiguous {
				fmt.Fprintf(errOut, "error: ambiguous group name: %s\n", c.groupName)
			} else {
				fmt.Fprintf(errOut, "error: group not found: %s\n", c.groupName)
			}
			return exitcode.UserError
		}
		task.GroupingID = g.ID
	}

	if c.due != "" {
		due, err := parseDue(c.due, time.Now())
		if err != nil {
			fmt.Fprintf(errOut, "error: cannot parse due date: %s\n", c.due)
			return exitcode.UserError
		}
		task.DueAt = due
	}

	task = local.AddTask(task)
	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "added %s\n", task.ID)
	}
	return exitcode.Success
}

// parseDue parses a natural-language due expression.
func parseDue(text string, now time.Time) (*time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(text, now)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("no date in %q", text)
	}
	due := result.Time
	return &due, nil
}

// saveLocal persists the snapshot, creating the config dir on first use.
func saveLocal(cfg *config.Config, local *localtasks.Store) error {
	if err := cfg.EnsureDir(); err != nil {
		return err
	}
	return local.Save()
}

// storeFactory adapts the command-level factory to the engine's.
func storeFactory(cfg *config.Config, factory StoreFactory) store.Factory {
	return func(ctx context.Context) (store.Store, error) {
		return factory(ctx, cfg)
	}
}
