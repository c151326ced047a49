package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"remindsync/internal/config"
	"remindsync/internal/engine"
	"remindsync/internal/exitcode"
	"remindsync/internal/localtasks"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. The external item catches up on
// the next sync pass; completion is not pushed synchronously.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Mark a task completed" }
func (c *DoneCmd) Usage() string     { return "remindsync done <task-id-or-title>" }
func (c *DoneCmd) NeedsAuth() bool   { return false }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	local, task, code := resolveTaskArg(cfg, args, errOut)
	if code != exitcode.Success {
		return code
	}

	local.CompleteTask(task.ID)
	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// resolveTaskArg loads the snapshot and resolves the single task
// reference argument shared by done and rm.
func resolveTaskArg(cfg *config.Config, args []string, errOut io.Writer) (*localtasks.Store, engine.Task, int) {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: task reference required")
		return nil, engine.Task{}, exitcode.UserError
	}

	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return nil, engine.Task{}, exitcode.UserError
	}

	task, err := local.FindTask(args[0])
	if err != nil {
		if err == localtasks.ErrAmbiguous {
			fmt.Fprintf(errOut, "error: ambiguous task reference: %s\n", args[0])
		} else {
			fmt.Fprintf(errOut, "error: task not found: %s\n", args[0])
		}
		return nil, engine.Task{}, exitcode.UserError
	}
	return local, task, exitcode.Success
}
