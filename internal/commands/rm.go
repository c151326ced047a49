package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"remindsync/internal/config"
	"remindsync/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command. The external item is removed by
// orphan collection on the next sync pass.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"remove"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "remindsync rm <task-id-or-title>" }
func (c *RmCmd) NeedsAuth() bool   { return false }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	local, task, code := resolveTaskArg(cfg, args, errOut)
	if code != exitcode.Success {
		return code
	}

	local.RemoveTask(task.ID)
	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
