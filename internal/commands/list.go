package commands

import (
	"context"
	"flag"
	"io"

	"remindsync/internal/config"
	"remindsync/internal/exitcode"
	"remindsync/internal/localtasks"
	"remindsync/internal/output"

	"fmt"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd shows the local snapshot, grouped.
type ListCmd struct {
	all bool
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "Show tasks" }
func (c *ListCmd) Usage() string     { return "remindsync list [--all]" }
func (c *ListCmd) NeedsAuth() bool   { return false }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
	fs.BoolVar(&c.all, "a", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	output.FormatSnapshot(out, local.Snap.Groupings, local.Snap.Tasks, c.all)
	return exitcode.Success
}
