package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"remindsync/internal/config"
	"remindsync/internal/exitcode"
	"remindsync/internal/ingest"
	"remindsync/internal/localtasks"
)

func init() {
	Register(&IngestCmd{})
}

// IngestCmd derives tasks from email message files.
type IngestCmd struct {
	groupName string
}

func (c *IngestCmd) Name() string      { return "ingest" }
func (c *IngestCmd) Aliases() []string { return nil }
func (c *IngestCmd) Synopsis() string  { return "Derive tasks from email files" }
func (c *IngestCmd) Usage() string     { return "remindsync ingest [--group <name>] <file.eml...>" }
func (c *IngestCmd) NeedsAuth() bool   { return false }

func (c *IngestCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.groupName, "group", "", "")
	fs.StringVar(&c.groupName, "g", "", "")
}

func (c *IngestCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: message file required")
		return exitcode.UserError
	}

	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	groupingID := ""
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
		groupingID = g.ID
	}

	added := 0
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		task, err := ingest.Parse(f, time.Now())
		f.Close()
		if err != nil {
			fmt.Fprintf(errOut, "error: %s: %v\n", path, err)
			return exitcode.UserError
		}
		task.GroupingID = groupingID
		task = local.AddTask(task)
		added++
		if !cfg.Quiet {
			fmt.Fprintf(out, "added %s  %s\n", task.ID, task.Title)
		}
	}

	if err := saveLocal(cfg, local); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "ingested %d message(s)\n", added)
	}
	return exitcode.Success
}
