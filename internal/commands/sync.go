package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"sort"

	"remindsync/internal/config"
	"remindsync/internal/engine"
	"remindsync/internal/exitcode"
	"remindsync/internal/health"
	"remindsync/internal/identity"
	"remindsync/internal/localtasks"
	"remindsync/internal/output"
	"remindsync/internal/store"
)

func init() {
	Register(&SyncCmd{})
}

// SyncCmd runs one reconciliation pass against the external store.
type SyncCmd struct {
	recoverLeaks bool
	maxRetries   int
	prefix       string
}

func (c *SyncCmd) Name() string      { return "sync" }
func (c *SyncCmd) Aliases() []string { return nil }
func (c *SyncCmd) Synopsis() string  { return "Sync tasks to the reminder store" }
func (c *SyncCmd) Usage() string {
	return "remindsync sync [--recover-leaks] [--max-retries <n>] [--prefix <s>]"
}
func (c *SyncCmd) NeedsAuth() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.recoverLeaks, "recover-leaks", false, "")
	fs.IntVar(&c.maxRetries, "max-retries", -1, "")
	fs.StringVar(&c.prefix, "prefix", "", "")
}

func (c *SyncCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	local, err := localtasks.Load(cfg.SnapshotPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	ids, err := identity.Load(cfg.IdentityPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Debug {
		logger = log.New(errOut, "[sync] ", log.LstdFlags)
	}

	monitor := health.NewMonitor(logger)
	if c.maxRetries >= 0 {
		monitor.SetMaxRetries(c.maxRetries)
	}

	eng := engine.New(storeFactory(cfg, factory), ids,
		engine.WithLogger(logger),
		engine.WithManagedPrefix(c.prefix),
		engine.WithMonitor(monitor),
		engine.OnMapping(local.ApplyMapping),
	)

	result, err := eng.Sync(ctx, local.Snap.Groupings, local.Snap.Tasks)
	if err != nil {
		if errors.Is(err, engine.ErrBusy) {
			fmt.Fprintln(errOut, "error: sync already in progress")
			return exitcode.Busy
		}
		fmt.Fprintf(errOut, "error: %s\n", health.Message(err))
		if store.KindOf(err) == store.PermissionDenied {
			return exitcode.AuthError
		}
		return exitcode.BackendError
	}

	// Persist the external IDs the engine reported back.
	if err := local.Save(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}

	recovered := 0
	if c.recoverLeaks {
		recovered, err = eng.RecoverLeaks(ctx)
		if err != nil {
			fmt.Fprintf(errOut, "error: leak recovery: %s\n", health.Message(err))
			return exitcode.BackendError
		}
	}

	reportTaskErrors(errOut, result)
	if !cfg.Quiet {
		output.FormatSyncResult(out, result.Matched, result.OrphansRemoved, recovered)
	}
	return exitcode.Success
}

// reportTaskErrors prints per-task failures. Partial success is a
// first-class outcome; these do not change the exit code.
func reportTaskErrors(errOut io.Writer, result engine.SyncResult) {
	if len(result.ErrorsByTask) == 0 {
		return
	}
	taskIDs := make([]string, 0, len(result.ErrorsByTask))
	for id := range result.ErrorsByTask {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)
	for _, id := range taskIDs {
		fmt.Fprintf(errOut, "warning: task %s: %s\n", id, result.ErrorsByTask[id])
	}
}
