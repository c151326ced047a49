package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"remindsync/internal/config"
	"remindsync/internal/engine"
	"remindsync/internal/exitcode"
	"remindsync/internal/health"
	"remindsync/internal/identity"
	"remindsync/internal/localtasks"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd runs the sync daemon: it watches the snapshot file, syncs a
// debounced batch after each change, and probes the connection
// periodically so a dead handle is noticed before the next real pass.
type WatchCmd struct {
	debounce      time.Duration
	probeInterval time.Duration
	logFile       string
	prefix        string
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Watch for changes and sync continuously" }
func (c *WatchCmd) Usage() string {
	return "remindsync watch [--debounce <d>] [--probe <d>] [--log-file <path>]"
}
func (c *WatchCmd) NeedsAuth() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.debounce, "debounce", 2*time.Second, "")
	fs.DurationVar(&c.probeInterval, "probe", 5*time.Minute, "")
	fs.StringVar(&c.logFile, "log-file", "", "")
	fs.StringVar(&c.prefix, "prefix", "", "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	var logDest io.Writer = errOut
	if c.logFile != "" {
		logDest = &lumberjack.Logger{
			Filename:   c.logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
		}
	}
	logger := log.New(logDest, "[watch] ", log.LstdFlags)

	ids, err := identity.Load(cfg.IdentityPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	// The snapshot store is reloaded per pass; mapping events land on
	// whichever store is current.
	var current *localtasks.Store
	var dirty bool
	eng := engine.New(storeFactory(cfg, factory), ids,
		engine.WithLogger(logger),
		engine.WithManagedPrefix(c.prefix),
		engine.OnMapping(func(ev engine.MappingEvent) {
			if current != nil {
				current.ApplyMapping(ev)
				dirty = true
			}
		}),
	)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to create watcher: %v\n", err)
		return exitcode.BackendError
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic saves replace the file,
	// which would drop a direct watch.
	if err := watcher.Add(cfg.Dir); err != nil {
		fmt.Fprintf(errOut, "error: failed to watch %s: %v\n", cfg.Dir, err)
		return exitcode.BackendError
	}

	runSync := func() {
		local, err := localtasks.Load(cfg.SnapshotPath())
		if err != nil {
			logger.Printf("cannot load snapshot: %v", err)
			return
		}
		current, dirty = local, false
		result, err := eng.Sync(ctx, local.Snap.Groupings, local.Snap.Tasks)
		current = nil
		if err != nil {
			if errors.Is(err, engine.ErrBusy) {
				return
			}
			logger.Printf("sync failed: %s", health.Message(err))
			return
		}
		// The save fires a watch event of its own, which costs one extra
		// (no-op) pass. Skipping it when no mapping landed lets the loop
		// settle without suppressing events, so a real edit made right
		// after a pass is still picked up.
		if dirty {
			if err := local.Save(); err != nil {
				logger.Printf("cannot save snapshot: %v", err)
				return
			}
		}
		logger.Printf("synced %d tasks (%d orphans removed)", result.Matched, result.OrphansRemoved)
	}

	logger.Printf("watching %s", cfg.SnapshotPath())
	if !cfg.Quiet {
		fmt.Fprintf(out, "watching %s\n", cfg.SnapshotPath())
	}
	runSync()

	// Debounce batches rapid updates together.
	debounce := time.NewTimer(c.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	probe := time.NewTicker(c.probeInterval)
	defer probe.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return exitcode.Success

		case ev, ok := <-watcher.Events:
			if !ok {
				return exitcode.BackendError
			}
			if filepath.Base(ev.Name) != config.SnapshotFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(c.debounce)

		case <-debounce.C:
			runSync()

		case <-probe.C:
			if err := eng.Probe(ctx); err != nil {
				logger.Printf("health probe failed: %s", health.Message(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return exitcode.BackendError
			}
			logger.Printf("watcher error: %v", err)
		}
	}
}
