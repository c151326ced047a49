package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"remindsync/internal/config"
	"remindsync/internal/engine"
	"remindsync/internal/exitcode"
	"remindsync/internal/health"
	"remindsync/internal/identity"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd probes the connection to the external store.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Check the reminder store connection" }
func (c *StatusCmd) Usage() string     { return "remindsync status" }
func (c *StatusCmd) NeedsAuth() bool   { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	ids, err := identity.Load(cfg.IdentityPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	logger := log.New(io.Discard, "", 0)
	eng := engine.New(storeFactory(cfg, factory), ids, engine.WithLogger(logger))

	if err := eng.Probe(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", health.Message(err))
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "connected (%d lists mapped, %d tasks mapped)\n", len(ids.Lists), len(ids.Items))
	}
	return exitcode.Success
}
