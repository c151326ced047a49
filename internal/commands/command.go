// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	"remindsync/internal/config"
	"remindsync/internal/store"
)

// StoreFactory creates an external store handle from config. Commands
// that sync hand it to the engine, which reacquires through it after a
// transient failure.
type StoreFactory func(ctx context.Context, cfg *config.Config) (store.Store, error)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command talks to the external store.
	// Local-only commands (add, done, help, ...) return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths).
	// factory is nil if NeedsAuth() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int
}
