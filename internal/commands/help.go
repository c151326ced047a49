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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "remindsync help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, factory StoreFactory, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  remindsync                                         Show tasks
  remindsync list [common flags] [--all]
  remindsync add [common flags] [--group <name>] [--due <when>] [--notes <text>] <title...>
  remindsync done [common flags] <task-id-or-title>
  remindsync rm [common flags] <task-id-or-title>
  remindsync groups [common flags]
  remindsync group [common flags] [--color <hex>] <title...>
  remindsync rmgroup [common flags] <group-name>
  remindsync ingest [common flags] [--group <name>] <file.eml...>
  remindsync sync [common flags] [--recover-leaks] [--max-retries <n>]
  remindsync watch [common flags] [--debounce <d>] [--probe <d>] [--log-file <path>]
  remindsync status [common flags]
  remindsync login [common flags]
  remindsync logout [common flags]
  remindsync help
  remindsync version

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
