// Package main is the entry point for the remindsync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"remindsync/internal/backend/googletasks"
	"remindsync/internal/cli"
	"remindsync/internal/commands"
	"remindsync/internal/config"
	"remindsync/internal/store"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Create store factory
	factory := func(ctx context.Context, cfg *config.Config) (store.Store, error) {
		return googletasks.New(ctx, cfg)
	}

	// Create dispatcher
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
