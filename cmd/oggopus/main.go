// Package main is the entry point for the oggopus CLI.
//
// Usage:
//
//	oggopus [flags] <command> [subcommand] [args]
//
// Commands:
//
//	probe      - Decode the headers of a stream and summarize it
//	packets    - List audio packets with their TOC and timing
//	index      - Build and manage seek indexes (build, show, list, delete)
//	seek       - Enter a stream at a time offset
//	synth      - Write a synthetic Ogg Opus stream
//	config     - Configuration management (contexts)
//	version    - Show version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haivivi/oggopus/cmd/oggopus/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
