// Package main provides the entry point for the entsync CLI tool.
package main

import (
	"context"
	"os"

	"github.com/agentstation/entsync/cmd/entsync/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application := app.New(version, commit, date)

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		app.ExitOnError(err)
	}
}
