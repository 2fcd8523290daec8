// Package main is the entry point for the formation CLI.
//
// formation creates cloud networks and nodes through per-cloud drivers and
// then provisions the resulting hosts over SSH in three barrier-separated
// phases.
//
//	formation deploy -c formation.yaml
//	formation provision -c formation.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrej220/formation/cmd/formation/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// an interrupt stops readiness probing and driver launches; running commands finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
