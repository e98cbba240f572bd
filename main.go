package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/challenge-migration/cmd"
	"github.com/tphakala/challenge-migration/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags
var buildDate string
var version string

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := buildinfo.NewContext(version, buildDate)
	root := cmd.RootCommand(build)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
