package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Cyonx818/ce-dps/internal/cli"
	"github.com/Cyonx818/ce-dps/internal/exitcode"
	"github.com/Cyonx818/ce-dps/internal/logging"
	sighandler "github.com/Cyonx818/ce-dps/internal/signal"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &cli.App{}
	handler := sighandler.SetupSignalHandler(ctx, cancel, func() {
		logging.Warn("Interrupted; state on disk is left at the last completed step")
	})

	root := cli.NewRootCommand(app, fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	err := root.ExecuteContext(ctx)

	if handler.Interrupted() {
		app.NotifyInterrupted(context.Background())
		return exitcode.Interrupted
	}
	if err != nil {
		logging.Error(err.Error())
		if hint := cli.Remediation(err); hint != "" {
			logging.Info("Next step: " + hint)
		}
	}
	code := cli.ExitCode(err)
	logging.Debugf("exit %d (%s)", code, exitcode.Name(code))
	return code
}
