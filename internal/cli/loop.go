package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Cyonx818/ce-dps/internal/banner"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/notification"
)

func newModeCommand(app *App, active bool) *cobra.Command {
	use, short := "disable", "Disable SKYNET mode; human approvals are required again"
	if active {
		use, short = "enable", "Enable SKYNET mode; human approvals are bypassed, quality gates stay on"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := app.controller().SetMode(active)
			if err != nil {
				return err
			}
			if !tr.Changed() {
				logging.Infof("SKYNET mode already %sd", use)
			}
			banner.PrintModeBanner(tr.Project, tr.Loop)
			logging.Infof("Set %s=%t in the driving shell", app.Config.ModeVar, active)

			msg := notification.Message{Event: notification.EventDisabled}
			if active {
				msg = notification.Message{
					Event:  notification.EventEnabled,
					Sprint: tr.Loop.CurrentSprint,
					Detail: tr.Loop.NextCommand,
				}
			}
			if tr.Changed() {
				app.notify(cmd.Context(), msg)
			}

			if active {
				banner.PrintNextAction(loop.NextAction{Command: tr.Loop.NextCommand, Reason: "autonomous loop enabled"})
			}
			return nil
		},
	}
}

func newResumeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "resume",
		Short:       "Recover an interrupted loop and print the command to run next",
		Args:        cobra.NoArgs,
		Annotations: readsOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := app.recovery().Recover(cmd.Context())
			switch {
			case errors.Is(err, loop.ErrAlreadyActive):
				logging.Warn("Autonomous loop is already running; nothing to resume")
				banner.PrintNextAction(plan.NextAction())
				return err
			case errors.Is(err, loop.ErrNoLoopState):
				logging.Info("No interrupted loop found")
				return err
			case err != nil:
				return err
			}

			banner.PrintRecoveryBanner(plan)
			if len(plan.Warnings) > 0 {
				app.logChanges(cmd.Context())
			}
			logging.Infof("Set %s=true in the driving shell before continuing", app.Config.ModeVar)
			app.notify(cmd.Context(), notification.Message{
				Event:  notification.EventRecovered,
				Sprint: plan.CurrentSprint,
				Detail: plan.NextCommand,
			})
			banner.PrintNextAction(plan.NextAction())
			return nil
		},
	}
}

// describeStatus explains a detector result in one line.
func describeStatus(s loop.InterruptionStatus) string {
	switch s {
	case loop.Interrupted:
		return "loop was interrupted; run `ce-dps resume`"
	case loop.AlreadyRunning:
		return "loop is running"
	default:
		return "no active loop"
	}
}
