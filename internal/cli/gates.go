package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cyonx818/ce-dps/internal/banner"
	"github.com/Cyonx818/ce-dps/internal/exitcode"
	"github.com/Cyonx818/ce-dps/internal/gate"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/notification"
	"github.com/Cyonx818/ce-dps/internal/quality"
	"github.com/Cyonx818/ce-dps/internal/state"
)

func newValidateCommand(app *App) *cobra.Command {
	var (
		phase   int
		docPath string
	)
	cmd := &cobra.Command{
		Use:   "validate --phase <1|2|3> [--doc path]",
		Short: "Run the phase gate and record the phase as completed on pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := gate.Lookup(phase)
			if err != nil {
				return failure("use --phase 1, 2 or 3", "%v", err)
			}
			if docPath == "" {
				docPath = def.DocumentPath(app.Config.DocsDir)
			}
			logging.Debugf("validating phase %d against %s", phase, docPath)

			v := &gate.Validator{
				Store:          app.Store,
				Coverage:       quality.FileSource{Path: app.Config.QualityReport},
				CoverageTarget: app.Config.CoverageTarget,
				Now:            app.Now,
			}
			res, err := v.ValidatePhase(phase, &gate.MarkdownDocument{Path: docPath})
			if err != nil {
				return err
			}
			banner.PrintGateBanner(res)

			l, err := app.activeLoop()
			if err != nil {
				return err
			}
			msg := notification.Message{Phase: phase}
			if l != nil {
				msg.Sprint = l.CurrentSprint
			}

			if !res.Passed {
				msg.Event = notification.EventGateFailed
				msg.Detail = res.Reason
				app.notify(cmd.Context(), msg)
				banner.PrintNextAction(loop.NextAction{Command: state.ValidateCommand(phase), Reason: res.Remediation})
				return &ExitError{
					Code:        exitcode.Failure,
					Err:         fmt.Errorf("phase %d gate failed: %s", phase, res.Reason),
					Remediation: res.Remediation,
				}
			}

			msg.Event = notification.EventGatePassed
			app.notify(cmd.Context(), msg)

			next := state.NextAfterValidate(phase)
			if l != nil {
				t := app.tracker()
				detail := map[string]string{"phase": strconv.Itoa(phase)}
				if len(res.AutoApproved) > 0 {
					detail["auto_approved"] = strings.Join(res.AutoApproved, ", ")
				}
				if err := t.Record(state.ActionPhasePassed, detail); err != nil {
					return err
				}
				if err := t.Advance(loop.CompletePosition(phase), next); err != nil {
					return err
				}
			}
			banner.PrintNextAction(loop.NextAction{Command: next, Reason: res.Summary()})
			return nil
		},
	}
	cmd.Flags().IntVar(&phase, "phase", 0, "Phase to validate (1, 2 or 3)")
	cmd.Flags().StringVar(&docPath, "doc", "", "Phase document (default: the phase's document under --docs-dir)")
	_ = cmd.MarkFlagRequired("phase")
	return cmd
}

func newQualityCheckCommand(app *App) *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "quality-check [--report path]",
		Short: "Check the quality report; in an active loop a pass starts the next sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := app.loadProject()
			if err != nil {
				return err
			}
			if !project.HasCompleted(3) {
				return failure("pass the phase 3 gate first: "+state.Invocation(state.ValidateCommand(3)),
					"quality check requires phase 3 to be completed")
			}

			if reportPath == "" {
				reportPath = app.Config.QualityReport
			}
			report, err := quality.LoadReport(reportPath)
			if errors.Is(err, quality.ErrNoReport) {
				return failure("run the quality-gates runner to produce "+reportPath, "%v", err)
			}
			if err != nil {
				return failure("regenerate the report with the quality-gates runner", "%v", err)
			}

			out := quality.Evaluate(report, app.Config.CoverageTarget)
			l, err := app.activeLoop()
			if err != nil {
				return err
			}

			if !out.Passed {
				msg := notification.Message{Event: notification.EventQualityFailed, Detail: out.Reason}
				if l != nil {
					msg.Sprint = l.CurrentSprint
				}
				app.notify(cmd.Context(), msg)
				banner.PrintNextAction(loop.NextAction{Command: state.CommandQualityCheck, Reason: out.Remediation})
				return &ExitError{Code: exitcode.Failure, Err: errors.New(out.Reason), Remediation: out.Remediation}
			}
			logging.Success(fmt.Sprintf("Quality gates passed (coverage %.1f%%, target %.1f%%)", out.Coverage, out.Target))

			next := state.SetupCommand(2)
			if l == nil {
				banner.PrintNextAction(loop.NextAction{Command: next, Reason: "plan the next sprint"})
				return nil
			}

			if l.NextCommand != state.CommandQualityCheck {
				if l.LoopPosition == loop.SprintStartedPosition(l.CurrentSprint) {
					logging.Infof("Sprint %d already started", l.CurrentSprint)
					banner.PrintNextAction(loop.NextAction{Command: l.NextCommand, Reason: fmt.Sprintf("sprint %d in progress", l.CurrentSprint)})
					return nil
				}
				return failure("run `"+state.Invocation(l.NextCommand)+"` first",
					"loop is at %s; quality check is not the next step", l.LoopPosition)
			}

			t := app.tracker()
			if err := t.Advance(loop.PositionQualityCheckComplete, next); err != nil {
				return err
			}
			sprint, err := t.NextSprint(cmd.Context())
			if err != nil {
				return err
			}
			banner.PrintSprintBanner(sprint)
			app.notify(cmd.Context(), notification.Message{Event: notification.EventSprintStarted, Sprint: sprint})
			banner.PrintNextAction(loop.NextAction{Command: next, Reason: fmt.Sprintf("sprint %d started", sprint)})
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "Quality report (default: QUALITY_REPORT)")
	return cmd
}
