package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cyonx818/ce-dps/internal/banner"
	"github.com/Cyonx818/ce-dps/internal/config"
	"github.com/Cyonx818/ce-dps/internal/exitcode"
	"github.com/Cyonx818/ce-dps/internal/gate"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/state"
)

// skipInterruptionCheck marks commands that handle an interrupted loop
// themselves or only read state.
const skipInterruptionCheck = "skip-interruption-check"

var readsOnly = map[string]string{skipInterruptionCheck: "true"}

// NewRootCommand builds the ce-dps command tree around app.
func NewRootCommand(app *App, version string) *cobra.Command {
	flagCfg := config.NewDefaultConfig()

	root := &cobra.Command{
		Use:     "ce-dps",
		Short:   "CE-DPS phase tracker and autonomous (SKYNET) loop controller",
		Long:    "ce-dps records progress through the CE-DPS phases, enforces the phase gates and drives the autonomous sprint loop.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ValidateFlags(cmd, flagCfg); err != nil {
				return &ExitError{Code: exitcode.Failure, Err: err, Remediation: "see `ce-dps --help`"}
			}
			cfg, err := LoadConfig(cmd, flagCfg)
			if err != nil {
				return &ExitError{Code: exitcode.Failure, Err: err, Remediation: "check the config files listed in `ce-dps --help`"}
			}

			logging.SetVerbose(cfg.Verbose)
			logging.SetOutput(cmd.ErrOrStderr())
			banner.SetOutput(cmd.OutOrStdout())
			app.prepare(cfg)

			logging.Debugf("state dir: %s, docs dir: %s, mode var: %s", cfg.StateDir, cfg.DocsDir, cfg.ModeVar)
			if cmd.Annotations[skipInterruptionCheck] == "" {
				app.warnIfInterrupted()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	BindFlags(root, flagCfg)
	SetCustomHelp(root)

	root.AddCommand(
		newInitCommand(app),
		newSetupCommand(app),
		newValidateCommand(app),
		newQualityCheckCommand(app),
		newModeCommand(app, true),
		newModeCommand(app, false),
		newStatusCommand(app),
		newResumeCommand(app),
		newAdvanceCommand(app),
		newResetCommand(app),
	)
	return root
}

func newInitCommand(app *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create the project state record",
		Args:        cobra.NoArgs,
		Annotations: readsOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.Store.LoadProject()
			switch {
			case err == nil:
				return failure("inspect it with `ce-dps status`",
					"project already initialized in %s", app.Config.StateDir)
			case !errors.Is(err, state.ErrNotFound):
				return fmt.Errorf("load project state: %w", err)
			}

			if name == "" {
				name = defaultProjectName(app.Config)
			}
			if err := app.Store.SaveProject(state.NewProjectState(name, app.timestamp())); err != nil {
				return fmt.Errorf("create project state: %w", err)
			}
			if err := os.MkdirAll(app.Config.DocsDir, 0755); err != nil {
				logging.Warnf("could not create docs directory %s: %v", app.Config.DocsDir, err)
			}

			logging.Success(fmt.Sprintf("Initialized project %q in %s", name, app.Config.StateDir))
			banner.PrintNextAction(loop.NextAction{Command: state.SetupCommand(1), Reason: "project initialized"})
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (default: PROJECT_NAME or the current directory name)")
	return cmd
}

func newSetupCommand(app *App) *cobra.Command {
	var phase int
	cmd := &cobra.Command{
		Use:   "setup --phase <1|2|3>",
		Short: "Record phase setup; the previous phase must be completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := gate.Lookup(phase)
			if err != nil {
				return failure("use --phase 1, 2 or 3", "%v", err)
			}
			project, err := app.loadProject()
			if err != nil {
				return err
			}
			if phase > 1 && !project.HasCompleted(phase-1) {
				return failure(fmt.Sprintf("pass the phase %d gate first: %s", phase-1, state.Invocation(state.ValidateCommand(phase-1))),
					"phase %d requires phase %d to be completed", phase, phase-1)
			}
			if phase < project.CurrentPhase && !(phase == 2 && project.HasCompleted(3)) {
				return failure(fmt.Sprintf("continue with phase %d: %s", project.CurrentPhase, state.Invocation(state.NextCommandFor(project))),
					"phase %d is behind the current phase %d", phase, project.CurrentPhase)
			}

			project.CurrentPhase = phase
			project.LastUpdated = app.timestamp()
			if err := app.Store.SaveProject(project); err != nil {
				return fmt.Errorf("record phase setup: %w", err)
			}
			if err := app.Env.SetPhase(phase); err != nil {
				logging.Warnf("could not set live phase: %v", err)
			}
			logging.Phase(fmt.Sprintf("Phase %d: %s", phase, def.Name))

			doc := def.DocumentPath(app.Config.DocsDir)
			if _, err := os.Stat(doc); err != nil {
				logging.Infof("Phase document %s not found; create it before validating", doc)
			}

			l, err := app.activeLoop()
			if err != nil {
				return err
			}
			next := state.NextAfterSetup(phase)
			if l != nil {
				if err := app.tracker().Advance(loop.SetupPosition(phase), next); err != nil {
					return err
				}
			}
			banner.PrintNextAction(loop.NextAction{Command: next, Reason: fmt.Sprintf("phase %d set up", phase)})
			return nil
		},
	}
	cmd.Flags().IntVar(&phase, "phase", 0, "Phase to set up (1, 2 or 3)")
	_ = cmd.MarkFlagRequired("phase")
	return cmd
}

func newAdvanceCommand(app *App) *cobra.Command {
	var step, next string
	cmd := &cobra.Command{
		Use:   "advance --step <id> --next <command>",
		Short: "Record loop progress manually",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.tracker().Advance(step, next); err != nil {
				return err
			}
			logging.Success(fmt.Sprintf("Loop position: %s", step))
			banner.PrintNextAction(loop.NextAction{Command: next, Reason: "recorded " + step})
			return nil
		},
	}
	cmd.Flags().StringVar(&step, "step", "", "Loop position reached")
	cmd.Flags().StringVar(&next, "next", "", "Command identifier to run next")
	_ = cmd.MarkFlagRequired("step")
	_ = cmd.MarkFlagRequired("next")
	return cmd
}

func newResetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "reset",
		Short:       "Remove the loop record and return to supervised mode",
		Args:        cobra.NoArgs,
		Annotations: readsOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := app.Store.LoadProject()
			switch {
			case err == nil:
				if project.SkynetMode.Autonomous() {
					if _, err := app.controller().Disable(); err != nil {
						return err
					}
				}
			case !errors.Is(err, state.ErrNotFound):
				return fmt.Errorf("load project state: %w", err)
			}

			if err := app.Store.DeleteLoop(); err != nil {
				return err
			}
			logging.Success("Loop record removed")
			return nil
		},
	}
}
