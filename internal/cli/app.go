package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Cyonx818/ce-dps/internal/config"
	"github.com/Cyonx818/ce-dps/internal/exitcode"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/mode"
	"github.com/Cyonx818/ce-dps/internal/notification"
	"github.com/Cyonx818/ce-dps/internal/state"
	"github.com/Cyonx818/ce-dps/internal/vcs"
)

// App holds the dependencies shared by all commands. Fields left nil are
// filled from the loaded config before the first command runs.
type App struct {
	Config       *config.Config
	Store        state.Store
	Env          mode.Environment
	Tree         vcs.WorkingTree
	Notifier     *notification.Notifier
	Now          func() time.Time
	NewSessionID func() string
}

func (a *App) prepare(cfg *config.Config) {
	a.Config = cfg
	if a.Store == nil {
		a.Store = state.NewFileStore(cfg.StateDir)
	}
	if a.Env == nil {
		a.Env = mode.NewProcessEnvironment(cfg.ModeVar)
	}
	if a.Tree == nil {
		a.Tree = &vcs.GitTree{Dir: "."}
	}
	if a.Notifier == nil {
		a.Notifier = &notification.Notifier{
			Webhook: cfg.NotifyWebhook,
			Channel: cfg.NotifyChannel,
			ChatID:  cfg.NotifyChatID,
		}
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.NewSessionID == nil {
		a.NewSessionID = uuid.NewString
	}
}

func (a *App) timestamp() string {
	return a.Now().UTC().Format(time.RFC3339)
}

func (a *App) controller() *mode.Controller {
	return &mode.Controller{Store: a.Store, Env: a.Env, Now: a.Now, NewSessionID: a.NewSessionID}
}

func (a *App) tracker() *loop.Tracker {
	return &loop.Tracker{Store: a.Store, SprintsDir: a.Config.SprintsDir, Now: a.Now}
}

func (a *App) detector() *loop.Detector {
	return &loop.Detector{Store: a.Store, Env: a.Env}
}

func (a *App) recovery() *loop.Recovery {
	return &loop.Recovery{Store: a.Store, Env: a.Env, Tree: a.Tree, SprintsDir: a.Config.SprintsDir, Now: a.Now}
}

// loadProject reads the project record; a missing record is fatal and tells
// the user to run init.
func (a *App) loadProject() (*state.ProjectState, error) {
	p, err := a.Store.LoadProject()
	if err != nil {
		return nil, fmt.Errorf("load project state: %w", err)
	}
	return p, nil
}

// loadLoop reads the loop record. A missing record returns nil, nil.
func (a *App) loadLoop() (*state.LoopState, error) {
	l, err := a.Store.LoadLoop()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load loop state: %w", err)
	}
	return l, nil
}

// activeLoop returns the loop record when autonomous mode is on.
func (a *App) activeLoop() (*state.LoopState, error) {
	l, err := a.loadLoop()
	if err != nil || l == nil || !l.SkynetActive {
		return nil, err
	}
	return l, nil
}

// warnIfInterrupted reconciles the live flag with the persisted loop flag.
func (a *App) warnIfInterrupted() {
	status, l, err := a.detector().Detect()
	if err != nil {
		logging.Debug(fmt.Sprintf("interruption check skipped: %v", err))
		return
	}
	if status == loop.Interrupted {
		logging.Warnf("autonomous loop was interrupted at %s (sprint %d); run `ce-dps resume` to continue",
			l.LoopPosition, l.CurrentSprint)
	}
}

// logChanges lists uncommitted paths at debug level when the working tree
// is a git checkout.
func (a *App) logChanges(ctx context.Context) {
	g, ok := a.Tree.(*vcs.GitTree)
	if !ok {
		return
	}
	changes, err := g.Changes(ctx)
	if err != nil {
		logging.Debugf("list changes: %v", err)
		return
	}
	for _, c := range changes {
		logging.Debug("uncommitted: " + c)
	}
}

// notify sends m when a recipient is configured. Project and session are
// read from the records when m leaves them empty.
func (a *App) notify(ctx context.Context, m notification.Message) {
	if !a.Notifier.Enabled() {
		return
	}
	if m.Project == "" {
		if p, err := a.Store.LoadProject(); err == nil {
			m.Project = p.ProjectName
		}
	}
	if m.Session == "" {
		if l, err := a.loadLoop(); err == nil && l != nil {
			m.Session = l.SessionID
		}
	}
	a.Notifier.Notify(ctx, m)
}

// NotifyInterrupted reports a signal-driven stop. It is a no-op before the
// first command has prepared the App.
func (a *App) NotifyInterrupted(ctx context.Context) {
	if a.Store == nil {
		return
	}
	a.notify(ctx, notification.Message{Event: notification.EventInterrupted})
}

func defaultProjectName(cfg *config.Config) string {
	if cfg.ProjectName != "" {
		return cfg.ProjectName
	}
	wd, err := os.Getwd()
	if err != nil {
		return "project"
	}
	return filepath.Base(wd)
}

// ExitError carries the exit code and remediation of a failed command.
type ExitError struct {
	Code        int
	Err         error
	Remediation string
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// failure reports an expected failure (exit 1) with a next step.
func failure(remediation, format string, args ...any) error {
	return &ExitError{Code: exitcode.Failure, Err: fmt.Errorf(format, args...), Remediation: remediation}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return exitcode.Interrupted
	case loop.IsAlternateOutcome(err):
		return exitcode.Failure
	case errors.Is(err, state.ErrNotFound),
		errors.Is(err, state.ErrCorrupt),
		errors.Is(err, state.ErrConflict),
		errors.Is(err, state.ErrStoreUnavailable),
		errors.Is(err, loop.ErrInconsistentProjectState):
		return exitcode.Fatal
	default:
		return exitcode.Failure
	}
}

// Remediation returns a one-line next step for err, or "".
func Remediation(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Remediation != "" {
		return exitErr.Remediation
	}
	switch {
	case errors.Is(err, loop.ErrNoLoopState):
		return "no interrupted loop; use `ce-dps enable` to start one"
	case errors.Is(err, loop.ErrAlreadyActive):
		return "the loop is already running; continue with its next command"
	case errors.Is(err, loop.ErrInconsistentProjectState):
		return "reinitialise the project with `ce-dps init`"
	case errors.Is(err, state.ErrNotFound):
		return "run `ce-dps init` to initialise the project"
	case errors.Is(err, state.ErrCorrupt):
		return "restore or remove the corrupt state file, then run `ce-dps init`"
	case errors.Is(err, state.ErrConflict):
		return "the state changed while this command ran; run it again"
	case errors.Is(err, state.ErrStoreUnavailable):
		return "check that the state directory exists and is writable"
	default:
		return ""
	}
}
