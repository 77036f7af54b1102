package mode

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cyonx818/ce-dps/internal/state"
)

// Transition describes the outcome of a SetMode call.
type Transition struct {
	From        state.Mode
	To          state.Mode
	LoopCreated bool
	Project     *state.ProjectState
	Loop        *state.LoopState
}

// Changed reports whether the persisted mode actually changed.
func (t *Transition) Changed() bool {
	return t.From != t.To
}

// Controller toggles autonomous mode. Only human-approval gating follows the
// mode; quality gates are left as they are.
type Controller struct {
	Store state.Store
	Env   Environment

	// Now and NewSessionID default to time.Now and uuid.NewString.
	Now          func() time.Time
	NewSessionID func() string
}

// NewController returns a Controller with default clock and id source.
func NewController(store state.Store, env Environment) *Controller {
	return &Controller{
		Store:        store,
		Env:          env,
		Now:          time.Now,
		NewSessionID: uuid.NewString,
	}
}

// SetMode sets the live flag and persists the mode to both records in one
// paired write. Enabling creates the loop record if it does not exist yet.
//
// If the write fails the live flag is restored to its previous value and the
// store error (wrapping state.ErrStoreUnavailable or state.ErrConflict) is
// returned.
func (c *Controller) SetMode(active bool) (*Transition, error) {
	project, err := c.Store.LoadProject()
	if err != nil {
		return nil, fmt.Errorf("load project state: %w", err)
	}

	loop, err := c.Store.LoadLoop()
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("load loop state: %w", err)
		}
		loop = nil
	}

	now := c.timestamp()
	t := &Transition{
		From: project.SkynetMode,
		To:   state.ModeFor(active),
	}

	previous := c.Env.Active()
	if err := c.Env.SetActive(active); err != nil {
		return nil, fmt.Errorf("set live mode: %w", err)
	}

	project.SkynetMode = t.To
	project.HumanApprovalRequired = !active
	project.LastUpdated = now

	if loop == nil && active {
		loop = c.newLoop(project, now)
		t.LoopCreated = true
	}
	if loop != nil {
		loop.SkynetActive = active
		loop.LastExecution = now
		action := state.ActionDisabled
		if active {
			action = state.ActionEnabled
		}
		loop.Append(action, now, map[string]string{
			"from":   string(t.From),
			"to":     string(t.To),
			"sprint": fmt.Sprintf("%d", loop.CurrentSprint),
		})
	}

	if err := c.Store.SaveBoth(project, loop); err != nil {
		_ = c.Env.SetActive(previous)
		return nil, fmt.Errorf("persist mode: %w", err)
	}

	t.Project = project
	t.Loop = loop
	return t, nil
}

// Enable switches to autonomous mode.
func (c *Controller) Enable() (*Transition, error) {
	return c.SetMode(true)
}

// Disable switches to supervised mode.
func (c *Controller) Disable() (*Transition, error) {
	return c.SetMode(false)
}

func (c *Controller) newLoop(project *state.ProjectState, now string) *state.LoopState {
	newID := c.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}
	return &state.LoopState{
		SchemaVersion: state.SchemaVersion,
		SessionID:     newID(),
		LoopPosition:  "skynet-enabled",
		CurrentSprint: 1,
		NextCommand:   state.NextCommandFor(project),
		LastExecution: now,
		LoopHistory:   []state.HistoryEntry{},
	}
}

func (c *Controller) timestamp() string {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}
