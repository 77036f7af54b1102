package loop

import "fmt"

// NextAction tells the driver which command to run next and why. Commands
// return it instead of signalling hand-offs through exit codes.
type NextAction struct {
	Command string `json:"command" yaml:"command"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// IsZero reports whether no follow-up action is suggested.
func (a NextAction) IsZero() bool {
	return a.Command == ""
}

func (a NextAction) String() string {
	if a.Reason == "" {
		return a.Command
	}
	return fmt.Sprintf("%s (%s)", a.Command, a.Reason)
}
