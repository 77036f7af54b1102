// Package exitcode defines named exit codes for the ce-dps CLI.
//
// Each code maps a termination condition to a numeric value recognized by
// shell scripts and CI pipelines. Hand-offs between commands are never
// signalled through exit codes; commands print their next action instead.
package exitcode

const (
	Success     = 0   // Command completed, gate passed
	Failure     = 1   // Invalid args, unmet precondition, gate failure
	Fatal       = 2   // State store unavailable, corrupt or conflicting record
	Interrupted = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Fatal:
		return "Fatal"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}
