package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `ce-dps - CE-DPS phase tracker and autonomous (SKYNET) loop controller
{{if .HasAvailableSubCommands}}
USAGE
  ce-dps <command> [flags]

COMMANDS
  init                                   Create the project state record
  setup --phase <1|2|3>                  Record phase setup (requires the previous phase)
  validate --phase <1|2|3> [--doc path]  Run the phase gate
  quality-check [--report path]          Check the quality report; starts the next sprint in a loop
  enable                                 Enable SKYNET mode (human approvals bypassed)
  disable                                Disable SKYNET mode (human approvals required)
  status [-o text|json|yaml]             Show both records and the interruption check
  resume                                 Recover an interrupted loop and print the next command
  advance --step <id> --next <command>   Record loop progress manually
  reset                                  Remove the loop record
{{else}}
USAGE
  {{.UseLine}}

{{.Short}}
{{if .HasAvailableLocalFlags}}
FLAGS
{{.LocalFlags.FlagUsages}}{{end}}{{end}}
GLOBAL FLAGS
  Locations:
    --state-dir <dir>                    State records directory (default: docs)
    --docs-dir <dir>                     Phase documents directory (default: docs/phases)
    --sprints-dir <dir>                  Sprint artifacts directory (default: docs/sprints)
    --config <path>                      Path to additional config file

  Gates & Mode:
    --coverage-target <percent>          Phase 3 coverage threshold (default: 95)
    --mode-var <name>                    Live mode environment variable (default: SKYNET)

  Notifications:
    --notify-webhook <url>               OpenClaw webhook URL (default: http://127.0.0.1:18789/webhook)
    --notify-channel <channel>           Notification channel (default: telegram)
    --notify-chat-id <id>                Recipient chat ID (required to enable notifications)

  Output:
    -v, --verbose                        Enable debug output
    -h, --help                           Show this help text
    --version                            Show version, commit, build date

CONFIG FILES
  ~/.config/ce-dps/config < .ce-dps.env < --config < flags

EXIT CODES
  0   Success              Command completed, gate passed
  1   Failure              Invalid arguments, unmet precondition, gate failure
  2   Fatal                State store unavailable, corrupt or conflicting record
  130 Interrupted          SIGINT or SIGTERM received

EXAMPLES
  # Initialise and start autonomous sprints
  ce-dps init --name billing
  ce-dps enable

  # Validate the sprint plan
  ce-dps validate --phase 2

  # After a context loss, pick up where the loop stopped
  ce-dps status
  ce-dps resume
`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
