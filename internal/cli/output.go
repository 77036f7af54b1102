package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Cyonx818/ce-dps/internal/banner"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/state"
)

// StatusReport is the machine-readable form of `ce-dps status`.
type StatusReport struct {
	Project      *state.ProjectState `json:"project" yaml:"project"`
	Loop         *state.LoopState    `json:"loop,omitempty" yaml:"loop,omitempty"`
	Interruption string              `json:"interruption" yaml:"interruption"`
	Detail       string              `json:"detail" yaml:"detail"`
	Live         bool                `json:"live" yaml:"live"`
	Next         *loop.NextAction    `json:"next,omitempty" yaml:"next,omitempty"`
}

func newStatusCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:         "status [-o text|json|yaml]",
		Short:       "Show both state records and the interruption check",
		Args:        cobra.NoArgs,
		Annotations: readsOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("output") {
				output = app.Config.Output
			}

			project, err := app.loadProject()
			if err != nil {
				return err
			}
			l, err := app.loadLoop()
			if err != nil {
				return err
			}
			live := app.Env.Active()
			status := loop.DetectInterruption(l, live)

			report := StatusReport{
				Project:      project,
				Loop:         l,
				Interruption: status.String(),
				Detail:       describeStatus(status),
				Live:         live,
			}
			if l != nil && l.NextCommand != "" {
				report.Next = &loop.NextAction{Command: l.NextCommand, Reason: "at " + l.LoopPosition}
			}

			switch output {
			case "json":
				return writeJSON(cmd.OutOrStdout(), report)
			case "yaml":
				return writeYAML(cmd.OutOrStdout(), report)
			case "text", "":
				banner.PrintStatusBanner(banner.StatusView{
					Project:      project,
					Loop:         l,
					Interruption: status,
					Live:         live,
					Now:          app.Now(),
				})
				return nil
			default:
				return failure("use -o text, json or yaml", "unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return enc.Close()
}
