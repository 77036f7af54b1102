// Package cli wires the ce-dps command surface: flag binding, config
// loading, the cobra commands and the mapping of errors to exit codes.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Cyonx818/ce-dps/internal/config"
)

// BindFlags registers the global CLI flags as persistent flags on the given
// cobra command. The flags directly modify fields in the provided config
// pointer. Call ValidateFlags after parsing to check flag values.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()

	// Locations
	flags.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory holding the state records")
	flags.StringVar(&cfg.DocsDir, "docs-dir", cfg.DocsDir, "Directory holding the phase documents")
	flags.StringVar(&cfg.SprintsDir, "sprints-dir", cfg.SprintsDir, "Directory holding per-sprint artifacts")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file")

	// Gates & mode
	flags.Float64Var(&cfg.CoverageTarget, "coverage-target", cfg.CoverageTarget, "Minimum test coverage percentage for phase 3")
	flags.StringVar(&cfg.ModeVar, "mode-var", cfg.ModeVar, "Environment variable carrying the live mode flag")

	// Feature Toggles
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug output")

	// Notifications
	flags.StringVar(&cfg.NotifyWebhook, "notify-webhook", cfg.NotifyWebhook, "OpenClaw webhook URL")
	flags.StringVar(&cfg.NotifyChannel, "notify-channel", cfg.NotifyChannel, "Notification channel")
	flags.StringVar(&cfg.NotifyChatID, "notify-chat-id", "", "Recipient chat ID")
}

// ValidateFlags checks flag values after parsing.
func ValidateFlags(cmd *cobra.Command, cfg *config.Config) error {
	// --config must exist if provided
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return fmt.Errorf("--config: %w", err)
		}
	}

	if cmd.Flags().Changed("coverage-target") && (cfg.CoverageTarget <= 0 || cfg.CoverageTarget > 100) {
		return fmt.Errorf("--coverage-target must be in (0, 100], got: %g", cfg.CoverageTarget)
	}

	if cmd.Flags().Changed("mode-var") && cfg.ModeVar == "" {
		return fmt.Errorf("--mode-var must not be empty")
	}

	return nil
}

// BuildCLIOverrides creates a map of CLI flag overrides from the config.
// Uses cmd.Flags().Changed() to only include flags explicitly set by the user,
// ensuring config file values are not accidentally overridden by default values.
func BuildCLIOverrides(cmd *cobra.Command, cfg *config.Config) map[string]string {
	overrides := make(map[string]string)

	stringFlags := map[string]struct {
		key string
		val string
	}{
		"state-dir":      {"STATE_DIR", cfg.StateDir},
		"docs-dir":       {"DOCS_DIR", cfg.DocsDir},
		"sprints-dir":    {"SPRINTS_DIR", cfg.SprintsDir},
		"mode-var":       {"MODE_VAR", cfg.ModeVar},
		"notify-webhook": {"NOTIFY_WEBHOOK", cfg.NotifyWebhook},
		"notify-channel": {"NOTIFY_CHANNEL", cfg.NotifyChannel},
		"notify-chat-id": {"NOTIFY_CHAT_ID", cfg.NotifyChatID},
	}
	for flag, mapping := range stringFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}

	if cmd.Flags().Changed("coverage-target") {
		overrides["COVERAGE_TARGET"] = strconv.FormatFloat(cfg.CoverageTarget, 'f', -1, 64)
	}
	if cmd.Flags().Changed("verbose") {
		overrides["VERBOSE"] = strconv.FormatBool(cfg.Verbose)
	}

	return overrides
}

// LoadConfig merges config files and the explicitly set flags bound to
// flagCfg, following the precedence documented in the config package.
func LoadConfig(cmd *cobra.Command, flagCfg *config.Config) (*config.Config, error) {
	cfg, err := config.LoadWithPrecedence(
		config.GlobalConfigPath(),
		config.ProjectConfigFile,
		flagCfg.ConfigFile,
		BuildCLIOverrides(cmd, flagCfg),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
