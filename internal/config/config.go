// Package config defines the ce-dps configuration model and default values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < global config file < project config file <
// explicit config file < CLI flag overrides.
package config

import (
	"os"
	"path/filepath"
)

// Default config file locations.
const (
	ProjectConfigFile = ".ce-dps.env"
	globalConfigDir   = "ce-dps"
	globalConfigFile  = "config"
)

// WhitelistedVars lists every configuration variable name that may appear in
// config files. Variables not in this list are silently ignored during loading.
var WhitelistedVars = [12]string{
	"STATE_DIR",
	"DOCS_DIR",
	"SPRINTS_DIR",
	"QUALITY_REPORT",
	"COVERAGE_TARGET",
	"MODE_VAR",
	"PROJECT_NAME",
	"VERBOSE",
	"OUTPUT",
	"NOTIFY_WEBHOOK",
	"NOTIFY_CHANNEL",
	"NOTIFY_CHAT_ID",
}

// Config holds every configuration field for the ce-dps CLI.
type Config struct {
	// Locations.
	StateDir      string
	DocsDir       string
	SprintsDir    string
	QualityReport string

	// Gate thresholds.
	CoverageTarget float64

	// Environment variable carrying the live mode flag.
	ModeVar string

	ProjectName string

	// Runtime flags.
	Verbose bool
	Output  string

	// Notification settings.
	NotifyWebhook string
	NotifyChannel string
	NotifyChatID  string

	// CLI-only flags (not loaded from config files).
	ConfigFile string
}

// NewDefaultConfig returns a Config populated with all built-in default values.
func NewDefaultConfig() *Config {
	return &Config{
		StateDir:       "docs",
		DocsDir:        filepath.Join("docs", "phases"),
		SprintsDir:     filepath.Join("docs", "sprints"),
		QualityReport:  filepath.Join("target", "quality-report.json"),
		CoverageTarget: 95,
		ModeVar:        "SKYNET",
		Output:         "text",
		NotifyWebhook:  "http://127.0.0.1:18789/webhook",
		NotifyChannel:  "telegram",
	}
}

// GlobalConfigPath returns ~/.config/ce-dps/config, or "" when the home
// directory cannot be determined.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", globalConfigDir, globalConfigFile)
}
