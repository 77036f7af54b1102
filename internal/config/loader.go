package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// whitelistSet is a precomputed lookup table for fast whitelist membership checks.
var whitelistSet map[string]bool

func init() {
	whitelistSet = make(map[string]bool, len(WhitelistedVars))
	for _, v := range WhitelistedVars {
		whitelistSet[v] = true
	}
}

// LoadFile parses a KEY=VALUE config file at the given path.
//
// The file uses dotenv syntax: comments, blank lines, quoted values and an
// optional `export` prefix are accepted. Keys not present in WhitelistedVars
// are silently ignored.
//
// Returns a map of whitelisted key-value pairs, or an error if the file
// cannot be read or parsed.
func LoadFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	all, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	result := make(map[string]string, len(all))
	for key, value := range all {
		key = strings.TrimSpace(key)
		if !whitelistSet[key] {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result, nil
}

// LoadWithPrecedence assembles a Config by merging sources in order of
// increasing priority:
//
//  1. Built-in defaults
//  2. Global config file (globalPath)
//  3. Project config file (projectPath)
//  4. Explicit config file (explicitPath)
//  5. CLI overrides (cliOverrides map)
//
// Any path that is empty is silently skipped, as are missing global and
// project files. A missing explicit file is an error.
func LoadWithPrecedence(globalPath, projectPath, explicitPath string, cliOverrides map[string]string) (*Config, error) {
	cfg := NewDefaultConfig()

	// Layer 2: global config file.
	if err := applyOptional(cfg, globalPath); err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}

	// Layer 3: project config file.
	if err := applyOptional(cfg, projectPath); err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}

	// Layer 4: explicit config file (must exist if specified).
	if explicitPath != "" {
		m, err := LoadFile(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("explicit config: %w", err)
		}
		ApplyMapToConfig(cfg, m)
		cfg.ConfigFile = explicitPath
	}

	// Layer 5: CLI overrides (highest priority).
	if len(cliOverrides) > 0 {
		ApplyMapToConfig(cfg, cliOverrides)
	}

	return cfg, nil
}

func applyOptional(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	m, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	ApplyMapToConfig(cfg, m)
	return nil
}

// ApplyMapToConfig sets fields on cfg from the key-value pairs in m.
// Keys must use the WhitelistedVars naming convention (e.g., "STATE_DIR").
// Unknown keys are silently ignored. Values that fail to parse are silently
// ignored (the previous value is preserved).
func ApplyMapToConfig(cfg *Config, m map[string]string) {
	for key, value := range m {
		switch key {
		case "STATE_DIR":
			cfg.StateDir = value
		case "DOCS_DIR":
			cfg.DocsDir = value
		case "SPRINTS_DIR":
			cfg.SprintsDir = value
		case "QUALITY_REPORT":
			cfg.QualityReport = value
		case "COVERAGE_TARGET":
			if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64); err == nil && v > 0 && v <= 100 {
				cfg.CoverageTarget = v
			}
		case "MODE_VAR":
			if value != "" {
				cfg.ModeVar = value
			}
		case "PROJECT_NAME":
			cfg.ProjectName = value
		case "VERBOSE":
			cfg.Verbose = parseBool(value)
		case "OUTPUT":
			switch value {
			case "text", "json", "yaml":
				cfg.Output = value
			}
		case "NOTIFY_WEBHOOK":
			cfg.NotifyWebhook = value
		case "NOTIFY_CHANNEL":
			cfg.NotifyChannel = value
		case "NOTIFY_CHAT_ID":
			cfg.NotifyChatID = value
		}
	}
}

// parseBool interprets common boolean representations.
// "true", "1", "yes" (case-insensitive) return true; everything else returns false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
