package notification

import "fmt"

// Event types emitted by loop commands.
const (
	EventEnabled       = "skynet_enabled"
	EventDisabled      = "skynet_disabled"
	EventRecovered     = "recovered"
	EventGatePassed    = "gate_passed"
	EventGateFailed    = "gate_failed"
	EventSprintStarted = "sprint_started"
	EventQualityFailed = "quality_failed"
	EventInterrupted   = "interrupted"
)

// Message describes one notification. Phase and Sprint are omitted from the
// text when zero.
type Message struct {
	Event   string
	Project string
	Session string
	Phase   int
	Sprint  int
	Detail  string
}

// FormatEvent creates a notification message for the given event.
func FormatEvent(m Message) string {
	tag := m.Project
	if m.Session != "" {
		tag = fmt.Sprintf("%s [%s]", m.Project, shortSession(m.Session))
	}

	switch m.Event {
	case EventEnabled:
		return fmt.Sprintf("🤖 %s SKYNET mode enabled at sprint %d; next: %s", tag, m.Sprint, m.Detail)
	case EventDisabled:
		return fmt.Sprintf("👤 %s SKYNET mode disabled; human approvals required", tag)
	case EventRecovered:
		return fmt.Sprintf("⚠️ %s recovered from auto-compact at sprint %d; next: %s", tag, m.Sprint, m.Detail)
	case EventGatePassed:
		return fmt.Sprintf("✅ %s phase %d gate passed", tag, m.Phase)
	case EventGateFailed:
		return fmt.Sprintf("❌ %s phase %d gate failed: %s", tag, m.Phase, m.Detail)
	case EventSprintStarted:
		return fmt.Sprintf("🔄 %s sprint %d started", tag, m.Sprint)
	case EventQualityFailed:
		return fmt.Sprintf("🚫 %s quality check failed at sprint %d: %s", tag, m.Sprint, m.Detail)
	case EventInterrupted:
		return fmt.Sprintf("⏸️ %s interrupted; run `ce-dps resume` to continue", tag)
	default:
		return fmt.Sprintf("ℹ️ %s event: %s %s", tag, m.Event, m.Detail)
	}
}

// shortSession keeps the first UUID group to keep chat messages short.
func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
