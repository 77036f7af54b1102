package notification

import (
	"context"
	"os/exec"
	"time"
)

// sendTimeout bounds a single openclaw invocation.
const sendTimeout = 10 * time.Second

// SendNotification sends a notification via openclaw CLI.
// Fire-and-forget: never blocks the command for longer than the timeout and
// is silent on failure. No-op when chatID is empty.
func SendNotification(ctx context.Context, webhook, channel, chatID, message string) {
	if chatID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "openclaw", "message", "send",
		"--webhook", webhook,
		"--channel", channel,
		"--chat-id", chatID,
		"--message", message,
	)

	// Fire and forget - ignore errors
	_ = cmd.Run()
}

// Notifier sends loop events to one configured recipient.
type Notifier struct {
	Webhook string
	Channel string
	ChatID  string
	Project string

	// send defaults to SendNotification.
	send func(ctx context.Context, webhook, channel, chatID, message string)
}

// Enabled reports whether a recipient is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.ChatID != ""
}

// Notify formats m and sends it. The project name defaults to the
// notifier's.
func (n *Notifier) Notify(ctx context.Context, m Message) {
	if !n.Enabled() {
		return
	}
	if m.Project == "" {
		m.Project = n.Project
	}
	send := n.send
	if send == nil {
		send = SendNotification
	}
	send(ctx, n.Webhook, n.Channel, n.ChatID, FormatEvent(m))
}
