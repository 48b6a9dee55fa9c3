package alertconfig

import (
	"fmt"
	"strings"

	"mill-alert-service/internal/models"
)

const smsMaxLen = 160

// Title renders the short subject line for an alert: severity tag plus the
// humanized type, e.g. "[CRITICAL] QC Failure".
func Title(t models.AlertType, ctx models.AlertContext) string {
	cfg, ok := configs[t]
	if !ok {
		return fmt.Sprintf("[ALERT] %s", t.Humanize())
	}
	return fmt.Sprintf("[%s] %s", cfg.Severity, t.Humanize())
}

// Message renders the channel-specific body for an alert. SMS is a single
// line capped at 160 characters, PUSH carries the title only, EMAIL and
// IN_APP get the full detail including the required action and any deadline.
// When the context has neither message nor summary, the humanized type stands
// in.
func Message(t models.AlertType, ctx models.AlertContext, channel models.Channel) string {
	cfg := configs[t]
	switch channel {
	case models.ChannelSMS:
		line := fmt.Sprintf("%s %s: %s", cfg.Severity, t.Humanize(), summaryLine(t, ctx))
		if ctx.Link != "" {
			line += " " + ctx.Link
		}
		return truncate(line, smsMaxLen)
	case models.ChannelPush:
		return Title(t, ctx)
	default: // EMAIL, IN_APP
		var b strings.Builder
		b.WriteString(fullMessage(t, ctx))
		if ctx.BatchID != "" {
			fmt.Fprintf(&b, "\nBatch: %s", ctx.BatchID)
		}
		if ctx.MillID != 0 {
			fmt.Fprintf(&b, "\nMill: %d", ctx.MillID)
		}
		if cfg.ActionRequired != "" {
			fmt.Fprintf(&b, "\nAction required: %s", cfg.ActionRequired)
		}
		if ctx.Deadline != nil {
			fmt.Fprintf(&b, "\nDeadline: %s", ctx.Deadline.Format("2006-01-02 15:04"))
		}
		if ctx.Link != "" {
			fmt.Fprintf(&b, "\n%s", ctx.Link)
		}
		return b.String()
	}
}

func summaryLine(t models.AlertType, ctx models.AlertContext) string {
	if ctx.Summary != "" {
		return ctx.Summary
	}
	if ctx.Message != "" {
		return firstLine(ctx.Message)
	}
	return t.Humanize()
}

func fullMessage(t models.AlertType, ctx models.AlertContext) string {
	if ctx.Message != "" {
		return ctx.Message
	}
	if ctx.Summary != "" {
		return ctx.Summary
	}
	return t.Humanize()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate caps s at max characters, never splitting a multi-byte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
