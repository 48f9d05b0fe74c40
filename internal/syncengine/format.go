package syncengine

import (
	"fmt"
	"strings"

	"github.com/accerat/MondayBot/internal/syncrules"
)

const urgentMarker = "🚨"

// FormatEventMessage renders a normalized event as a platform message using
// the active rule config for urgency, display names, and status symbols.
func FormatEventMessage(ev NormalizedEvent, cfg *syncrules.Config) string {
	switch ev.Kind {
	case EventColumnChanged:
		return formatColumnChange(ev.Column, cfg)
	case EventCommentCreated:
		return formatComment(ev.Comment)
	case EventFileCreated:
		return formatFileRef(ev.File)
	case EventStatusChanged:
		return formatStatusChange(ev.Status, cfg)
	default:
		return ""
	}
}

func formatColumnChange(change *ColumnChange, cfg *syncrules.Config) string {
	if change == nil {
		return ""
	}
	header := fmt.Sprintf("🔄 **%s Changed**", cfg.DisplayName(change.ColumnTitle))
	if cfg.IsUrgent(change.ColumnTitle) {
		header = urgentMarker + " " + header
	}
	return fmt.Sprintf("%s\n~~%s~~ → **%s**\n_Updated by %s_",
		header, change.PreviousValue, change.NewValue, change.Author)
}

func formatComment(comment *Comment) string {
	if comment == nil {
		return ""
	}
	var quoted strings.Builder
	for _, line := range strings.Split(comment.Body, "\n") {
		quoted.WriteString("> ")
		quoted.WriteString(line)
		quoted.WriteString("\n")
	}
	return fmt.Sprintf("💬 **New Comment from %s**\n%s", comment.Author, strings.TrimRight(quoted.String(), "\n"))
}

func formatFileRef(file *FileRef) string {
	if file == nil {
		return ""
	}
	msg := fmt.Sprintf("📎 **File Uploaded: %s**", file.Name)
	if file.URL != "" {
		msg += fmt.Sprintf("\n[View File](%s)", file.URL)
	}
	return msg
}

func formatStatusChange(status *StatusChange, cfg *syncrules.Config) string {
	if status == nil {
		return ""
	}
	return fmt.Sprintf("%s **Status Changed: %s**", cfg.StatusSymbol(status.Label), status.Label)
}
