package syncengine

import (
	"strings"

	"github.com/accerat/MondayBot/internal/chat"
)

type CommandVerb string

const (
	VerbUpdate    CommandVerb = "update"
	VerbStatus    CommandVerb = "status"
	VerbAttach    CommandVerb = "attach"
	VerbHelp      CommandVerb = "help"
	VerbInfo      CommandVerb = "info"
	VerbBotStatus CommandVerb = "botstatus"
)

// NormalizedCommand is one user instruction issued inside a thread.
type NormalizedCommand struct {
	ThreadID          string
	AuthorDisplayName string
	Verb              CommandVerb
	ArgumentText      string
	Attachments       []chat.Attachment
}

// ParseCommand splits a mention's text into verb and argument. Text with no
// recognized leading verb is treated entirely as update text.
func ParseCommand(content string) (CommandVerb, string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return VerbUpdate, ""
	}
	parts := strings.Fields(content)
	verb := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(content, parts[0]))

	switch verb {
	case "update", "note", "comment":
		return VerbUpdate, rest
	case "status":
		return VerbStatus, rest
	case "attach", "upload":
		return VerbAttach, rest
	case "help":
		return VerbHelp, ""
	case "info", "project-info":
		if rest == "" {
			return VerbInfo, ""
		}
		return VerbUpdate, content
	case "botstatus", "monday-status":
		if rest == "" {
			return VerbBotStatus, ""
		}
		return VerbUpdate, content
	default:
		return VerbUpdate, content
	}
}
