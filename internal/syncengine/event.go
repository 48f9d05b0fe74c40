package syncengine

import (
	"strconv"
	"strings"
)

type EventKind string

const (
	EventColumnChanged  EventKind = "column_changed"
	EventCommentCreated EventKind = "comment_created"
	EventFileCreated    EventKind = "file_created"
	EventStatusChanged  EventKind = "status_changed"
)

type ColumnChange struct {
	ColumnTitle   string
	PreviousValue string
	NewValue      string
	Author        string
}

type Comment struct {
	Author string
	Body   string
}

type FileRef struct {
	Name string
	URL  string
}

type StatusChange struct {
	Label string
}

// NormalizedEvent is one item-changed notification with a fully typed payload
// for its kind. Exactly one payload pointer is set.
type NormalizedEvent struct {
	Kind        EventKind
	ItemID      string
	ProjectName string
	Column      *ColumnChange
	Comment     *Comment
	File        *FileRef
	Status      *StatusChange
}

// NormalizeEvent translates a raw webhook event object into a typed event.
// The source service is loose about field names, so every alias is resolved
// here and nowhere else. Returns false for events without an item ID or with
// an unhandled type.
func NormalizeEvent(raw map[string]any) (NormalizedEvent, bool) {
	if raw == nil {
		return NormalizedEvent{}, false
	}
	itemID := firstString(raw, "pulseId", "itemId")
	if itemID == "" {
		return NormalizedEvent{}, false
	}
	ev := NormalizedEvent{
		ItemID:      itemID,
		ProjectName: firstString(raw, "pulseName"),
	}

	switch toString(raw["type"]) {
	case "update_column_value":
		ev.Kind = EventColumnChanged
		ev.Column = &ColumnChange{
			ColumnTitle:   fallback(firstString(raw, "columnTitle", "column_title"), "Field"),
			NewValue:      fallback(firstLabelText(raw["value"], toString(raw["textValue"])), "Updated"),
			PreviousValue: fallback(firstLabelText(raw["previousValue"], ""), "N/A"),
			Author:        fallback(firstString(raw, "userName", "userId"), "Unknown"),
		}
	case "create_update":
		ev.Kind = EventCommentCreated
		ev.Comment = &Comment{
			Author: fallback(firstString(raw, "userName"), "Someone"),
			Body:   fallback(firstString(raw, "textBody", "body"), "No content"),
		}
	case "create_file":
		ev.Kind = EventFileCreated
		ev.File = &FileRef{
			Name: fallback(firstString(raw, "fileName"), "File"),
			URL:  firstString(raw, "fileUrl", "url"),
		}
	case "change_status_column_value":
		ev.Kind = EventStatusChanged
		ev.Status = &StatusChange{
			Label: fallback(firstLabelText(raw["value"], ""), "Unknown"),
		}
	default:
		return NormalizedEvent{}, false
	}
	return ev, true
}

// firstLabelText digs a display value out of the service's nested column
// value shapes: {"label":{"text":...}}, {"text":...}, or a flat fallback.
func firstLabelText(value any, flat string) string {
	if m, ok := value.(map[string]any); ok {
		if label, ok := m["label"].(map[string]any); ok {
			if text := toString(label["text"]); text != "" {
				return text
			}
		}
		if text := toString(m["text"]); text != "" {
			return text
		}
	}
	return strings.TrimSpace(flat)
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := toString(raw[key]); value != "" {
			return value
		}
	}
	return ""
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func fallback(value, alt string) string {
	if value == "" {
		return alt
	}
	return value
}
