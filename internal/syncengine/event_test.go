package syncengine

import "testing"

func TestNormalizeColumnChangeAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want ColumnChange
	}{
		{
			name: "camel case with label object",
			raw: map[string]any{
				"type":          "update_column_value",
				"pulseId":       float64(12345),
				"columnTitle":   "Deadline",
				"value":         map[string]any{"label": map[string]any{"text": "Friday"}},
				"previousValue": map[string]any{"text": "Monday"},
				"userName":      "rob",
			},
			want: ColumnChange{ColumnTitle: "Deadline", NewValue: "Friday", PreviousValue: "Monday", Author: "rob"},
		},
		{
			name: "snake case title and flat text value",
			raw: map[string]any{
				"type":         "update_column_value",
				"itemId":       "99",
				"column_title": "Budget",
				"textValue":    "50000",
				"userId":       float64(777),
			},
			want: ColumnChange{ColumnTitle: "Budget", NewValue: "50000", PreviousValue: "N/A", Author: "777"},
		},
		{
			name: "everything missing falls back to placeholders",
			raw: map[string]any{
				"type":    "update_column_value",
				"pulseId": "7",
			},
			want: ColumnChange{ColumnTitle: "Field", NewValue: "Updated", PreviousValue: "N/A", Author: "Unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := NormalizeEvent(tt.raw)
			if !ok {
				t.Fatal("expected event to normalize")
			}
			if ev.Kind != EventColumnChanged || ev.Column == nil {
				t.Fatalf("wrong kind %q", ev.Kind)
			}
			if *ev.Column != tt.want {
				t.Fatalf("got %+v, want %+v", *ev.Column, tt.want)
			}
		})
	}
}

func TestNormalizeNumericItemID(t *testing.T) {
	ev, ok := NormalizeEvent(map[string]any{
		"type":      "create_update",
		"pulseId":   float64(9007199254),
		"pulseName": "Acme Office Build",
		"textBody":  "Crew arrived on site",
		"userName":  "dave",
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.ItemID != "9007199254" {
		t.Fatalf("item id = %q", ev.ItemID)
	}
	if ev.ProjectName != "Acme Office Build" {
		t.Fatalf("project name = %q", ev.ProjectName)
	}
	if ev.Comment == nil || ev.Comment.Body != "Crew arrived on site" || ev.Comment.Author != "dave" {
		t.Fatalf("comment = %+v", ev.Comment)
	}
}

func TestNormalizeCommentBodyAlias(t *testing.T) {
	ev, ok := NormalizeEvent(map[string]any{
		"type":    "create_update",
		"pulseId": "5",
		"body":    "fallback body",
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.Comment.Body != "fallback body" || ev.Comment.Author != "Someone" {
		t.Fatalf("comment = %+v", ev.Comment)
	}
}

func TestNormalizeFileCreated(t *testing.T) {
	ev, ok := NormalizeEvent(map[string]any{
		"type":     "create_file",
		"pulseId":  "5",
		"fileName": "site.jpg",
		"url":      "https://files.example/site.jpg",
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.Kind != EventFileCreated {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.File.Name != "site.jpg" || ev.File.URL != "https://files.example/site.jpg" {
		t.Fatalf("file = %+v", ev.File)
	}
}

func TestNormalizeStatusChanged(t *testing.T) {
	ev, ok := NormalizeEvent(map[string]any{
		"type":    "change_status_column_value",
		"pulseId": "5",
		"value":   map[string]any{"label": map[string]any{"text": "Done"}},
	})
	if !ok {
		t.Fatal("expected event to normalize")
	}
	if ev.Kind != EventStatusChanged || ev.Status.Label != "Done" {
		t.Fatalf("status = %+v", ev.Status)
	}
}

func TestNormalizeRejectsUnusableEvents(t *testing.T) {
	rejected := []map[string]any{
		nil,
		{"type": "update_column_value"},
		{"type": "delete_pulse", "pulseId": "5"},
		{"pulseId": "5"},
	}
	for _, raw := range rejected {
		if _, ok := NormalizeEvent(raw); ok {
			t.Fatalf("expected %v to be rejected", raw)
		}
	}
}
