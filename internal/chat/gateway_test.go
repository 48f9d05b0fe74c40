package chat

import (
	"encoding/json"
	"testing"
)

func messageCreatePayload(t *testing.T, authorID, authorName string, bot bool, content string, mentionIDs []string) json.RawMessage {
	t.Helper()
	mentions := make([]map[string]string, 0, len(mentionIDs))
	for _, id := range mentionIDs {
		mentions = append(mentions, map[string]string{"id": id})
	}
	payload := map[string]any{
		"id":         "m1",
		"channel_id": "999",
		"content":    content,
		"author":     map[string]any{"id": authorID, "username": authorName, "bot": bot},
		"mentions":   mentions,
		"attachments": []map[string]string{
			{"url": "https://cdn.example/photo.jpg", "filename": "photo.jpg"},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestParseMentionEvent(t *testing.T) {
	data := messageCreatePayload(t, "u1", "blitz", false, "<@bot1> update Materials delivered", []string{"bot1"})
	ev, ok := parseMentionEvent("bot1", data)
	if !ok {
		t.Fatal("expected mention event")
	}
	if ev.ThreadID != "999" || ev.AuthorName != "blitz" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Content != "update Materials delivered" {
		t.Fatalf("mention not stripped: %q", ev.Content)
	}
	if len(ev.Attachments) != 1 || ev.Attachments[0].Filename != "photo.jpg" {
		t.Fatalf("attachments not carried: %+v", ev.Attachments)
	}
}

func TestParseMentionEventSkipsBots(t *testing.T) {
	data := messageCreatePayload(t, "bot2", "otherbot", true, "<@bot1> hi", []string{"bot1"})
	if _, ok := parseMentionEvent("bot1", data); ok {
		t.Fatal("bot-authored message should be skipped")
	}
}

func TestParseMentionEventSkipsWithoutMention(t *testing.T) {
	data := messageCreatePayload(t, "u1", "blitz", false, "just chatting", nil)
	if _, ok := parseMentionEvent("bot1", data); ok {
		t.Fatal("message without bot mention should be skipped")
	}
}

func TestParseMentionEventRequiresKnownBotID(t *testing.T) {
	data := messageCreatePayload(t, "u1", "blitz", false, "<@bot1> hi", []string{"bot1"})
	if _, ok := parseMentionEvent("", data); ok {
		t.Fatal("events before READY should be skipped")
	}
}

func TestStripMentions(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<@123> status In Progress", "status In Progress"},
		{"<@!123> update done", "update done"},
		{"no mention here", "no mention here"},
		{"<@1> <@!2>  spaced  ", "spaced"},
	}
	for _, tc := range cases {
		if got := stripMentions(tc.in); got != tc.want {
			t.Fatalf("stripMentions(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
