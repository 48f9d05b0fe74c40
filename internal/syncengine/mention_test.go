package syncengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/accerat/MondayBot/internal/chat"
	"github.com/accerat/MondayBot/internal/mapstore"
	"github.com/accerat/MondayBot/internal/tracker"
)

type fakeReplier struct {
	replies   []string
	reactions []string
}

func (f *fakeReplier) Reply(ctx context.Context, channelID, messageID, content string) error {
	f.replies = append(f.replies, content)
	return nil
}

func (f *fakeReplier) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}

func newMentionFixture(t *testing.T, mutator *fakeMutator) (*MentionProcessor, *fakeReplier, *mapstore.Store) {
	t.Helper()
	store, err := mapstore.NewStore(mapstore.NewInMemoryStateBackend())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	replier := &fakeReplier{}
	processor := NewMentionProcessor(store, NewRouter(mutator, RouterOptions{}), replier, MentionOptions{
		Status: NewStatusReporter(store, nil, 3000, true),
	})
	return processor, replier, store
}

func mention(content string) chat.MentionEvent {
	return chat.MentionEvent{
		ThreadID:   "t1",
		MessageID:  "m1",
		AuthorID:   "u1",
		AuthorName: "dave",
		Content:    content,
	}
}

func TestHandleMentionRoutesLinkedThread(t *testing.T) {
	mutator := &fakeMutator{}
	processor, replier, store := newMentionFixture(t, mutator)
	if _, err := store.Put("42", "t1", "Acme Office Build"); err != nil {
		t.Fatalf("put: %v", err)
	}

	processor.HandleMention(context.Background(), mention("update Materials delivered"))

	if len(mutator.updates) != 1 {
		t.Fatalf("updates = %v", mutator.updates)
	}
	if len(replier.reactions) != 1 || replier.reactions[0] != "✅" {
		t.Fatalf("reactions = %v", replier.reactions)
	}
	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "Update posted") {
		t.Fatalf("replies = %v", replier.replies)
	}
}

func TestHandleMentionUnlinkedThread(t *testing.T) {
	mutator := &fakeMutator{}
	processor, replier, _ := newMentionFixture(t, mutator)

	processor.HandleMention(context.Background(), mention("update hello"))

	if len(mutator.updates) != 0 {
		t.Fatal("unlinked thread must not reach the tracking service")
	}
	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "not linked") {
		t.Fatalf("replies = %v", replier.replies)
	}
	if len(replier.reactions) != 0 {
		t.Fatalf("reactions = %v", replier.reactions)
	}
}

func TestHandleMentionValidationMessageVerbatim(t *testing.T) {
	processor, replier, store := newMentionFixture(t, &fakeMutator{})
	if _, err := store.Put("42", "t1", "Acme Office Build"); err != nil {
		t.Fatalf("put: %v", err)
	}

	processor.HandleMention(context.Background(), mention("update"))

	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "please provide update text") {
		t.Fatalf("replies = %v", replier.replies)
	}
}

func TestHandleMentionUpstreamFailureIsGeneric(t *testing.T) {
	mutator := &fakeMutator{updateErr: errors.New("monday: 502 upstream timeout at 10.0.3.7")}
	processor, replier, store := newMentionFixture(t, mutator)
	if _, err := store.Put("42", "t1", "Acme Office Build"); err != nil {
		t.Fatalf("put: %v", err)
	}

	processor.HandleMention(context.Background(), mention("update hello"))

	if len(replier.replies) != 1 {
		t.Fatalf("replies = %v", replier.replies)
	}
	if strings.Contains(replier.replies[0], "10.0.3.7") {
		t.Fatalf("internal diagnostics leaked: %q", replier.replies[0])
	}
	if !strings.Contains(replier.replies[0], "error occurred") {
		t.Fatalf("replies = %v", replier.replies)
	}
}

func TestHandleMentionBotStatusWorksUnlinked(t *testing.T) {
	processor, replier, _ := newMentionFixture(t, &fakeMutator{})

	processor.HandleMention(context.Background(), mention("botstatus"))

	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "MondayBot Status") {
		t.Fatalf("replies = %v", replier.replies)
	}
}

func TestHandleMentionProjectInfo(t *testing.T) {
	mutator := &fakeMutator{item: tracker.Item{
		ID:      "42",
		Name:    "Acme Office Build",
		Columns: []tracker.Column{{ID: "status", Title: "Status", Text: "In Progress"}},
	}}
	processor, replier, store := newMentionFixture(t, mutator)
	if _, err := store.Put("42", "t1", "Acme Office Build"); err != nil {
		t.Fatalf("put: %v", err)
	}

	processor.HandleMention(context.Background(), mention("info"))

	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "**Status:** In Progress") {
		t.Fatalf("replies = %v", replier.replies)
	}
}

func TestUserFacingErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ValidationError{Message: "please specify a status"}, "please specify a status"},
		{ErrNoStatusColumn, "status column"},
		{ErrNotLinked, "not linked"},
		{&UpstreamError{Op: "fetch item", Err: errors.New("boom")}, "error occurred"},
		{errors.New("plain"), "error occurred"},
	}
	for _, tt := range tests {
		if got := userFacingError(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("userFacingError(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}
