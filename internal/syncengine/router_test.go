package syncengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/accerat/MondayBot/internal/chat"
	"github.com/accerat/MondayBot/internal/tracker"
)

type fakeMutator struct {
	item          tracker.Item
	getErr        error
	updateErr     error
	columnErr     error
	fileErrs      map[string]error
	updates       []string
	uploads       []string
	columnChanges []string
}

func (f *fakeMutator) GetItem(ctx context.Context, itemID string) (tracker.Item, error) {
	if f.getErr != nil {
		return tracker.Item{}, f.getErr
	}
	return f.item, nil
}

func (f *fakeMutator) AddUpdate(ctx context.Context, itemID, body string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, body)
	return nil
}

func (f *fakeMutator) AddFileByURL(ctx context.Context, itemID, fileURL, fileName string) error {
	if err := f.fileErrs[fileName]; err != nil {
		return err
	}
	f.uploads = append(f.uploads, fileName)
	return nil
}

func (f *fakeMutator) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	if f.columnErr != nil {
		return f.columnErr
	}
	f.columnChanges = append(f.columnChanges, boardID+"/"+columnID+"="+value)
	return nil
}

func TestRouteUpdateAttributesAuthor(t *testing.T) {
	mutator := &fakeMutator{}
	router := NewRouter(mutator, RouterOptions{})

	cmd := NormalizedCommand{AuthorDisplayName: "dave", Verb: VerbUpdate, ArgumentText: "Materials delivered"}
	confirmation, err := router.Route(context.Background(), cmd, "42")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.Contains(confirmation, "Update posted") {
		t.Fatalf("confirmation = %q", confirmation)
	}
	if len(mutator.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(mutator.updates))
	}
	if want := "**From dave (Discord)**:\nMaterials delivered"; mutator.updates[0] != want {
		t.Fatalf("update body = %q, want %q", mutator.updates[0], want)
	}
}

func TestRouteUpdateRejectsEmptyText(t *testing.T) {
	router := NewRouter(&fakeMutator{}, RouterOptions{})
	for _, text := range []string{"", "   "} {
		cmd := NormalizedCommand{AuthorDisplayName: "dave", Verb: VerbUpdate, ArgumentText: text}
		if _, err := router.Route(context.Background(), cmd, "42"); !errors.Is(err, ErrValidation) {
			t.Fatalf("text %q: expected ErrValidation, got %v", text, err)
		}
	}
}

func TestRouteStatusFindsColumnByTitleOrID(t *testing.T) {
	tests := []struct {
		name    string
		columns []tracker.Column
		wantID  string
	}{
		{"exact title", []tracker.Column{{ID: "c1", Title: "Status"}}, "c1"},
		{"title case fold", []tracker.Column{{ID: "c1", Title: "STATUS"}}, "c1"},
		{"id substring", []tracker.Column{{ID: "project_status_4", Title: "Phase"}}, "project_status_4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutator := &fakeMutator{item: tracker.Item{ID: "42", BoardID: "77", Columns: tt.columns}}
			router := NewRouter(mutator, RouterOptions{})

			cmd := NormalizedCommand{AuthorDisplayName: "dave", Verb: VerbStatus, ArgumentText: "In Progress"}
			confirmation, err := router.Route(context.Background(), cmd, "42")
			if err != nil {
				t.Fatalf("route: %v", err)
			}
			if !strings.Contains(confirmation, "**In Progress**") {
				t.Fatalf("confirmation = %q", confirmation)
			}
			want := "77/" + tt.wantID + "=In Progress"
			if len(mutator.columnChanges) != 1 || mutator.columnChanges[0] != want {
				t.Fatalf("column changes = %v, want [%s]", mutator.columnChanges, want)
			}
		})
	}
}

func TestRouteStatusWithoutStatusColumn(t *testing.T) {
	mutator := &fakeMutator{item: tracker.Item{ID: "42", Columns: []tracker.Column{{ID: "c1", Title: "Budget"}}}}
	router := NewRouter(mutator, RouterOptions{})

	cmd := NormalizedCommand{Verb: VerbStatus, ArgumentText: "Done"}
	if _, err := router.Route(context.Background(), cmd, "42"); !errors.Is(err, ErrNoStatusColumn) {
		t.Fatalf("expected ErrNoStatusColumn, got %v", err)
	}
}

func TestRouteStatusRejectsEmptyArgument(t *testing.T) {
	router := NewRouter(&fakeMutator{}, RouterOptions{})
	if _, err := router.Route(context.Background(), NormalizedCommand{Verb: VerbStatus}, "42"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRouteAttachUploadsIndependently(t *testing.T) {
	mutator := &fakeMutator{fileErrs: map[string]error{"bad.pdf": errors.New("413 too large")}}
	router := NewRouter(mutator, RouterOptions{})

	cmd := NormalizedCommand{
		AuthorDisplayName: "dave",
		Verb:              VerbAttach,
		ArgumentText:      "Site progress photos",
		Attachments: []chat.Attachment{
			{Filename: "one.jpg", URL: "https://cdn.example/one.jpg"},
			{Filename: "bad.pdf", URL: "https://cdn.example/bad.pdf"},
			{Filename: "two.jpg", URL: "https://cdn.example/two.jpg"},
		},
	}
	confirmation, err := router.Route(context.Background(), cmd, "42")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.Contains(confirmation, "Uploaded 2 file(s)") {
		t.Fatalf("confirmation = %q", confirmation)
	}
	if len(mutator.uploads) != 2 {
		t.Fatalf("uploads = %v", mutator.uploads)
	}
	if len(mutator.updates) != 1 || !strings.Contains(mutator.updates[0], "_2 file(s) attached_") {
		t.Fatalf("caption updates = %v", mutator.updates)
	}
}

func TestRouteAttachAllUploadsFailed(t *testing.T) {
	mutator := &fakeMutator{fileErrs: map[string]error{"bad.pdf": errors.New("413 too large")}}
	router := NewRouter(mutator, RouterOptions{})

	cmd := NormalizedCommand{
		Verb:        VerbAttach,
		Attachments: []chat.Attachment{{Filename: "bad.pdf", URL: "https://cdn.example/bad.pdf"}},
	}
	if _, err := router.Route(context.Background(), cmd, "42"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestRouteAttachRequiresAttachments(t *testing.T) {
	router := NewRouter(&fakeMutator{}, RouterOptions{})
	if _, err := router.Route(context.Background(), NormalizedCommand{Verb: VerbAttach, ArgumentText: "photos"}, "42"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRouteHelp(t *testing.T) {
	router := NewRouter(&fakeMutator{}, RouterOptions{})
	confirmation, err := router.Route(context.Background(), NormalizedCommand{Verb: VerbHelp}, "42")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	for _, want := range []string{"MondayBot Commands", "update", "status", "attach"} {
		if !strings.Contains(confirmation, want) {
			t.Fatalf("help text missing %q", want)
		}
	}
}
