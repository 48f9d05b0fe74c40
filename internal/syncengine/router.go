package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/accerat/MondayBot/internal/tracker"
)

// ItemMutator is the slice of the tracking service the router mutates
// through.
type ItemMutator interface {
	GetItem(ctx context.Context, itemID string) (tracker.Item, error)
	AddUpdate(ctx context.Context, itemID, body string) error
	AddFileByURL(ctx context.Context, itemID, fileURL, fileName string) error
	ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error
}

const helpText = `**MondayBot Commands**

Use these commands in project threads to sync with Monday.com:

**📝 Add Update:**
` + "`@MondayBot update Materials delivered to site`" + `
` + "`@MondayBot note Crew size increased to 8`" + `

**📊 Change Status:**
` + "`@MondayBot status In Progress`" + `

**📎 Upload Files:**
` + "`@MondayBot attach [attach files] Site progress photos`" + `

**💡 Quick Update:**
Just mention @MondayBot with your message:
` + "`@MondayBot Foundation work completed today`" + `

All updates include your Discord username and are posted to the Monday.com project.`

type RouterOptions struct {
	CallTimeout time.Duration
}

// Router executes outbound commands against the tracking service. The caller
// resolves the item via reverse lookup before invoking Route.
type Router struct {
	items       ItemMutator
	callTimeout time.Duration
}

func NewRouter(items ItemMutator, opts RouterOptions) *Router {
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Router{items: items, callTimeout: callTimeout}
}

// Route executes cmd against itemID and returns the user-facing confirmation
// text. Errors are classified: ValidationError and ErrNoStatusColumn go back
// to the user verbatim, upstream failures as a generic message.
func (r *Router) Route(ctx context.Context, cmd NormalizedCommand, itemID string) (string, error) {
	switch cmd.Verb {
	case VerbUpdate:
		return r.routeUpdate(ctx, cmd, itemID)
	case VerbStatus:
		return r.routeStatus(ctx, cmd, itemID)
	case VerbAttach:
		return r.routeAttach(ctx, cmd, itemID)
	case VerbHelp:
		return helpText, nil
	case VerbInfo:
		return r.routeInfo(ctx, itemID)
	default:
		return "", &ValidationError{Message: fmt.Sprintf("unknown command %q", cmd.Verb)}
	}
}

func (r *Router) routeUpdate(ctx context.Context, cmd NormalizedCommand, itemID string) (string, error) {
	if strings.TrimSpace(cmd.ArgumentText) == "" {
		return "", &ValidationError{Message: "please provide update text, e.g. `update Materials delivered to site`"}
	}
	body := fmt.Sprintf("**From %s (Discord)**:\n%s", cmd.AuthorDisplayName, cmd.ArgumentText)

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	if err := r.items.AddUpdate(callCtx, itemID, body); err != nil {
		return "", &UpstreamError{Op: "post update to item " + itemID, Err: err}
	}
	slog.Info("posted update to item", "item_id", itemID, "author", cmd.AuthorDisplayName)
	return "✅ Update posted to Monday.com", nil
}

func (r *Router) routeStatus(ctx context.Context, cmd NormalizedCommand, itemID string) (string, error) {
	statusText := strings.TrimSpace(cmd.ArgumentText)
	if statusText == "" {
		return "", &ValidationError{Message: "please specify a status, e.g. `status In Progress`"}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	item, err := r.items.GetItem(callCtx, itemID)
	if err != nil {
		return "", &UpstreamError{Op: "fetch item " + itemID, Err: err}
	}

	column, ok := findStatusColumn(item)
	if !ok {
		return "", ErrNoStatusColumn
	}
	if err := r.items.ChangeColumnValue(callCtx, item.BoardID, itemID, column.ID, statusText); err != nil {
		return "", &UpstreamError{Op: "change status of item " + itemID, Err: err}
	}
	slog.Info("changed item status", "item_id", itemID, "status", statusText, "author", cmd.AuthorDisplayName)
	return fmt.Sprintf("✅ Status changed to: **%s**", statusText), nil
}

// findStatusColumn locates the column whose title equals "status" or whose
// identifier contains it, case-insensitively.
func findStatusColumn(item tracker.Item) (tracker.Column, bool) {
	for _, column := range item.Columns {
		if strings.EqualFold(column.Title, "status") || strings.Contains(strings.ToLower(column.ID), "status") {
			return column, true
		}
	}
	return tracker.Column{}, false
}

func (r *Router) routeInfo(ctx context.Context, itemID string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	item, err := r.items.GetItem(callCtx, itemID)
	if err != nil {
		return "", &UpstreamError{Op: "fetch item " + itemID, Err: err}
	}
	return renderProjectInfo(item), nil
}

func (r *Router) routeAttach(ctx context.Context, cmd NormalizedCommand, itemID string) (string, error) {
	if len(cmd.Attachments) == 0 {
		return "", &ValidationError{Message: "please attach files to upload"}
	}

	uploaded := 0
	for _, attachment := range cmd.Attachments {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		err := r.items.AddFileByURL(callCtx, itemID, attachment.URL, attachment.Filename)
		cancel()
		if err != nil {
			// One bad file must not block the rest.
			slog.Error("file upload failed", "item_id", itemID, "file", attachment.Filename, "err", err)
			continue
		}
		uploaded++
	}
	if uploaded == 0 {
		return "", &UpstreamError{Op: "upload files to item " + itemID, Err: fmt.Errorf("all %d uploads failed", len(cmd.Attachments))}
	}

	if caption := strings.TrimSpace(cmd.ArgumentText); caption != "" {
		body := fmt.Sprintf("**From %s (Discord)**:\n%s\n\n_%d file(s) attached_", cmd.AuthorDisplayName, caption, uploaded)
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		err := r.items.AddUpdate(callCtx, itemID, body)
		cancel()
		if err != nil {
			// Files are already up; report the partial failure instead of
			// rolling back.
			slog.Error("caption post failed after upload", "item_id", itemID, "err", err)
		}
	}
	return fmt.Sprintf("✅ Uploaded %d file(s) to Monday.com", uploaded), nil
}
