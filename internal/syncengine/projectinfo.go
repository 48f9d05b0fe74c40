package syncengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/accerat/MondayBot/internal/mapstore"
	"github.com/accerat/MondayBot/internal/tracker"
)

// ProjectInfo renders the linked item's field summary for a thread.
func ProjectInfo(ctx context.Context, items ItemFetcher, store *mapstore.Store, threadID string) (string, error) {
	itemID, ok := store.GetReverse(threadID)
	if !ok {
		return "", ErrNotLinked
	}
	item, err := items.GetItem(ctx, itemID)
	if err != nil {
		return "", &UpstreamError{Op: "fetch item " + itemID, Err: err}
	}
	return renderProjectInfo(item), nil
}

// renderProjectInfo formats an item's non-empty fields for a chat reply.
func renderProjectInfo(item tracker.Item) string {
	var b strings.Builder
	b.WriteString("📋 **Project Information**\n\n")
	fmt.Fprintf(&b, "**%s**\n", item.Name)
	fmt.Fprintf(&b, "Monday.com ID: `%s`\n\n", item.ID)

	fields := item.Fields()
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "• **%s:** %s\n", name, fields[name])
	}
	return strings.TrimRight(b.String(), "\n")
}
