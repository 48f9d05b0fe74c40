package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/accerat/MondayBot/internal/chat"
	"github.com/accerat/MondayBot/internal/mapstore"
)

const itemMarkerPrefix = "Monday Item ID: "

// ItemMarker is the canonical first-message tag that binds a thread to its
// item. Thread search matches on it; thread creation seeds it.
func ItemMarker(itemID string) string {
	return itemMarkerPrefix + itemID
}

// ThreadDirectory is the slice of the chat platform the resolver needs to
// search for and create threads.
type ThreadDirectory interface {
	GuildForums(ctx context.Context, guildID, categoryID string) ([]chat.Channel, error)
	ActiveThreads(ctx context.Context, guildID string) ([]chat.Thread, error)
	ArchivedThreads(ctx context.Context, forumID string) ([]chat.Thread, error)
	FirstMessage(ctx context.Context, threadID string) (chat.Message, error)
	CreateForumThread(ctx context.Context, forumID, name, firstMessage string) (chat.Thread, error)
}

type ResolverConfig struct {
	GuildID    string
	CategoryID string
}

// Resolver guarantees at most one thread per item. The resolve sequence is a
// check-then-act race under concurrent webhook delivery, so it runs under a
// per-item slot: a second caller for the same item waits, then observes the
// first caller's mapping instead of creating its own thread.
type Resolver struct {
	store *mapstore.Store
	dir   ThreadDirectory
	cfg   ResolverConfig

	slotMu sync.Mutex
	slots  map[string]chan struct{}
}

func NewResolver(store *mapstore.Store, dir ThreadDirectory, cfg ResolverConfig) *Resolver {
	return &Resolver{
		store: store,
		dir:   dir,
		cfg:   cfg,
		slots: map[string]chan struct{}{},
	}
}

// Resolve returns the thread ID for itemID, creating and registering a new
// thread when no mapping and no marker-tagged thread exists. projectName
// titles a newly created thread.
func (r *Resolver) Resolve(ctx context.Context, itemID, projectName string) (string, error) {
	if strings.TrimSpace(itemID) == "" {
		return "", &ValidationError{Message: "item id is required"}
	}
	if rec, ok := r.store.Get(itemID); ok {
		return rec.ThreadID, nil
	}

	release, err := r.acquireItemSlot(ctx, itemID)
	if err != nil {
		return "", err
	}
	defer release()

	// A concurrent resolution may have completed while we waited.
	if rec, ok := r.store.Get(itemID); ok {
		return rec.ThreadID, nil
	}

	forums, err := r.dir.GuildForums(ctx, r.cfg.GuildID, r.cfg.CategoryID)
	if err != nil {
		return "", &UpstreamError{Op: "list forums", Err: err}
	}

	threadID, err := r.findExistingThread(ctx, itemID, forums)
	if err != nil {
		// Creating despite a failed search risks a duplicate of an existing
		// unmapped thread, so the event is dropped instead.
		return "", err
	}
	if threadID != "" {
		if _, err := r.store.Put(itemID, threadID, fallback(projectName, "Unknown Project")); err != nil {
			return "", err
		}
		return threadID, nil
	}

	thread, err := r.createThread(ctx, itemID, projectName, forums)
	if err != nil {
		return "", err
	}
	if _, err := r.store.Put(itemID, thread.ID, fallback(projectName, thread.Name)); err != nil {
		return "", err
	}
	return thread.ID, nil
}

// acquireItemSlot blocks until this goroutine holds the item's resolution
// slot or ctx expires. The slot is a one-deep channel per item, so a stuck
// external call cannot wedge other items.
func (r *Resolver) acquireItemSlot(ctx context.Context, itemID string) (func(), error) {
	r.slotMu.Lock()
	slot, ok := r.slots[itemID]
	if !ok {
		slot = make(chan struct{}, 1)
		r.slots[itemID] = slot
	}
	r.slotMu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() {
			select {
			case <-slot:
			default:
			}
		}, nil
	case <-ctx.Done():
		return nil, &UpstreamError{Op: "resolve " + itemID, Err: ctx.Err()}
	}
}

func (r *Resolver) findExistingThread(ctx context.Context, itemID string, forums []chat.Channel) (string, error) {
	forumIDs := make(map[string]bool, len(forums))
	for _, forum := range forums {
		forumIDs[forum.ID] = true
	}

	active, err := r.dir.ActiveThreads(ctx, r.cfg.GuildID)
	if err != nil {
		return "", &UpstreamError{Op: "list active threads", Err: err}
	}
	marker := ItemMarker(itemID)
	for _, thread := range active {
		if !forumIDs[thread.ParentID] {
			continue
		}
		matched, err := r.threadCarriesMarker(ctx, thread.ID, marker)
		if err != nil {
			return "", err
		}
		if matched {
			return thread.ID, nil
		}
	}

	for _, forum := range forums {
		archived, err := r.dir.ArchivedThreads(ctx, forum.ID)
		if err != nil {
			return "", &UpstreamError{Op: "list archived threads", Err: err}
		}
		for _, thread := range archived {
			matched, err := r.threadCarriesMarker(ctx, thread.ID, marker)
			if err != nil {
				return "", err
			}
			if matched {
				return thread.ID, nil
			}
		}
	}
	return "", nil
}

func (r *Resolver) threadCarriesMarker(ctx context.Context, threadID, marker string) (bool, error) {
	first, err := r.dir.FirstMessage(ctx, threadID)
	if err != nil {
		return false, &UpstreamError{Op: "fetch first message of " + threadID, Err: err}
	}
	return strings.Contains(first.Content, marker), nil
}

func (r *Resolver) createThread(ctx context.Context, itemID, projectName string, forums []chat.Channel) (chat.Thread, error) {
	if len(forums) == 0 {
		return chat.Thread{}, fmt.Errorf("%w: no forum channel in category %s", ErrThreadCreationFailed, r.cfg.CategoryID)
	}

	title := fallback(projectName, "Project "+itemID)
	seed := ItemMarker(itemID) + "\n" + title
	thread, err := r.dir.CreateForumThread(ctx, forums[0].ID, title, seed)
	if err != nil {
		slog.Error("thread creation failed, dropping event", "item_id", itemID, "err", err)
		return chat.Thread{}, fmt.Errorf("%w: %v", ErrThreadCreationFailed, err)
	}
	slog.Info("created thread for item", "item_id", itemID, "thread_id", thread.ID, "title", title)
	return thread, nil
}
