package syncengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/accerat/MondayBot/internal/syncrules"
	"github.com/accerat/MondayBot/internal/tracker"
)

// ItemFetcher is the slice of the tracking service the dispatcher needs.
type ItemFetcher interface {
	GetItem(ctx context.Context, itemID string) (tracker.Item, error)
}

// MessageSender posts a formatted message to a channel or thread.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, content string) error
}

type DispatcherOptions struct {
	CallTimeout time.Duration
}

// Dispatcher turns inbound item-changed events into thread messages:
// snapshot, eligibility, resolution, formatting, delivery.
type Dispatcher struct {
	items       ItemFetcher
	sender      MessageSender
	resolver    *Resolver
	rules       *syncrules.Provider
	callTimeout time.Duration
}

func NewDispatcher(items ItemFetcher, sender MessageSender, resolver *Resolver, rules *syncrules.Provider, opts DispatcherOptions) *Dispatcher {
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	if rules == nil {
		rules = syncrules.NewProvider(nil)
	}
	return &Dispatcher{
		items:       items,
		sender:      sender,
		resolver:    resolver,
		rules:       rules,
		callTimeout: callTimeout,
	}
}

// Dispatch handles one normalized event. A nil return means the event was
// delivered or intentionally skipped; errors are classified per the engine
// taxonomy and never leave partial mapping state behind.
func (d *Dispatcher) Dispatch(ctx context.Context, ev NormalizedEvent) error {
	if ev.ItemID == "" {
		return &ValidationError{Message: "event has no item id"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	item, fetchErr := d.items.GetItem(fetchCtx, ev.ItemID)
	cancel()

	var fields map[string]string
	if fetchErr == nil {
		fields = item.Fields()
	}
	if !d.rules.Current().Evaluate(fields, fetchErr) {
		slog.Debug("event not eligible for sync, skipping", "item_id", ev.ItemID, "kind", ev.Kind)
		return nil
	}

	projectName := ev.ProjectName
	if projectName == "" && fetchErr == nil {
		projectName = item.Name
	}

	resolveCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	threadID, err := d.resolver.Resolve(resolveCtx, ev.ItemID, projectName)
	cancel()
	if err != nil {
		slog.Error("thread resolution failed, dropping event", "item_id", ev.ItemID, "kind", ev.Kind, "err", err)
		return err
	}

	content := FormatEventMessage(ev, d.rules.Current())
	if content == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	err = d.sender.SendMessage(sendCtx, threadID, content)
	cancel()
	if err != nil {
		slog.Error("message delivery failed", "item_id", ev.ItemID, "thread_id", threadID, "err", err)
		return &UpstreamError{Op: "send message to " + threadID, Err: err}
	}
	slog.Info("posted event to thread", "item_id", ev.ItemID, "thread_id", threadID, "kind", ev.Kind)
	return nil
}
