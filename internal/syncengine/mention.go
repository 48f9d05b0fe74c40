package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/accerat/MondayBot/internal/chat"
	"github.com/accerat/MondayBot/internal/mapstore"
)

// Replier is the slice of the chat platform used to answer a command in its
// thread.
type Replier interface {
	Reply(ctx context.Context, channelID, messageID, content string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// MentionProcessor resolves a mention's thread back to its item and routes
// the parsed command, replying with the outcome.
type MentionProcessor struct {
	store       *mapstore.Store
	router      *Router
	replier     Replier
	status      *StatusReporter
	callTimeout time.Duration
}

type MentionOptions struct {
	Status      *StatusReporter
	CallTimeout time.Duration
}

func NewMentionProcessor(store *mapstore.Store, router *Router, replier Replier, opts MentionOptions) *MentionProcessor {
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &MentionProcessor{
		store:       store,
		router:      router,
		replier:     replier,
		status:      opts.Status,
		callTimeout: callTimeout,
	}
}

// HandleMention processes one bot mention end to end. All failures are
// reported to the user as short messages; diagnostics go to the log.
func (p *MentionProcessor) HandleMention(ctx context.Context, ev chat.MentionEvent) {
	verb, argument := ParseCommand(ev.Content)

	// Bot status works everywhere, linked or not.
	if verb == VerbBotStatus {
		if p.status == nil {
			p.reply(ctx, ev, "❌ Status reporting is not available.")
			return
		}
		p.reply(ctx, ev, RenderStatusMessage(p.status.Report()))
		return
	}

	itemID, ok := p.store.GetReverse(ev.ThreadID)
	if !ok {
		slog.Debug("mention in unlinked thread", "thread_id", ev.ThreadID, "author", ev.AuthorName)
		p.reply(ctx, ev, "❌ This thread is not linked to a Monday.com project.")
		return
	}

	cmd := NormalizedCommand{
		ThreadID:          ev.ThreadID,
		AuthorDisplayName: ev.AuthorName,
		Verb:              verb,
		ArgumentText:      argument,
		Attachments:       ev.Attachments,
	}

	confirmation, err := p.router.Route(ctx, cmd, itemID)
	if err != nil {
		p.reply(ctx, ev, userFacingError(err))
		return
	}
	p.react(ctx, ev, "✅")
	p.reply(ctx, ev, confirmation)
}

// userFacingError keeps internal diagnostics out of the thread: validation
// and linkage problems are specific, upstream failures generic.
func userFacingError(err error) string {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return "❌ " + validation.Message
	case errors.Is(err, ErrNoStatusColumn):
		return "❌ Could not find status column on this Monday.com item."
	case errors.Is(err, ErrNotLinked):
		return "❌ This thread is not linked to a Monday.com project."
	default:
		return "❌ An error occurred talking to Monday.com. Please try again."
	}
}

func (p *MentionProcessor) reply(ctx context.Context, ev chat.MentionEvent, content string) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	if err := p.replier.Reply(callCtx, ev.ThreadID, ev.MessageID, content); err != nil {
		slog.Error("reply failed", "thread_id", ev.ThreadID, "err", err)
	}
}

func (p *MentionProcessor) react(ctx context.Context, ev chat.MentionEvent, emoji string) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	if err := p.replier.AddReaction(callCtx, ev.ThreadID, ev.MessageID, emoji); err != nil {
		slog.Debug("reaction failed", "thread_id", ev.ThreadID, "err", err)
	}
}
