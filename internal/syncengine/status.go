package syncengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/accerat/MondayBot/internal/mapstore"
)

// MappingSummary is one recent mapping on the status report.
type MappingSummary struct {
	ItemID      string    `json:"itemId"`
	ThreadID    string    `json:"threadId"`
	ProjectName string    `json:"projectName"`
	MappedAt    time.Time `json:"mappedAt"`
}

// StatusReport is the read-only health surface: no mutation, informational
// only.
type StatusReport struct {
	Online            bool             `json:"online"`
	MappedItems       int              `json:"mappedItems"`
	RecentMappings    []MappingSummary `json:"recentMappings"`
	WebhookPort       int              `json:"webhookPort"`
	TrackerConfigured bool             `json:"trackerConfigured"`
}

type OnlineChecker interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// StatusReporter assembles the bot status from the mapping store and the
// gateway connection state.
type StatusReporter struct {
	store             *mapstore.Store
	online            OnlineChecker
	webhookPort       int
	trackerConfigured bool
}

func NewStatusReporter(store *mapstore.Store, online OnlineChecker, webhookPort int, trackerConfigured bool) *StatusReporter {
	if online == nil {
		online = alwaysOnline{}
	}
	return &StatusReporter{
		store:             store,
		online:            online,
		webhookPort:       webhookPort,
		trackerConfigured: trackerConfigured,
	}
}

func (r *StatusReporter) Report() StatusReport {
	recent := r.store.Recent(5)
	summaries := make([]MappingSummary, 0, len(recent))
	for _, rec := range recent {
		summaries = append(summaries, MappingSummary{
			ItemID:      rec.ItemID,
			ThreadID:    rec.ThreadID,
			ProjectName: rec.ProjectName,
			MappedAt:    rec.MappedAt,
		})
	}
	return StatusReport{
		Online:            r.online.Online(),
		MappedItems:       r.store.Len(),
		RecentMappings:    summaries,
		WebhookPort:       r.webhookPort,
		TrackerConfigured: r.trackerConfigured,
	}
}

// RenderStatusMessage formats the report for a chat reply.
func RenderStatusMessage(report StatusReport) string {
	var b strings.Builder
	b.WriteString("**🤖 MondayBot Status**\n\n")
	if report.Online {
		b.WriteString("✅ Bot is online and running\n")
	} else {
		b.WriteString("⚠️ Gateway disconnected\n")
	}
	fmt.Fprintf(&b, "📊 Mapped threads: %d\n", report.MappedItems)
	if len(report.RecentMappings) > 0 {
		b.WriteString("\n**Recent Mappings:**\n")
		for _, mapping := range report.RecentMappings {
			fmt.Fprintf(&b, "• %s (ID: %s)\n", mapping.ProjectName, mapping.ItemID)
		}
	}
	fmt.Fprintf(&b, "\n**Webhook Server:** Running on port %d\n", report.WebhookPort)
	if report.TrackerConfigured {
		b.WriteString("**Monday.com API:** Configured ✅")
	} else {
		b.WriteString("**Monday.com API:** Not configured ❌")
	}
	return b.String()
}
