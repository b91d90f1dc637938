// Package workflow runs the per-message pipeline: fetch, normalize,
// classify, extract, then either book a calendar event or ask the sender for
// availability, and finally mark the message read.
package workflow

import (
	"context"

	"github.com/bassamadnan/mailsched/ledger"
	"github.com/bassamadnan/mailsched/meeting"
	"github.com/bassamadnan/mailsched/message"
)

// Mailbox lists, reads, answers and marks messages.
type Mailbox interface {
	ListUnread(ctx context.Context) ([]string, error)
	FetchHeaders(ctx context.Context, id string) ([]message.Header, error)
	FetchRawBody(ctx context.Context, id string) (string, error)
	MarkRead(ctx context.Context, id string) error
	SendMessage(ctx context.Context, raw []byte) (string, error)
}

// Calendar creates events. It returns meeting.ErrEventExists when an event
// with the same id is already there.
type Calendar interface {
	CreateEvent(ctx context.Context, ev *meeting.Event) (string, error)
}

// Assistant is the language understanding service.
type Assistant interface {
	ClassifyMeetingIntent(ctx context.Context, text string) (bool, error)
	ExtractMeetingDetails(ctx context.Context, text, actorName, referenceDate string) (*meeting.Details, error)
	ComposeAvailabilityRequest(ctx context.Context, text, actorName string) (string, error)
}

// Ledger remembers committed terminal actions across runs.
type Ledger interface {
	Lookup(ctx context.Context, messageID string) (*ledger.Entry, error)
	Record(ctx context.Context, e ledger.Entry) error
	StartRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, c ledger.Counts) error
}

// Filter decides which messages are left alone entirely.
type Filter interface {
	Match(from, subject string) (rule string, ok bool)
}

// Services are the collaborators of one Orchestrator. Ledger and Filter are optional.
type Services struct {
	Mailbox   Mailbox
	Calendar  Calendar
	Assistant Assistant
	Ledger    Ledger
	Filter    Filter
}
