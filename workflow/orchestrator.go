package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bassamadnan/mailsched/ledger"
	"github.com/bassamadnan/mailsched/meeting"
	"github.com/bassamadnan/mailsched/message"
)

// Options tune an Orchestrator.
type Options struct {
	// ActorName is who the assistant schedules and signs replies for.
	ActorName string
	Builder   meeting.Builder
	// MarkReadOnFailure keeps marking a message read when its event or reply
	// failed. When false, such a message stays unread and is retried.
	MarkReadOnFailure bool
	// DryRun classifies and extracts but creates, sends and marks nothing.
	DryRun bool
}

// Orchestrator processes unread messages one at a time.
type Orchestrator struct {
	svc  Services
	opts Options
}

// New creates an Orchestrator around svc.
func New(svc Services, opts Options) *Orchestrator {
	opts.Builder = meeting.NewBuilder(opts.Builder.TimeZone, opts.Builder.Duration)
	return &Orchestrator{svc: svc, opts: opts}
}

// Run processes every unread message once. Only a failure to list the
// mailbox aborts the run; per-message failures are recorded in the summary.
// A cancelled ctx stops the run before the next message.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{DryRun: o.opts.DryRun}
	summary.RunID = o.startRun(ctx)

	ids, err := o.svc.Mailbox.ListUnread(ctx)
	if err != nil {
		o.finishRun(summary)
		return summary, fmt.Errorf("listing unread messages: %w", err)
	}
	log.Info().Int("count", len(ids)).Str("run_id", summary.RunID).Msg("Workflow: processing unread messages")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("Workflow: run cancelled")
			o.finishRun(summary)
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, o.process(ctx, summary.RunID, id))
	}

	o.finishRun(summary)
	c := summary.Counts()
	log.Info().
		Int("processed", c.Processed).
		Int("scheduled", c.Scheduled).
		Int("clarified", c.Clarified).
		Int("failed", c.Failed).
		Int("skipped", c.Skipped).
		Msg("Workflow: run complete")
	return summary, nil
}

// Process takes one message through the pipeline.
func (o *Orchestrator) Process(ctx context.Context, id string) Outcome {
	return o.process(ctx, "", id)
}

func (o *Orchestrator) process(ctx context.Context, runID, id string) Outcome {
	out := Outcome{ID: id, State: StateFetched, DryRun: o.opts.DryRun, runID: runID}

	email, err := o.fetch(ctx, id)
	if err != nil {
		out.Err = fatal(StepFetch, err)
		return o.done(out)
	}
	out.State = StateNormalized
	out.From = email.From()
	out.Subject = email.Subject()
	out.key = email.Key()

	if o.svc.Filter != nil {
		if rule, ok := o.svc.Filter.Match(email.From(), email.Subject()); ok {
			out.Action = ActionFiltered
			out.Detail = rule
			return o.done(out)
		}
	}

	if prior := o.lookup(ctx, out.key); prior != nil {
		out.Action = ActionAlreadyDone
		out.Detail = prior.Detail
		return o.done(o.markRead(ctx, out))
	}

	if stepErr := o.decide(ctx, email, &out); stepErr != nil {
		out.Err = stepErr
		if stepErr.Fatal || !o.opts.MarkReadOnFailure {
			return o.done(out)
		}
	}
	return o.done(o.markRead(ctx, out))
}

func (o *Orchestrator) fetch(ctx context.Context, id string) (*message.Email, error) {
	headers, err := o.svc.Mailbox.FetchHeaders(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := o.svc.Mailbox.FetchRawBody(ctx, id)
	if err != nil {
		return nil, err
	}
	return message.Normalize(id, headers, raw), nil
}

// decide classifies the message and commits its terminal action.
func (o *Orchestrator) decide(ctx context.Context, email *message.Email, out *Outcome) *StepError {
	text := email.PlainText()

	isMeeting, err := o.svc.Assistant.ClassifyMeetingIntent(ctx, text)
	if err != nil {
		return fatal(StepClassify, err)
	}
	out.State = StateClassified
	if !isMeeting {
		out.Action = ActionNone
		return nil
	}

	details, err := o.svc.Assistant.ExtractMeetingDetails(ctx, text, o.opts.ActorName, message.ReferenceDate(email.Date()))
	if err != nil {
		return fatal(StepExtract, err)
	}

	if details.Schedulable() {
		out.State = StateScheduling
		out.Action = ActionEvent
		return o.schedule(ctx, email, details, out)
	}
	out.State = StateClarifying
	out.Action = ActionReply
	return o.clarify(ctx, email, out)
}

func (o *Orchestrator) schedule(ctx context.Context, email *message.Email, details *meeting.Details, out *Outcome) *StepError {
	details.AddAttendees(email.To(), email.From())

	ev, err := o.opts.Builder.Build(details)
	if err != nil {
		return recovered(StepBuild, err)
	}
	ev.ID = meeting.EventID(email.Key())

	if o.opts.DryRun {
		log.Info().
			Str("msg_id", email.ID).
			Str("summary", ev.Summary).
			Str("start", ev.Start.String()).
			Str("end", ev.End.String()).
			Str("tz", ev.Start.TimeZone).
			Strs("attendees", ev.Attendees).
			Msg("Workflow: dry run, would create event")
		return nil
	}

	link, err := o.svc.Calendar.CreateEvent(ctx, ev)
	switch {
	case errors.Is(err, meeting.ErrEventExists):
		log.Info().Str("msg_id", email.ID).Str("event_id", ev.ID).Msg("Workflow: event already exists")
		out.Detail = "already exists"
	case err != nil:
		o.record(ctx, out, ledger.ActionCreateEvent, ledger.StatusFailed, err.Error())
		return recovered(StepCreate, err)
	default:
		out.Detail = link
	}
	o.record(ctx, out, ledger.ActionCreateEvent, ledger.StatusOK, out.Detail)
	return nil
}

func (o *Orchestrator) clarify(ctx context.Context, email *message.Email, out *Outcome) *StepError {
	content, err := o.svc.Assistant.ComposeAvailabilityRequest(ctx, email.PlainText(), o.opts.ActorName)
	if err != nil {
		return fatal(StepCompose, err)
	}

	reply := message.ComposeReply(email, content)
	raw, err := reply.Bytes()
	if err != nil {
		return recovered(StepEncode, err)
	}

	if o.opts.DryRun {
		log.Info().
			Str("msg_id", email.ID).
			Str("to", reply.To).
			Str("subject", reply.Subject).
			Msg("Workflow: dry run, would send reply")
		return nil
	}

	sentID, err := o.svc.Mailbox.SendMessage(ctx, raw)
	if err != nil {
		o.record(ctx, out, ledger.ActionSendReply, ledger.StatusFailed, err.Error())
		return recovered(StepSend, err)
	}
	out.Detail = sentID
	o.record(ctx, out, ledger.ActionSendReply, ledger.StatusOK, sentID)
	return nil
}

// markRead marks the message read unless this is a dry run. A failure is
// recorded but changes nothing else.
func (o *Orchestrator) markRead(ctx context.Context, out Outcome) Outcome {
	if o.opts.DryRun {
		return out
	}
	if err := o.svc.Mailbox.MarkRead(ctx, out.ID); err != nil {
		if out.Err == nil {
			out.Err = recovered(StepMarkRead, err)
		} else {
			log.Error().Str("msg_id", out.ID).Err(err).Msg("Workflow: error marking message as read")
		}
		return out
	}
	out.State = StateRead
	return out
}

// done logs the final outcome of a message.
func (o *Orchestrator) done(out Outcome) Outcome {
	switch {
	case out.Err != nil && out.Err.Fatal:
		log.Error().Str("msg_id", out.ID).Str("step", out.Err.Step).Err(out.Err.Err).
			Msg("Workflow: message left unread")
	case out.Err != nil:
		log.Error().Str("msg_id", out.ID).Str("step", out.Err.Step).Err(out.Err.Err).
			Str("state", string(out.State)).Msg("Workflow: step failed")
	case out.Action == ActionFiltered:
		log.Info().Str("msg_id", out.ID).Str("rule", out.Detail).Msg("Workflow: message filtered")
	default:
		log.Info().Str("msg_id", out.ID).Str("action", string(out.Action)).Str("state", string(out.State)).
			Msg("Workflow: message processed")
	}
	return out
}

func (o *Orchestrator) lookup(ctx context.Context, key string) *ledger.Entry {
	if o.svc.Ledger == nil {
		return nil
	}
	prior, err := o.svc.Ledger.Lookup(ctx, key)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Workflow: ledger lookup failed")
		return nil
	}
	return prior
}

func (o *Orchestrator) record(ctx context.Context, out *Outcome, action, status, detail string) {
	if o.svc.Ledger == nil || o.opts.DryRun {
		return
	}
	err := o.svc.Ledger.Record(ctx, ledger.Entry{
		MessageID: out.key,
		Action:    action,
		Status:    status,
		Detail:    detail,
		RunID:     out.runID,
	})
	if err != nil {
		log.Warn().Str("msg_id", out.ID).Err(err).Msg("Workflow: ledger write failed")
	}
}

func (o *Orchestrator) startRun(ctx context.Context) string {
	if o.svc.Ledger == nil || o.opts.DryRun {
		return ""
	}
	id, err := o.svc.Ledger.StartRun(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Workflow: could not record run start")
	}
	return id
}

func (o *Orchestrator) finishRun(s *Summary) {
	if s.RunID == "" {
		return
	}
	// the run's own ctx may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.svc.Ledger.FinishRun(ctx, s.RunID, s.Counts()); err != nil {
		log.Warn().Err(err).Msg("Workflow: could not record run finish")
	}
}
