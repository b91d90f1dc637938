package workflow

import "github.com/bassamadnan/mailsched/ledger"

// State is the last pipeline state a message reached.
type State string

const (
	StateFetched    State = "fetched"
	StateNormalized State = "normalized"
	StateClassified State = "classified"
	StateScheduling State = "scheduling"
	StateClarifying State = "clarifying"
	StateRead       State = "read"
)

// Action is what the pipeline decided to do with a message.
type Action string

const (
	ActionNone        Action = "none" // not a meeting request
	ActionFiltered    Action = "filtered"
	ActionEvent       Action = "event"
	ActionReply       Action = "reply"
	ActionAlreadyDone Action = "already_done"
)

// Outcome describes how one message went through the pipeline.
type Outcome struct {
	ID      string
	From    string
	Subject string
	State   State
	Action  Action
	Detail  string // event link, sent id or matched filter rule
	Err     *StepError
	DryRun  bool

	runID string
	key   string
}

// Failed reports whether any step failed, recovered or not.
func (o Outcome) Failed() bool { return o.Err != nil }

// Summary is the result of one batch run.
type Summary struct {
	RunID    string
	DryRun   bool
	Outcomes []Outcome
}

// Counts totals the outcomes for the run ledger.
func (s *Summary) Counts() ledger.Counts {
	c := ledger.Counts{Processed: len(s.Outcomes)}
	for _, o := range s.Outcomes {
		switch {
		case o.Failed():
			c.Failed++
		case o.Action == ActionFiltered:
			c.Skipped++
		case o.Action == ActionEvent:
			c.Scheduled++
		case o.Action == ActionReply:
			c.Clarified++
		}
	}
	return c
}
