package workflow

import "fmt"

// Pipeline steps, as reported in StepError and outcomes.
const (
	StepFetch    = "fetch"
	StepClassify = "classify"
	StepExtract  = "extract"
	StepCompose  = "compose"
	StepBuild    = "build_event"
	StepCreate   = "create_event"
	StepEncode   = "encode_reply"
	StepSend     = "send_reply"
	StepMarkRead = "mark_read"
)

// StepError is a failure at one pipeline step. A fatal error aborts the
// message without marking it read so the next run retries it. A recovered
// error is logged and the message still reaches the mark-read step.
type StepError struct {
	Step  string
	Fatal bool
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fatal(step string, err error) *StepError {
	return &StepError{Step: step, Fatal: true, Err: err}
}

func recovered(step string, err error) *StepError {
	return &StepError{Step: step, Err: err}
}
