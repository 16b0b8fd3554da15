package extraction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/adapter/abbyy"
)

const (
	// MaxPollAttempts bounds the status-polling loop; at 3s apart this
	// is roughly a minute of waiting.
	MaxPollAttempts = 20

	// PollInterval is deliberately constant. The engine's own latency
	// dominates, so backing off buys nothing.
	PollInterval = 3 * time.Second
)

type Status string

const (
	StatusSubmitted  Status = "Submitted"
	StatusProcessing Status = "Processing"
	StatusProcessed  Status = "Processed"
	StatusFailed     Status = "Failed"
	StatusTimedOut   Status = "TimedOut"
)

// Terminal reports whether the job can transition no further.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed || s == StatusTimedOut
}

// Job tracks a single engine-side extraction between submission and a
// terminal state. It lives only for one request cycle.
type Job struct {
	DocumentID  string
	Status      Status
	Attempts    int
	SubmittedAt time.Time
}

// Next applies one observed engine status to the job. Terminal states
// are absorbing; a timeout is declared the moment the attempt budget
// is spent without a terminal answer.
func (j Job) Next(observed Status, maxAttempts int) Job {
	if j.Status.Terminal() {
		return j
	}
	next := j
	next.Attempts++
	switch observed {
	case StatusProcessed:
		next.Status = StatusProcessed
	case StatusFailed:
		next.Status = StatusFailed
	default:
		next.Status = StatusProcessing
		if next.Attempts >= maxAttempts {
			next.Status = StatusTimedOut
		}
	}
	return next
}

// Document is one file headed for the engine, whether it arrived by
// direct upload or through the mobile relay.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the terminal extraction payload. Fields pass through from
// the engine unchanged; Raw is the full engine response.
type Result struct {
	Status Status                 `json:"status"`
	Fields map[string]abbyy.Field `json:"fields"`
	Raw    json.RawMessage        `json:"raw"`
}

var (
	// ErrSubmission: the engine rejected or did not acknowledge the
	// initial upload. Fatal, never retried.
	ErrSubmission = errors.New("engine did not acknowledge submission")

	// ErrTimedOut: the attempt budget ran out without a terminal engine
	// response. The job may still be running engine-side, which is why
	// this is distinct from an explicit failure.
	ErrTimedOut = errors.New("document processing timed out")
)

// ProcessingFailedError carries the engine's own status payload when
// it explicitly reports a failed extraction.
type ProcessingFailedError struct {
	Detail json.RawMessage
}

func (e *ProcessingFailedError) Error() string {
	return "document processing failed"
}
