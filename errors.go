package librarian

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoGenerator   = errors.New("generation client is not configured")
	ErrNoCorpus      = errors.New("corpus is not configured")

	// ErrMaxRounds is returned when the round guard stops the loop. If the
	// final forced decision produced an answer it is still set on Result.
	ErrMaxRounds = errors.New("maximum rounds reached")
)

// UpstreamError reports a failed call to the generation service.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation service: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedResponseError reports a completion without a decodable JSON block.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s (raw: %.200s)", e.Reason, e.Raw)
}

// SchemaViolationError names the field that failed validation.
type SchemaViolationError struct {
	Schema SchemaID
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Schema, e.Field, e.Reason)
}

// CorpusUnavailableError reports that the corpus could not be listed or read.
type CorpusUnavailableError struct {
	Err error
}

func (e *CorpusUnavailableError) Error() string {
	return fmt.Sprintf("corpus unavailable: %v", e.Err)
}

func (e *CorpusUnavailableError) Unwrap() error { return e.Err }

// RunAbortedError ends a run that cannot make progress. Context is the
// history as of the last completed round.
type RunAbortedError struct {
	Stage   string
	Round   int
	Context []string
	Err     error
}

func (e *RunAbortedError) Error() string {
	return fmt.Sprintf("run aborted in %s (round %d): %v", e.Stage, e.Round, e.Err)
}

func (e *RunAbortedError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	var up *UpstreamError
	var mal *MalformedResponseError
	var sv *SchemaViolationError
	return errors.As(err, &up) || errors.As(err, &mal) || errors.As(err, &sv)
}
