// Package pipeline holds the error taxonomy and run outcome shared by the
// fetch, select, generate and publish stages.
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFetchFailure means a feed could not be read. Fatal for the run.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrNoFreshTopic means every candidate was already used. Benign.
	ErrNoFreshTopic = errors.New("no fresh topic")
	// ErrSelectionFailure means the ranker never produced a usable choice.
	ErrSelectionFailure = errors.New("selection failure")
	// ErrGenerationFailure means the model never produced valid content.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrPublishFailure means posting stopped before every segment went out.
	ErrPublishFailure = errors.New("publish failure")
	// ErrDailyCapReached means the day's post quota is used up. Benign.
	ErrDailyCapReached = errors.New("daily post cap reached")
)

// Status is the terminal state of one agent run.
type Status string

const (
	StatusPublished Status = "published"
	StatusNoop      Status = "noop"
	StatusFailed    Status = "failed"
)

// Result describes one agent run.
type Result struct {
	Agent    string
	Status   Status
	Reason   string
	Topic    string
	PostURL  string
	Segments int
	Duration time.Duration
	Err      error
}

// IsBenign reports whether err ends a run without anything being wrong.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNoFreshTopic) || errors.Is(err, ErrDailyCapReached)
}

// Stage names the sentinel err belongs to, for logs and metrics labels.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchFailure):
		return "fetch"
	case errors.Is(err, ErrNoFreshTopic):
		return "no_fresh_topic"
	case errors.Is(err, ErrDailyCapReached):
		return "daily_cap"
	case errors.Is(err, ErrSelectionFailure):
		return "selection"
	case errors.Is(err, ErrGenerationFailure):
		return "generation"
	case errors.Is(err, ErrPublishFailure):
		return "publish"
	default:
		return "internal"
	}
}

// Outcome builds the Result for a finished run.
func Outcome(agent string, started time.Time, err error) Result {
	r := Result{Agent: agent, Duration: time.Since(started)}
	switch {
	case err == nil:
		r.Status = StatusPublished
	case IsBenign(err):
		r.Status = StatusNoop
		r.Reason = err.Error()
	default:
		r.Status = StatusFailed
		r.Reason = err.Error()
		r.Err = err
	}
	return r
}

// Wrap tags cause with a sentinel, keeping both inspectable with errors.Is.
func Wrap(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
