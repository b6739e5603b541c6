// Package progress provides the event primitives, non-blocking hub, and
// notifier that the scrape and import pipelines use to report per-session
// progress. Events are batched on a background goroutine and fanned out to
// pluggable sinks such as structured logs, Prometheus metrics, or a Pub/Sub
// topic feeding the dashboard.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Kind distinguishes the three notification shapes pushed to clients.
type Kind string

// Supported event kinds.
const (
	KindProgress   Kind = "PROGRESS"
	KindError      Kind = "ERROR"
	KindCompletion Kind = "COMPLETION"
)

// Stage names a pipeline milestone for progress events.
type Stage string

// Pipeline stages in execution order.
const (
	StageValidatingURL  Stage = "VALIDATING_URL"
	StageExploring      Stage = "EXPLORING_PAGES"
	StageExtracting     Stage = "EXTRACTING"
	StageNormalizing    Stage = "NORMALIZING"
	StageScoring        Stage = "SCORING"
	StageValidating     Stage = "VALIDATING_DATA"
	StageDuplicateCheck Stage = "CHECKING_DUPLICATES"
	StageImporting      Stage = "IMPORTING"
)

// Event is one notification scoped to a scrape or import session.
type Event struct {
	// SessionID ties the event to one pipeline run.
	SessionID string
	// TS is the UTC timestamp recorded by the notifier.
	TS time.Time
	// Kind selects which of the remaining fields are meaningful.
	Kind Kind
	// Stage and Percent describe progress events.
	Stage   Stage
	Percent int
	// Message is human-readable context for progress and error events.
	Message string
	// Confidence optionally carries the running extraction confidence.
	Confidence *float64
	// Code classifies error events.
	Code festival.Code
	// Summary describes the outcome for completion events.
	Summary string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindProgress:
		if e.Stage == "" {
			return errors.New("progress event requires a stage")
		}
		if e.Percent < 0 || e.Percent > 100 {
			return fmt.Errorf("percent %d out of range", e.Percent)
		}
	case KindError:
		if e.Code == "" {
			return errors.New("error event requires a code")
		}
	case KindCompletion:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}
