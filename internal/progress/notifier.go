package progress

import (
	"time"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Notifier is the fire-and-forget progress API consumed by the pipelines.
// Delivery is best-effort: a full hub buffer or failing sink never surfaces
// to the caller.
type Notifier struct {
	emitter Emitter
	now     func() time.Time
}

// NewNotifier wires an emitter. A nil emitter yields a no-op notifier, so
// the pipelines can run without a progress channel configured.
func NewNotifier(emitter Emitter) *Notifier {
	return &Notifier{emitter: emitter, now: time.Now}
}

// SendProgress reports a stage milestone for the session.
func (n *Notifier) SendProgress(sessionID string, stage Stage, percent int, message string, confidence *float64) {
	n.emit(Event{
		SessionID:  sessionID,
		Kind:       KindProgress,
		Stage:      stage,
		Percent:    percent,
		Message:    message,
		Confidence: confidence,
	})
}

// SendError reports a terminal failure for the session.
func (n *Notifier) SendError(sessionID string, code festival.Code, message string) {
	n.emit(Event{
		SessionID: sessionID,
		Kind:      KindError,
		Code:      code,
		Message:   message,
	})
}

// SendCompletion reports a successful finish with a result summary.
func (n *Notifier) SendCompletion(sessionID, summary string) {
	n.emit(Event{
		SessionID: sessionID,
		Kind:      KindCompletion,
		Summary:   summary,
	})
}

func (n *Notifier) emit(evt Event) {
	if n == nil || n.emitter == nil {
		return
	}
	evt.TS = n.now().UTC()
	n.emitter.Emit(evt)
}
