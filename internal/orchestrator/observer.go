package orchestrator

import (
	"time"

	"github.com/go-logr/logr"
)

// EventType classifies run events.
type EventType string

const (
	// EventStageStarted indicates a stage began.
	EventStageStarted EventType = "stage.started"
	// EventStageCompleted indicates a stage finished (failures included,
	// stages are fail-soft).
	EventStageCompleted EventType = "stage.completed"
	// EventStageSkipped indicates a stage had nothing to do.
	EventStageSkipped EventType = "stage.skipped"
	// EventTargetProcessed indicates one directive was handled on one
	// target.
	EventTargetProcessed EventType = "target.processed"
	// EventTargetFailed indicates an operation on a target failed; the
	// run continues with the next target.
	EventTargetFailed EventType = "target.failed"
	// EventFollowUp indicates a condition needing manual attention, such
	// as a down node that only picks the change up on the next image
	// deployment.
	EventFollowUp EventType = "followup"
)

// Event is a structured run event.
type Event struct {
	Type      EventType
	Stage     string
	Target    string
	Directive string
	Message   string
	Timestamp time.Time
}

// Observer receives run events as they happen.
type Observer interface {
	Event(e Event)
}

// LogObserver forwards events to a logr.Logger.
type LogObserver struct {
	Log logr.Logger
}

func (o LogObserver) Event(e Event) {
	kv := []any{"stage", e.Stage}
	if e.Target != "" {
		kv = append(kv, "target", e.Target)
	}
	if e.Directive != "" {
		kv = append(kv, "directive", e.Directive)
	}
	switch e.Type {
	case EventTargetFailed, EventFollowUp:
		o.Log.Info(e.Message, kv...)
	case EventTargetProcessed:
		o.Log.V(1).Info(e.Message, kv...)
	default:
		o.Log.V(1).Info(string(e.Type), kv...)
	}
}
