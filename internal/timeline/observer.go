package timeline

import "time"

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventStepFired    EventType = "run.step"
	EventRunCompleted EventType = "run.completed"
	EventRunCancelled EventType = "run.cancelled"
	EventRunFailed    EventType = "run.failed"
)

// RunEvent describes a transition of a run.
type RunEvent struct {
	Type      EventType
	RunID     string
	Sequence  string
	Step      int
	StepName  string
	State     State
	Timestamp time.Time
	Err       error
}

// Observer receives run events. Step events are delivered on the
// dispatching goroutine, so implementations must not block for long.
type Observer interface {
	OnRunEvent(event RunEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event RunEvent)

// OnRunEvent calls f.
func (f ObserverFunc) OnRunEvent(event RunEvent) {
	f(event)
}

type multiObserver []Observer

func (m multiObserver) OnRunEvent(event RunEvent) {
	for _, o := range m {
		o.OnRunEvent(event)
	}
}

// Observers combines observers; nil entries are skipped.
func Observers(observers ...Observer) Observer {
	combined := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			combined = append(combined, o)
		}
	}
	return combined
}
