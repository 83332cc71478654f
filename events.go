package tinsel

import "fmt"

// EventType identifies a FieldEvent.
type EventType uint8

const (
	EventFormationAdvanced EventType = iota // home formation stepped forward
	EventFocusAcquired                      // a note became FOCUSED
	EventFocusReleased                      // the focused note returned to ATTACHED
	EventPoseLost                           // the pose stream went absent or stale
	EventPoseRestored                       // fresh pose samples arrived again
)

func (t EventType) String() string {
	switch t {
	case EventFormationAdvanced:
		return "formation-advanced"
	case EventFocusAcquired:
		return "focus-acquired"
	case EventFocusReleased:
		return "focus-released"
	case EventPoseLost:
		return "pose-lost"
	case EventPoseRestored:
		return "pose-restored"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// FieldEvent carries a state transition out of the frame pass.
type FieldEvent struct {
	Type EventType
	// Frame is the frame counter at which the transition happened.
	Frame uint64
	// NoteID is set for focus events, -1 otherwise.
	NoteID int
	// Formation and FormationIndex are set for formation events.
	Formation      FormationSpec
	FormationIndex int
	Chaos          float64
}

// EventSink is the interface for optional event consumers, such as an ECS
// bridge. When set on a Field, transitions are forwarded synchronously at
// the end of the frame pass in the order they happened.
type EventSink interface {
	EmitEvent(event FieldEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(FieldEvent)

// EmitEvent calls f(event).
func (f EventSinkFunc) EmitEvent(event FieldEvent) {
	f(event)
}
