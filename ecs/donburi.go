package ecs

import (
	"github.com/phanxgames/tinsel"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// FieldEventType is the Donburi event type for tinsel field events.
var FieldEventType = events.NewEventType[tinsel.FieldEvent]()

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Field
// events are published to FieldEventType and can be consumed with
// events.Subscribe and ProcessEvents.
func NewDonburiSink(world donburi.World) tinsel.EventSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) EmitEvent(event tinsel.FieldEvent) {
	FieldEventType.Publish(s.world, event)
}
