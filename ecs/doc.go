// Package ecs provides ECS adapters for tinsel's field events.
//
// The primary adapter is [NewDonburiSink], which bridges field events
// (formation advances, focus changes, pose loss) into a [Donburi] world as
// typed events. Subscribe to [FieldEventType] in your ECS systems to
// receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	field.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
