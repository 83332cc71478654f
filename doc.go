// Package tinsel is a real-time formation engine for gesture-driven particle
// fields.
//
// A [Field] owns thousands of entities that morph between named formations
// (a conical tree, character point clouds, a ribbon helix and a scattered
// shell) under one smoothed chaos scalar, plus a handful of text notes a
// second hand can grab and hold in front of the viewer.
//
// # Quick start
//
// Feed pose frames from any goroutine into a [PoseMailbox] and call
// [Field.Update] once per rendered frame:
//
//	mbox := tinsel.NewPoseMailbox()
//	field, err := tinsel.NewField(tinsel.DefaultConfig(), mbox)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go producer(mbox) // mbox.Publish(frame)
//
//	for each frame {
//		field.Update(tinsel.FrameClock{Elapsed: t, Delta: dt})
//		for _, g := range field.Groups() {
//			pts = g.WorldPositions(pts[:0])
//			// draw pts with g.Scale(i)
//		}
//	}
//
// # Frame pass
//
// Update reads the latest pose once, smooths the control hand into a
// rotation rate and chaos level, steps the [FormationMachine] when chaos
// crosses its high threshold, blends every entity between home and scatter,
// and arbitrates note focus from the grab hand. Nothing else mutates the
// field, so no locking is needed around it.
//
// # Configuration
//
// Every constant lives in [Config]. Start from [DefaultConfig] or load YAML
// with [LoadConfig]:
//
//	formations: [tree, "glyph:N", "glyph:O", "glyph:E", "glyph:L"]
//	chaos: {high: 0.8, low: 0.1}
//	focus: {tie_break: nearest}
//
// # Synthetic input
//
// [Field.InjectPose], [Field.InjectPinch] and friends queue poses that take
// precedence over the live source. [LoadPoseScript] drives the same queue
// from a JSON step list for demos and tests.
//
// # Events
//
// Set an [EventSink] to observe formation advances, focus changes and pose
// loss. The tinsel/ecs package forwards them into a [Donburi] world.
//
// [Donburi]: https://github.com/yohamta/donburi
package tinsel
