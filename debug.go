package tinsel

import (
	"fmt"
	"os"
)

// debugLogEvery is the frame interval between stderr stat lines.
const debugLogEvery = 60

// debugLog prints timing and counters to stderr every debugLogEvery frames.
func (f *Field) debugLog() {
	if !f.debug || f.frame%debugLogEvery != 0 {
		return
	}
	s := f.stats
	_, _ = fmt.Fprintf(os.Stderr,
		"[tinsel] frame: %d | blend: %v | total: %v | chaos: %.3f | mode: %s (%d)\n",
		s.Frames, s.BlendTime, s.FrameTime, f.chaos.Value(), f.machine.Current(), f.machine.Index())
	_, _ = fmt.Fprintf(os.Stderr,
		"[tinsel] advances: %d | rehomes: %d | rejected poses: %d | stale: %d | rejected clocks: %d\n",
		s.Advances, s.Rehomes, s.RejectedPoses, s.StalePoses, s.RejectedClocks)
}

// debugCheckInvariants panics with a descriptive message when the frame
// pass left the field inconsistent. Only called in debug mode.
func (f *Field) debugCheckInvariants() {
	c := f.chaos.Value()
	if !(c >= 0 && c <= 1) {
		panic(fmt.Sprintf("tinsel debug: chaos level %v outside [0,1] at frame %d", c, f.frame))
	}
	focused := 0
	for i := range f.notes.notes {
		n := &f.notes.notes[i]
		if n.State == NoteFocused {
			focused++
		}
		if !n.Rendered.IsFinite() {
			panic(fmt.Sprintf("tinsel debug: note %d at non-finite %v", n.ID, n.Rendered))
		}
	}
	if focused > 1 {
		panic(fmt.Sprintf("tinsel debug: %d notes focused at frame %d", focused, f.frame))
	}
	for _, g := range f.groups {
		for i := range g.entities {
			if !g.entities[i].rendered.IsFinite() {
				panic(fmt.Sprintf("tinsel debug: group %q entity %d at non-finite %v",
					g.Name(), i, g.entities[i].rendered))
			}
		}
	}
}
