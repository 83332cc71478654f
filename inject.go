package tinsel

import "github.com/tanema/gween/ease"

// injectedPose is a single queued synthetic pose. A clear entry hands
// control back to the live source.
type injectedPose struct {
	frame PoseFrame
	clear bool
}

// InjectPose queues a synthetic pose frame. Queued frames are consumed one
// per Update ahead of the live source; the last consumed frame keeps
// overriding the source until InjectClear is consumed.
func (f *Field) InjectPose(frame PoseFrame) {
	f.injectQueue = append(f.injectQueue, injectedPose{frame: frame})
}

// InjectHand queues a frame that sets hand h to s and carries the other
// hand over from the most recently queued or active synthetic frame.
func (f *Field) InjectHand(h Hand, s HandSample) {
	frame := f.lastInjected()
	frame.set(h, &s)
	f.InjectPose(frame)
}

// InjectPinch queues hand h pinching at position at.
func (f *Field) InjectPinch(h Hand, at Vec3) {
	f.InjectHand(h, HandSample{Position: at, Pinching: true})
}

// InjectRelease queues hand h opening in place. If h was not present in
// the previous synthetic frame it appears at the origin.
func (f *Field) InjectRelease(h Hand) {
	frame := f.lastInjected()
	s, _ := frame.Hand(h)
	s.Pinching = false
	frame.set(h, &s)
	f.InjectPose(frame)
}

// InjectAbsent queues a frame in which hand h is not detected.
func (f *Field) InjectAbsent(h Hand) {
	frame := f.lastInjected()
	frame.set(h, nil)
	f.InjectPose(frame)
}

// InjectSweep queues a hand path from -> to spanning frames frames, eased
// by fn (nil is linear). Minimum frames is 1.
func (f *Field) InjectSweep(h Hand, from, to Vec3, frames int, pinching bool, fn ease.TweenFunc) {
	if frames < 1 {
		frames = 1
	}
	if frames == 1 {
		f.InjectHand(h, HandSample{Position: to, Pinching: pinching})
		return
	}
	tw := NewTweenVec3(from, to, float32(frames-1), fn)
	f.InjectHand(h, HandSample{Position: from, Pinching: pinching})
	for i := 1; i < frames; i++ {
		f.InjectHand(h, HandSample{Position: tw.Update(1), Pinching: pinching})
	}
}

// InjectClear queues the return to the live pose source.
func (f *Field) InjectClear() {
	f.injectQueue = append(f.injectQueue, injectedPose{clear: true})
}

// lastInjected returns a copy of the frame synthetic input would currently
// end on.
func (f *Field) lastInjected() PoseFrame {
	if n := len(f.injectQueue); n > 0 {
		if last := f.injectQueue[n-1]; !last.clear {
			return last.frame.clone()
		}
		return PoseFrame{}
	}
	if f.injected != nil {
		return f.injected.clone()
	}
	return PoseFrame{}
}

// processInjectedPose pops one entry from the queue. It returns the active
// synthetic frame, if any.
func (f *Field) processInjectedPose() (PoseFrame, bool) {
	if len(f.injectQueue) > 0 {
		evt := f.injectQueue[0]
		copy(f.injectQueue, f.injectQueue[1:])
		f.injectQueue = f.injectQueue[:len(f.injectQueue)-1]
		if evt.clear {
			f.injected = nil
		} else {
			fr := evt.frame
			f.injected = &fr
		}
	}
	if f.injected == nil {
		return PoseFrame{}, false
	}
	return *f.injected, true
}

func (p PoseFrame) clone() PoseFrame {
	out := PoseFrame{Seq: p.Seq}
	if p.Left != nil {
		l := *p.Left
		out.Left = &l
	}
	if p.Right != nil {
		r := *p.Right
		out.Right = &r
	}
	return out
}

func (p *PoseFrame) set(h Hand, s *HandSample) {
	switch h {
	case HandLeft:
		p.Left = s
	case HandRight:
		p.Right = s
	}
}
