package tinsel

import (
	"testing"

	"github.com/tanema/gween/ease"
)

func TestInjectPoseOnePerFrame(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	r := &fieldRunner{f: f}
	f.InjectPinch(HandLeft, Vec3{X: 1})
	f.InjectPinch(HandLeft, Vec3{X: 2})

	r.step(1)
	if got := f.lastPose.Left.Position.X; got != 1 {
		t.Fatalf("frame 1 X = %v", got)
	}
	r.step(1)
	if got := f.lastPose.Left.Position.X; got != 2 {
		t.Fatalf("frame 2 X = %v", got)
	}
	// The last synthetic frame keeps overriding.
	r.step(3)
	if !f.poseLive || f.lastPose.Left.Position.X != 2 {
		t.Fatalf("override lost: live=%v pose=%+v", f.poseLive, f.lastPose.Left)
	}

	f.InjectClear()
	r.step(1)
	if f.poseLive {
		t.Error("pose still live after InjectClear with no source")
	}
}

func TestInjectHandCarriesOtherHand(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectHand(HandRight, HandSample{Position: Vec3{X: -3}})
	f.InjectPinch(HandLeft, Vec3{Y: 4})

	if len(f.injectQueue) != 2 {
		t.Fatalf("queue = %d", len(f.injectQueue))
	}
	last := f.injectQueue[1].frame
	if last.Right == nil || last.Right.Position.X != -3 {
		t.Errorf("right hand not carried: %+v", last.Right)
	}
	if last.Left == nil || !last.Left.Pinching {
		t.Errorf("left hand = %+v", last.Left)
	}
	// Queued frames do not alias each other.
	if f.injectQueue[0].frame.Right == last.Right {
		t.Error("queued frames share a hand sample")
	}
}

func TestInjectReleaseKeepsPosition(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectPinch(HandLeft, Vec3{1, 2, 3})
	f.InjectRelease(HandLeft)
	got := f.injectQueue[1].frame.Left
	if got == nil || got.Pinching || got.Position != (Vec3{1, 2, 3}) {
		t.Errorf("released hand = %+v", got)
	}
}

func TestInjectAbsent(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectPinch(HandLeft, Vec3{})
	f.InjectHand(HandRight, HandSample{})
	f.InjectAbsent(HandLeft)
	got := f.injectQueue[2].frame
	if got.Left != nil || got.Right == nil {
		t.Errorf("frame = %+v", got)
	}
}

func TestInjectAfterClearStartsEmpty(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectHand(HandRight, HandSample{})
	f.InjectClear()
	f.InjectPinch(HandLeft, Vec3{})
	if got := f.injectQueue[2].frame; got.Right != nil {
		t.Errorf("hand carried across clear: %+v", got)
	}
}

func TestInjectSweep(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectSweep(HandLeft, Vec3{}, Vec3{X: 4}, 5, true, nil)
	if len(f.injectQueue) != 5 {
		t.Fatalf("queue = %d, want 5", len(f.injectQueue))
	}
	for i, e := range f.injectQueue {
		s := e.frame.Left
		if s == nil || !s.Pinching {
			t.Fatalf("frame %d = %+v", i, s)
		}
		if !approxEqual(s.Position.X, float64(i), 1e-5) {
			t.Errorf("frame %d X = %v, want %d", i, s.Position.X, i)
		}
	}
}

func TestInjectSweepEased(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectSweep(HandLeft, Vec3{}, Vec3{X: 10}, 11, false, ease.OutCubic)
	last := f.injectQueue[10].frame.Left.Position
	assertVecNear(t, "end", last, Vec3{X: 10}, 1e-5)
	if mid := f.injectQueue[5].frame.Left.Position.X; mid <= 5 {
		t.Errorf("out-cubic midpoint %v not ahead of linear", mid)
	}
}

func TestInjectSweepSingleFrame(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	f.InjectSweep(HandLeft, Vec3{}, Vec3{X: 4}, 0, false, nil)
	if len(f.injectQueue) != 1 || f.injectQueue[0].frame.Left.Position.X != 4 {
		t.Errorf("queue = %+v", f.injectQueue)
	}
}

func TestInjectOverridesSource(t *testing.T) {
	mbox := NewPoseMailbox()
	_ = mbox.Publish(PoseFrame{Right: &HandSample{Position: Vec3{X: 7}}})
	f := newTestField(t, testConfig(), mbox)
	r := &fieldRunner{f: f}

	f.InjectPinch(HandLeft, Vec3{})
	r.step(2)
	if f.lastPose.Right != nil {
		t.Error("live source leaked into synthetic frame")
	}
	f.InjectClear()
	r.step(1)
	if f.lastPose.Right == nil || f.lastPose.Right.Position.X != 7 {
		t.Errorf("live source not restored: %+v", f.lastPose)
	}
}
