package tinsel

import (
	"math"
	"testing"
	"time"
)

const testDelta = 1.0 / 60

// testConfig returns DefaultConfig with small groups so field tests run
// quickly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Glyph.Resolution = 64
	cfg.Glyph.FontSize = 45
	cfg.Groups = []GroupConfig{
		{
			Name: "gold", Role: RoleOrnament, Count: 60, Gold: true,
			FollowsFormation: true, Smoothing: 0.08, ExplodeMagnitude: 12,
			BaseScale: 0.18, ChaosScale: 0.1, ApexScale: 0.8,
		},
		{
			Name: "red", Role: RoleOrnament, Count: 20, RadiusOffset: 0.5,
			FollowsFormation: true, Smoothing: 0.08, ExplodeMagnitude: 12,
			BaseScale: 0.15, ChaosScale: 0.1,
		},
		{
			Name: "canopy", Role: RoleDiffuse, Count: 200,
			Smoothing: 0.2, ExplodeMagnitude: 12, Ripple: 0.05, BaseScale: 0.05,
		},
		{
			Name: "ribbon", Role: RoleRibbon, Count: 50,
			Smoothing: 0.08, ExplodeMagnitude: 20, BaseScale: 0.05,
		},
	}
	return cfg
}

func newTestField(t *testing.T, cfg Config, src PoseSource) *Field {
	t.Helper()
	f, err := NewField(cfg, src)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

// eventRecorder collects every event a field emits.
type eventRecorder struct {
	events []FieldEvent
}

func (r *eventRecorder) EmitEvent(e FieldEvent) { r.events = append(r.events, e) }

func (r *eventRecorder) ofType(typ EventType) []FieldEvent {
	var out []FieldEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fieldRunner struct {
	f       *Field
	elapsed float64
}

func (r *fieldRunner) step(n int) {
	for i := 0; i < n; i++ {
		r.elapsed += testDelta
		r.f.Update(FrameClock{Elapsed: r.elapsed, Delta: testDelta})
	}
}

func focusedCount(f *Field) int {
	n := 0
	for _, note := range f.Notes().Notes(nil) {
		if note.State == NoteFocused {
			n++
		}
	}
	return n
}

// --- Construction ---

func TestNewFieldRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Chaos.High = 0.05
	if _, err := NewField(cfg, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewFieldInitialState(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	if f.Chaos() != 0 {
		t.Errorf("chaos = %v", f.Chaos())
	}
	if f.ModeIndex() != 0 || f.Mode().Kind != FormationTree {
		t.Errorf("mode = %v (%d)", f.Mode(), f.ModeIndex())
	}
	if len(f.Groups()) != 4 || f.Notes().Len() != 10 {
		t.Fatalf("groups=%d notes=%d", len(f.Groups()), f.Notes().Len())
	}
	gold, ok := f.Group("gold")
	if !ok || gold.Rig() != f.InnerRig() {
		t.Error("ornament group not on the inner rig")
	}
	canopy, _ := f.Group("canopy")
	if canopy.Rig() != f.OuterRig() {
		t.Error("diffuse group not on the outer rig")
	}
	if _, ok := f.Group("missing"); ok {
		t.Error("unknown group found")
	}
	if f.InnerRig().Parent() != f.OuterRig().Parent() || f.InnerRig().Parent() == nil {
		t.Error("rigs do not share the stage")
	}
}

func TestNewFieldStartsOnFirstFormation(t *testing.T) {
	cfg := testConfig()
	cfg.Formations = []string{"glyph:", "tree"}
	f := newTestField(t, cfg, nil)
	gold, _ := f.Group("gold")
	if gold.Formation().Kind != FormationGlyph {
		t.Fatalf("formation = %v", gold.Formation())
	}
	for i := 0; i < gold.Count(); i++ {
		if gold.Home(i) != (Vec3{}) {
			t.Fatalf("home %d = %+v, want origin", i, gold.Home(i))
		}
	}
}

// --- Clock ---

func TestFieldRejectsBadClock(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	for _, c := range []FrameClock{
		{Elapsed: math.NaN(), Delta: testDelta},
		{Elapsed: 1, Delta: math.Inf(1)},
		{Elapsed: 1, Delta: -0.1},
	} {
		f.Update(c)
	}
	if f.Frame() != 0 {
		t.Errorf("frame = %d, want 0", f.Frame())
	}
	if s := f.Stats(); s.RejectedClocks != 3 {
		t.Errorf("RejectedClocks = %d", s.RejectedClocks)
	}
	f.Update(FrameClock{Elapsed: 1, Delta: 0})
	if f.Frame() != 1 {
		t.Errorf("zero delta frame not run")
	}
}

// --- Formation cycling ---

func TestFieldAdvancesOncePerExcursion(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	rec := &eventRecorder{}
	f.SetEventSink(rec)
	r := &fieldRunner{f: f}

	f.SetChaosTarget(1)
	r.step(300)
	if f.Chaos() != 1 {
		t.Fatalf("chaos = %v, want 1", f.Chaos())
	}
	if got := f.Stats().Advances; got != 1 {
		t.Fatalf("advances = %d, want 1", got)
	}
	if f.Mode().String() != "glyph:N" {
		t.Errorf("mode = %v", f.Mode())
	}

	f.SetChaosTarget(0)
	r.step(300)
	if f.Chaos() != 0 {
		t.Fatalf("chaos = %v, want 0", f.Chaos())
	}
	if got := f.Stats().Advances; got != 1 {
		t.Fatalf("advances after settling = %d, want 1", got)
	}

	f.SetChaosTarget(1)
	r.step(300)
	if f.ModeIndex() != 2 {
		t.Errorf("mode index = %d, want 2", f.ModeIndex())
	}

	adv := rec.ofType(EventFormationAdvanced)
	if len(adv) != 2 {
		t.Fatalf("advance events = %d", len(adv))
	}
	if adv[0].FormationIndex != 1 || adv[0].Formation.Glyph != "N" || adv[0].NoteID != -1 {
		t.Errorf("first event = %+v", adv[0])
	}
	if adv[0].Chaos <= f.Config().Chaos.High {
		t.Errorf("advance fired at chaos %v", adv[0].Chaos)
	}
}

func TestFieldChaosStepBounded(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	r := &fieldRunner{f: f}
	f.SetChaosTarget(1)
	prev := f.Chaos()
	for i := 0; i < 100; i++ {
		r.step(1)
		if d := f.Chaos() - prev; d < 0 || d > f.Config().Chaos.MaxStep+1e-12 {
			t.Fatalf("frame %d: step %v", i, d)
		}
		prev = f.Chaos()
	}
}

func TestFieldControlHandDrivesChaos(t *testing.T) {
	cfg := testConfig()
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	f.InjectHand(cfg.Pose.ControlHand, HandSample{Position: Vec3{X: cfg.Rotation.NeutralX, Z: 8}})
	r.step(300)
	if f.Chaos() != 1 {
		t.Errorf("open control hand: chaos = %v", f.Chaos())
	}
	f.InjectPinch(cfg.Pose.ControlHand, Vec3{X: cfg.Rotation.NeutralX, Z: 8})
	r.step(300)
	if f.Chaos() != 0 {
		t.Errorf("pinching control hand: chaos = %v", f.Chaos())
	}
}

func TestFieldRotationFollowsControlHand(t *testing.T) {
	cfg := testConfig()
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(10)
	assertNear(t, "idle", f.RotationRate(), cfg.Rotation.Idle)

	f.InjectPinch(cfg.Pose.ControlHand, Vec3{X: cfg.Rotation.NeutralX - 10})
	r.step(400)
	want := cfg.Rotation.Idle + 10*cfg.Rotation.Sensitivity
	if !approxEqual(f.RotationRate(), want, 1e-6) {
		t.Errorf("rate = %v, want %v", f.RotationRate(), want)
	}
}

func TestFieldInnerRigSettlesOnGlyph(t *testing.T) {
	cfg := testConfig()
	cfg.Formations = []string{"glyph:N", "tree"}
	f := newTestField(t, cfg, nil)
	f.InnerRig().Angle = 1
	r := &fieldRunner{f: f}
	r.step(400)
	if f.InnerRig().Angle != 0 {
		t.Errorf("inner angle = %v, want 0", f.InnerRig().Angle)
	}
	if f.OuterRig().Angle == 0 {
		t.Error("outer rig stopped spinning")
	}
}

// --- Notes ---

func grabNote(t *testing.T, f *Field, r *fieldRunner, id int) {
	t.Helper()
	f.InjectPinch(f.Config().Pose.GrabHand, f.Notes().worldPos(id))
	r.step(1)
	if got, ok := f.Notes().Focused(); !ok || got != id {
		t.Fatalf("focused = %d, %v; want %d", got, ok, id)
	}
}

func TestFieldGrabAndReleaseNote(t *testing.T) {
	cfg := testConfig()
	cfg.Focus.TieBreak = TieBreakNearest
	f := newTestField(t, cfg, nil)
	rec := &eventRecorder{}
	f.SetEventSink(rec)
	r := &fieldRunner{f: f}
	r.step(1)

	grabNote(t, f, r, 3)
	n, ok := f.FocusedNote()
	if !ok || n.ID != 3 || n.State != NoteFocused {
		t.Fatalf("FocusedNote = %+v, %v", n, ok)
	}

	f.InjectRelease(cfg.Pose.GrabHand)
	r.step(1)
	if _, ok := f.Notes().Focused(); ok {
		t.Fatal("note still focused after release")
	}
	n, _ = f.Notes().Note(3)
	if n.State != NoteAttached {
		t.Errorf("state = %v", n.State)
	}

	acq, rel := rec.ofType(EventFocusAcquired), rec.ofType(EventFocusReleased)
	if len(acq) != 1 || acq[0].NoteID != 3 {
		t.Errorf("acquired events = %+v", acq)
	}
	if len(rel) != 1 || rel[0].NoteID != 3 || rel[0].Frame != acq[0].Frame+1 {
		t.Errorf("released events = %+v", rel)
	}
}

func TestFieldFocusedNoteHoldsBeforeViewer(t *testing.T) {
	cfg := testConfig()
	cfg.Focus.TieBreak = TieBreakNearest
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(1)
	grabNote(t, f, r, 3)
	r.step(200)

	want := f.Viewer().FocusPoint(cfg.Focus.Distance)
	if d := f.Notes().worldPos(3).Dist(want); d > 0.5 {
		t.Errorf("focused note %v from focus point", d)
	}
	if _, ok := f.Notes().Focused(); !ok {
		t.Error("focus lost while pinching")
	}
}

func TestFieldAtMostOneFocused(t *testing.T) {
	cfg := testConfig()
	cfg.Focus.CaptureRadius = 20
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(1)

	f.InjectPinch(cfg.Pose.GrabHand, f.Notes().worldPos(5))
	r.step(1)
	first, ok := f.Notes().Focused()
	if !ok || first != 0 {
		t.Fatalf("focused = %d, %v; want lowest index 0", first, ok)
	}
	for id := 0; id < f.Notes().Len(); id++ {
		f.InjectPinch(cfg.Pose.GrabHand, f.Notes().worldPos(id))
		r.step(1)
		if n := focusedCount(f); n != 1 {
			t.Fatalf("%d notes focused", n)
		}
		if got, _ := f.Notes().Focused(); got != first {
			t.Fatalf("holder changed from %d to %d", first, got)
		}
	}
}

func TestFieldRegrabWhenMovingIntoRange(t *testing.T) {
	cfg := testConfig()
	cfg.Focus.TieBreak = TieBreakNearest
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(1)

	f.InjectPinch(cfg.Pose.GrabHand, Vec3{X: 200, Y: 200, Z: 200})
	r.step(3)
	if _, ok := f.Notes().Focused(); ok {
		t.Fatal("note focused from far away")
	}
	grabNote(t, f, r, 3)

	f.InjectRelease(cfg.Pose.GrabHand)
	r.step(1)
	grabNote(t, f, r, 3)
}

func TestFieldGrabHandLostReleases(t *testing.T) {
	cfg := testConfig()
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(1)
	grabNote(t, f, r, 0)

	f.InjectAbsent(cfg.Pose.GrabHand)
	r.step(1)
	if _, ok := f.Notes().Focused(); ok {
		t.Error("focus kept with grab hand absent")
	}
}

func TestFieldReleaseFocusSuppressesUntilPinchEnds(t *testing.T) {
	cfg := testConfig()
	f := newTestField(t, cfg, nil)
	rec := &eventRecorder{}
	f.SetEventSink(rec)
	r := &fieldRunner{f: f}
	r.step(1)
	grabNote(t, f, r, 0)

	f.ReleaseFocus()
	if _, ok := f.Notes().Focused(); ok {
		t.Fatal("ReleaseFocus left the note focused")
	}
	if rel := rec.ofType(EventFocusReleased); len(rel) != 1 {
		t.Fatalf("released events = %d", len(rel))
	}
	r.step(5)
	if _, ok := f.Notes().Focused(); ok {
		t.Fatal("note reacquired by the same pinch")
	}

	f.InjectRelease(cfg.Pose.GrabHand)
	r.step(1)
	grabNote(t, f, r, 0)

	// no-op with nothing focused
	f.InjectRelease(cfg.Pose.GrabHand)
	r.step(1)
	n := len(rec.events)
	f.ReleaseFocus()
	if len(rec.events) != n {
		t.Error("ReleaseFocus emitted with nothing focused")
	}
}

func TestFieldSetNoteText(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	if err := f.SetNoteText(2, "hello"); err != nil {
		t.Fatal(err)
	}
	n, _ := f.Notes().Note(2)
	if n.Text != "hello" {
		t.Errorf("text = %q", n.Text)
	}
	if err := f.SetNoteText(99, "x"); err == nil {
		t.Error("expected error for unknown note")
	}
}

// --- Pose stream ---

func TestFieldPoseLostAndRestored(t *testing.T) {
	cfg := testConfig()
	mbox := NewPoseMailbox()
	now := time.Unix(1000, 0)
	mbox.now = func() time.Time { return now }

	f := newTestField(t, cfg, mbox)
	rec := &eventRecorder{}
	f.SetEventSink(rec)
	r := &fieldRunner{f: f}

	r.step(1)
	if len(rec.events) != 0 {
		t.Fatalf("events before any pose: %+v", rec.events)
	}

	if err := mbox.Publish(PoseFrame{Right: &HandSample{Position: Vec3{X: -8.75, Z: 8}}}); err != nil {
		t.Fatal(err)
	}
	r.step(1)
	if got := rec.ofType(EventPoseRestored); len(got) != 1 {
		t.Fatalf("restored events = %d", len(got))
	}

	now = now.Add(cfg.Pose.StaleAfter + time.Millisecond)
	r.step(2)
	if got := rec.ofType(EventPoseLost); len(got) != 1 {
		t.Fatalf("lost events = %d", len(got))
	}
	if s := f.Stats(); s.StalePoses != 2 {
		t.Errorf("StalePoses = %d", s.StalePoses)
	}

	_ = mbox.Publish(PoseFrame{Seq: 2})
	r.step(1)
	if got := rec.ofType(EventPoseRestored); len(got) != 2 {
		t.Errorf("restored events = %d", len(got))
	}
}

// invalidSource returns the same non-finite frame forever.
type invalidSource struct{}

func (invalidSource) Latest() (PoseSample, bool) {
	return PoseSample{Frame: PoseFrame{Left: &HandSample{Position: Vec3{X: math.NaN()}, Pinching: true}}}, true
}

func TestFieldInvalidSourceTreatedAsAbsent(t *testing.T) {
	f := newTestField(t, testConfig(), invalidSource{})
	r := &fieldRunner{f: f}
	r.step(10)
	if s := f.Stats(); s.RejectedPoses != 10 {
		t.Errorf("RejectedPoses = %d", s.RejectedPoses)
	}
	if _, ok := f.Notes().Focused(); ok {
		t.Error("invalid pose focused a note")
	}
}

func TestFieldInvalidSampleReusesLastValid(t *testing.T) {
	cfg := testConfig()
	f := newTestField(t, cfg, nil)
	r := &fieldRunner{f: f}
	r.step(1)
	grabNote(t, f, r, 0)

	f.InjectPose(PoseFrame{Left: &HandSample{Position: Vec3{Y: math.Inf(1)}}})
	r.step(1)
	if _, ok := f.Notes().Focused(); !ok {
		t.Error("invalid sample dropped focus")
	}
}

// --- Adversarial input ---

func TestFieldStaysFiniteUnderAdversarialInput(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	f := newTestField(t, cfg, nil)
	rng := newRand(99)
	values := []float64{0, 1, -1, 1e300, -1e300, math.MaxFloat64, -math.MaxFloat64,
		math.NaN(), math.Inf(1), math.Inf(-1), 1e-300}
	pick := func() float64 { return values[rng.IntN(len(values))] }

	elapsed := 0.0
	for i := 0; i < 500; i++ {
		frame := PoseFrame{Seq: uint64(i)}
		if rng.IntN(3) > 0 {
			frame.Left = &HandSample{Position: Vec3{pick(), pick(), pick()}, Pinching: rng.IntN(2) == 0}
		}
		if rng.IntN(3) > 0 {
			frame.Right = &HandSample{Position: Vec3{pick(), pick(), pick()}, Pinching: rng.IntN(2) == 0}
		}
		f.InjectPose(frame)
		switch rng.IntN(4) {
		case 0:
			f.SetChaosTarget(pick())
		case 1:
			f.ClearChaosTarget()
		}
		dt := testDelta
		if rng.IntN(10) == 0 {
			dt = pick()
		}
		elapsed += testDelta
		f.Update(FrameClock{Elapsed: elapsed, Delta: dt})

		if c := f.Chaos(); !(c >= 0 && c <= 1) {
			t.Fatalf("frame %d: chaos %v", i, c)
		}
		if !isFinite(f.RotationRate()) {
			t.Fatalf("frame %d: rotation rate %v", i, f.RotationRate())
		}
		for _, g := range f.Groups() {
			for j := 0; j < g.Count(); j++ {
				if !g.Position(j).IsFinite() || !isFinite(g.Scale(j)) {
					t.Fatalf("frame %d: group %s entity %d not finite", i, g.Name(), j)
				}
			}
		}
		if focusedCount(f) > 1 {
			t.Fatalf("frame %d: more than one note focused", i)
		}
	}
	if s := f.Stats(); s.RejectedChaos == 0 || s.RejectedPoses == 0 {
		t.Errorf("adversarial input never rejected: %+v", s)
	}
}

func TestFieldBlendReachesHomeAndScatter(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	r := &fieldRunner{f: f}
	ribbon, _ := f.Group("ribbon")

	f.SetChaosTarget(1)
	r.step(600)
	for i := 0; i < ribbon.Count(); i++ {
		if d := ribbon.Position(i).Dist(ribbon.ScatterPoint(i)); d > 1e-3 {
			t.Fatalf("entity %d %v from scatter", i, d)
		}
	}
	assertNear(t, "scale", ribbon.Scale(0), ribbon.Config().BaseScale*(1+ribbon.Config().ChaosScale))

	f.SetChaosTarget(0)
	r.step(600)
	for i := 0; i < ribbon.Count(); i++ {
		if d := ribbon.Position(i).Dist(ribbon.Home(i)); d > 1e-3 {
			t.Fatalf("entity %d %v from home", i, d)
		}
	}
}

func TestFieldWorldPositionsUseRig(t *testing.T) {
	f := newTestField(t, testConfig(), nil)
	r := &fieldRunner{f: f}
	r.step(30)
	for _, g := range f.Groups() {
		world := g.WorldPositions(nil)
		local := g.Positions(nil)
		if len(world) != g.Count() || len(local) != g.Count() {
			t.Fatalf("%s: lengths %d/%d", g.Name(), len(world), len(local))
		}
		assertVecNear(t, g.Name(), world[0], g.Rig().LocalToWorld(local[0]), epsilon)
	}
}
