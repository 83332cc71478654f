package tinsel

import (
	"fmt"
	"time"
)

// Field is the top-level object that owns the entity groups, notes, rigs,
// viewer and every piece of frame state. All mutation happens inside
// Update on the caller's goroutine; the pose source is the only
// asynchronous boundary.
type Field struct {
	cfg    Config
	source PoseSource
	layout layout

	machine  *FormationMachine
	chaos    *ChaosLevel
	rotation *RotationConditioner

	stage *Rig // shared offset
	inner *Rig // ornaments
	outer *Rig // canopy, ribbon, notes

	groups []*EntityGroup
	notes  *NoteBoard
	viewer *Viewer

	sink    EventSink
	pending []FieldEvent

	// Synthetic input
	injectQueue []injectedPose
	injected    *PoseFrame
	script      *PoseScript

	chaosOverride    float64
	hasChaosOverride bool

	lastPose PoseFrame
	hasPose  bool
	poseLive bool

	frame uint64
	stats FrameStats
	debug bool
}

// FrameStats are cumulative counters plus timing of the last frame.
type FrameStats struct {
	Frames         uint64
	RejectedPoses  uint64 // samples with non-finite coordinates
	StalePoses     uint64 // frames where the latest sample was too old
	RejectedClocks uint64 // frames skipped for a non-finite or negative clock
	RejectedChaos  uint64 // non-finite chaos targets
	Advances       uint64 // formation advances
	Rehomes        uint64 // group home regenerations
	BlendTime      time.Duration
	FrameTime      time.Duration
}

// NewField validates cfg and builds the field. source may be nil, in which
// case the field runs in idle behaviour until synthetic input arrives.
func NewField(cfg Config, source PoseSource) (*Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seq, err := parseFormations(cfg.Formations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	glyphs, err := NewGlyphRasterizer(cfg.Glyph)
	if err != nil {
		return nil, fmt.Errorf("new field: %w", err)
	}

	f := &Field{
		cfg:    cfg,
		source: source,
		layout: layout{
			tree:    cfg.Tree,
			ribbon:  cfg.Ribbon,
			scatter: cfg.Scatter,
			glyphs:  glyphs,
			rng:     newRand(cfg.Seed),
		},
		machine:  NewFormationMachine(seq, cfg.Chaos),
		chaos:    NewChaosLevel(cfg.Chaos),
		rotation: NewRotationConditioner(cfg.Rotation),
		stage:    NewRig("stage", cfg.Rig.Offset),
		inner:    NewRig("inner", Vec3{}),
		outer:    NewRig("outer", Vec3{}),
		viewer:   NewViewer(cfg.Viewer),
		debug:    cfg.Debug,
	}
	f.inner.SetParent(f.stage)
	f.outer.SetParent(f.stage)

	for _, gc := range cfg.Groups {
		rig := f.outer
		if gc.Role == RoleOrnament {
			rig = f.inner
		}
		g := newEntityGroup(gc, rig, &f.layout)
		if start := f.machine.Current(); start.Kind != FormationTree {
			g.rehome(start, &f.layout)
		}
		f.groups = append(f.groups, g)
	}
	f.notes = newNoteBoard(cfg.Notes, cfg.Focus, f.outer, f.layout.rng)
	return f, nil
}

// Update runs one frame pass. A clock with non-finite values or a negative
// delta is rejected and the frame skipped with state retained.
func (f *Field) Update(clock FrameClock) {
	if !clock.valid() {
		f.stats.RejectedClocks++
		return
	}
	var t0 time.Time
	if f.debug {
		t0 = time.Now()
	}
	f.frame++
	f.stats.Frames++

	if f.script != nil {
		f.script.step(f)
	}
	pose, havePose := f.snapshot()

	control, controlOK := pose.Hand(f.cfg.Pose.ControlHand)
	grab, grabOK := pose.Hand(f.cfg.Pose.GrabHand)
	controlOK = controlOK && havePose
	grabOK = grabOK && havePose

	rate := f.rotation.Update(control, controlOK)

	target := ChaosTarget(control, controlOK)
	if f.hasChaosOverride {
		target = f.chaosOverride
	}
	if !f.chaos.Apply(target) {
		f.stats.RejectedChaos++
	}
	c := f.chaos.Value()

	if f.machine.Observe(c) {
		spec := f.machine.Current()
		for _, g := range f.groups {
			if g.rehome(spec, &f.layout) {
				f.stats.Rehomes++
			}
		}
		f.stats.Advances++
		f.emit(FieldEvent{
			Type:           EventFormationAdvanced,
			NoteID:         -1,
			Formation:      spec,
			FormationIndex: f.machine.Index(),
		})
	}

	spin := rate + f.cfg.Rotation.IdleSpin
	f.outer.Spin(spin, clock.Delta)
	if f.machine.Current().Kind == FormationGlyph && c < f.cfg.Rig.SettleBelow {
		f.inner.Settle(f.cfg.Rig.SettleFactor)
	} else {
		f.inner.Spin(spin, clock.Delta)
	}

	var tb time.Time
	if f.debug {
		tb = time.Now()
	}
	for _, g := range f.groups {
		g.blend(c, clock.Elapsed)
	}
	if f.debug {
		f.stats.BlendTime = time.Since(tb)
	}

	acquired, released := f.notes.arbitrate(grab, grabOK)
	if released >= 0 {
		f.emit(FieldEvent{Type: EventFocusReleased, NoteID: released})
	}
	if acquired >= 0 {
		f.emit(FieldEvent{Type: EventFocusAcquired, NoteID: acquired})
	}

	f.viewer.Update(float32(clock.Delta))
	f.notes.move(c, f.viewer)

	f.flushEvents()

	if f.debug {
		f.stats.FrameTime = time.Since(t0)
		f.debugCheckInvariants()
		f.debugLog()
	}
}

// snapshot reads the pose for this frame: synthetic input first, then the
// live source. Stale and invalid samples never reach the frame pass; an
// invalid sample reuses the last valid frame.
func (f *Field) snapshot() (PoseFrame, bool) {
	frame, ok := f.processInjectedPose()
	if !ok && f.source != nil {
		var s PoseSample
		s, ok = f.source.Latest()
		if ok && f.cfg.Pose.StaleAfter > 0 && s.Age > f.cfg.Pose.StaleAfter {
			f.stats.StalePoses++
			ok = false
		}
		frame = s.Frame
	}
	if ok {
		if err := frame.Validate(); err != nil {
			f.stats.RejectedPoses++
			frame, ok = f.lastPose, f.hasPose
		} else {
			f.lastPose, f.hasPose = frame, true
		}
	}

	if ok != f.poseLive {
		f.poseLive = ok
		typ := EventPoseLost
		if ok {
			typ = EventPoseRestored
		}
		f.emit(FieldEvent{Type: typ, NoteID: -1})
	}
	if !ok {
		return PoseFrame{}, false
	}
	return frame, true
}

func (f *Field) emit(e FieldEvent) {
	e.Frame = f.frame
	e.Chaos = f.chaos.Value()
	if e.Type != EventFormationAdvanced {
		e.FormationIndex = f.machine.Index()
		e.Formation = f.machine.Current()
	}
	f.pending = append(f.pending, e)
}

func (f *Field) flushEvents() {
	if f.sink != nil {
		for _, e := range f.pending {
			f.sink.EmitEvent(e)
		}
	}
	f.pending = f.pending[:0]
}

// --- Accessors ---

// Config returns the configuration the field was built with.
func (f *Field) Config() Config { return f.cfg }

// Frame returns the number of frames run.
func (f *Field) Frame() uint64 { return f.frame }

// Chaos returns the current chaos level.
func (f *Field) Chaos() float64 { return f.chaos.Value() }

// Mode returns the current home formation.
func (f *Field) Mode() FormationSpec { return f.machine.Current() }

// ModeIndex returns k of HOME(k).
func (f *Field) ModeIndex() int { return f.machine.Index() }

// RotationRate returns the smoothed rotation rate.
func (f *Field) RotationRate() float64 { return f.rotation.Rate() }

// Groups returns the entity groups in evaluation order.
func (f *Field) Groups() []*EntityGroup { return f.groups }

// Group returns the group with the given name.
func (f *Field) Group(name string) (*EntityGroup, bool) {
	for _, g := range f.groups {
		if g.Name() == name {
			return g, true
		}
	}
	return nil, false
}

// Notes returns the note board.
func (f *Field) Notes() *NoteBoard { return f.notes }

// Viewer returns the viewer reference frame. Callers may move it between
// frames.
func (f *Field) Viewer() *Viewer { return f.viewer }

// InnerRig returns the frame ornament groups live in.
func (f *Field) InnerRig() *Rig { return f.inner }

// OuterRig returns the frame diffuse groups, the ribbon and notes live in.
func (f *Field) OuterRig() *Rig { return f.outer }

// FocusedNote returns the focused note, if any.
func (f *Field) FocusedNote() (Note, bool) {
	id, ok := f.notes.Focused()
	if !ok {
		return Note{}, false
	}
	n, _ := f.notes.Note(id)
	return n, true
}

// SetNoteText replaces the text of note id.
func (f *Field) SetNoteText(id int, text string) error {
	return f.notes.SetText(id, text)
}

// ReleaseFocus returns the focused note to ATTACHED, as requested by the UI.
// The grab hand must stop pinching before another note can be acquired.
func (f *Field) ReleaseFocus() {
	if id := f.notes.releaseRequested(); id >= 0 {
		f.emit(FieldEvent{Type: EventFocusReleased, NoteID: id})
		f.flushEvents()
	}
}

// SetChaosTarget replaces the pose-derived chaos target until
// ClearChaosTarget is called. The level still moves by the bounded law.
func (f *Field) SetChaosTarget(v float64) {
	f.chaosOverride = v
	f.hasChaosOverride = true
}

// ClearChaosTarget hands the chaos target back to the control hand.
func (f *Field) ClearChaosTarget() {
	f.hasChaosOverride = false
}

// SetEventSink sets the optional event consumer.
func (f *Field) SetEventSink(sink EventSink) {
	f.sink = sink
}

// SetDebugMode enables or disables debug mode. When enabled, per-frame
// timing stats are logged to stderr and invariant violations panic.
func (f *Field) SetDebugMode(enabled bool) {
	f.debug = enabled
}

// Stats returns a snapshot of the frame counters.
func (f *Field) Stats() FrameStats { return f.stats }
