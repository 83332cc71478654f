package tinsel

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrUnknownNote is returned for note ids outside the board.
var ErrUnknownNote = errors.New("unknown note")

// NoteState is the focus state of one note.
type NoteState uint8

const (
	NoteAttached NoteState = iota // orbiting its anchor
	NoteFocused                   // held in front of the viewer
)

func (s NoteState) String() string {
	if s == NoteFocused {
		return "focused"
	}
	return "attached"
}

// Note is a user-editable text entity. Positions are local to the rig the
// board lives in.
type Note struct {
	ID       int
	Text     string
	Anchor   Vec3
	Scatter  Vec3
	Rendered Vec3
	State    NoteState
}

// NoteBoard holds the notes and the single focus slot. Only the frame pass
// mutates it, in fixed note order, so at most one note is ever focused.
type NoteBoard struct {
	notes   []Note
	focused int // note id or -1
	// suppressed blocks acquisition until the grab hand stops pinching, so
	// a note released by ReleaseFocus is not instantly recaptured.
	suppressed bool

	cfg   NotesConfig
	focus FocusConfig
	rig   *Rig
}

// NoteAnchor returns the fixed anchor of note i of count. Height steps
// evenly from PolarStart up to the pole and the azimuth grows with the
// polar angle, spreading notes around the sphere.
func NoteAnchor(cfg NotesConfig, i, count int) Vec3 {
	y := (cfg.PolarStart + 1) / 2
	if count > 1 {
		y = cfg.PolarStart + (1-cfg.PolarStart)*float64(i)/float64(count-1)
	}
	phi := math.Acos(max(-1, min(1, y)))
	theta := math.Sqrt(float64(count)*math.Pi) * phi * cfg.Spread
	return Spherical(cfg.Radius, phi, theta)
}

func newNoteBoard(cfg NotesConfig, focus FocusConfig, rig *Rig, rng *rand.Rand) *NoteBoard {
	b := &NoteBoard{
		notes:   make([]Note, len(cfg.Texts)),
		focused: -1,
		cfg:     cfg,
		focus:   focus,
		rig:     rig,
	}
	for i, text := range cfg.Texts {
		anchor := NoteAnchor(cfg, i, len(cfg.Texts))
		b.notes[i] = Note{
			ID:       i,
			Text:     text,
			Anchor:   anchor,
			Scatter:  ScatterPosition(ScatterConfig{Radius: cfg.Scatter}, rng),
			Rendered: anchor,
		}
	}
	return b
}

// Len returns the number of notes.
func (b *NoteBoard) Len() int { return len(b.notes) }

// Note returns a copy of note id.
func (b *NoteBoard) Note(id int) (Note, error) {
	if id < 0 || id >= len(b.notes) {
		return Note{}, fmt.Errorf("%w: %d", ErrUnknownNote, id)
	}
	return b.notes[id], nil
}

// Notes appends copies of every note to dst.
func (b *NoteBoard) Notes(dst []Note) []Note {
	return append(dst, b.notes...)
}

// Focused returns the focused note id.
func (b *NoteBoard) Focused() (int, bool) {
	return b.focused, b.focused >= 0
}

// SetText replaces the text of note id.
func (b *NoteBoard) SetText(id int, text string) error {
	if id < 0 || id >= len(b.notes) {
		return fmt.Errorf("%w: %d", ErrUnknownNote, id)
	}
	b.notes[id].Text = text
	return nil
}

// WorldPosition returns the rendered position of note id in world space.
func (b *NoteBoard) WorldPosition(id int) (Vec3, error) {
	if id < 0 || id >= len(b.notes) {
		return Vec3{}, fmt.Errorf("%w: %d", ErrUnknownNote, id)
	}
	return b.worldPos(id), nil
}

func (b *NoteBoard) worldPos(id int) Vec3 {
	return b.rig.LocalToWorld(b.notes[id].Rendered)
}

// release returns the focused note to ATTACHED and reports its id.
func (b *NoteBoard) release() int {
	id := b.focused
	if id < 0 {
		return -1
	}
	b.notes[id].State = NoteAttached
	b.focused = -1
	return id
}

// arbitrate runs the grab protocol for one frame. It returns the id that
// acquired focus and the id that released it, -1 for none.
func (b *NoteBoard) arbitrate(hand HandSample, present bool) (acquired, released int) {
	acquired, released = -1, -1
	if !present || !hand.Pinching {
		b.suppressed = false
		return -1, b.release()
	}
	if b.focused >= 0 || b.suppressed {
		return -1, -1
	}

	best, bestDist := -1, math.Inf(1)
	for i := range b.notes {
		d := b.worldPos(i).Dist(hand.Position)
		if !(d < b.focus.CaptureRadius) {
			continue
		}
		if b.focus.TieBreak != TieBreakNearest {
			best = i
			break
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return -1, -1
	}
	b.notes[best].State = NoteFocused
	b.focused = best
	return best, -1
}

// releaseRequested handles a UI release. Acquisition stays blocked until the
// current pinch ends.
func (b *NoteBoard) releaseRequested() int {
	id := b.release()
	if id >= 0 {
		b.suppressed = true
	}
	return id
}

// move advances every note toward its target for this frame.
func (b *NoteBoard) move(chaos float64, viewer *Viewer) {
	var focusTarget Vec3
	if b.focused >= 0 {
		// Converted into the rig frame each frame so rig rotation never
		// carries the focused note away from the viewer.
		focusTarget = b.rig.WorldToLocal(viewer.FocusPoint(b.focus.Distance))
	}
	for i := range b.notes {
		n := &b.notes[i]
		var target Vec3
		alpha := b.cfg.Smoothing
		if n.State == NoteFocused {
			target = focusTarget
			alpha = b.cfg.FocusSmoothing
		} else {
			target = LerpVec3(n.Anchor, n.Scatter, chaos*b.cfg.ScatterInfluence)
		}
		next := LerpVec3(n.Rendered, target, alpha)
		if next.IsFinite() {
			n.Rendered = next
		}
	}
}
