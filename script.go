package tinsel

import (
	"encoding/json"
	"fmt"
)

// scriptStep represents a single action in a pose script.
type scriptStep struct {
	Action   string   `json:"action"`
	Hand     Hand     `json:"hand,omitempty"`
	At       *Vec3    `json:"at,omitempty"`
	From     *Vec3    `json:"from,omitempty"`
	To       *Vec3    `json:"to,omitempty"`
	Pinching bool     `json:"pinching,omitempty"`
	Frames   int      `json:"frames,omitempty"`
	Ease     string   `json:"ease,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

// poseScript is the top-level JSON structure for a pose script.
type poseScript struct {
	Steps []scriptStep `json:"steps"`
}

// PoseScript sequences synthetic pose input and chaos overrides across
// frames, for demos and automated runs. Attach to a Field via SetScript.
//
//	{"steps": [
//	  {"action": "pose", "hand": "right", "at": {"x": -8.75, "y": 0, "z": 8}},
//	  {"action": "wait", "frames": 60},
//	  {"action": "sweep", "hand": "left", "from": {...}, "to": {...}, "frames": 30, "pinching": true},
//	  {"action": "release", "hand": "left"},
//	  {"action": "chaos", "value": 1},
//	  {"action": "clear"}
//	]}
type PoseScript struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
}

// LoadPoseScript parses a JSON pose script and returns a PoseScript ready
// to be attached to a Field via SetScript.
func LoadPoseScript(jsonData []byte) (*PoseScript, error) {
	var script poseScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse pose script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse pose script: no steps")
	}
	for i, st := range script.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("parse pose script: step %d: %w", i, err)
		}
	}
	return &PoseScript{steps: script.Steps}, nil
}

func (st scriptStep) validate() error {
	needHand := func() error {
		if st.Hand != HandLeft && st.Hand != HandRight {
			return fmt.Errorf("%s: hand must be left or right, got %q", st.Action, st.Hand)
		}
		return nil
	}
	switch st.Action {
	case "pose", "pinch":
		if st.At == nil {
			return fmt.Errorf("%s: missing at", st.Action)
		}
		return needHand()
	case "release", "absent":
		return needHand()
	case "sweep":
		if st.From == nil || st.To == nil {
			return fmt.Errorf("sweep: missing from or to")
		}
		if EaseByName(st.Ease) == nil {
			return fmt.Errorf("sweep: unknown ease %q", st.Ease)
		}
		return needHand()
	case "wait", "clear":
		return nil
	case "chaos":
		if st.Value != nil && !isFinite(*st.Value) {
			return fmt.Errorf("chaos: value must be finite")
		}
		return nil
	}
	return fmt.Errorf("unknown action %q", st.Action)
}

// SetScript attaches a script to the field. Its step method runs at the
// top of each Update before the pose snapshot. Passing nil detaches it.
func (f *Field) SetScript(script *PoseScript) {
	f.script = script
}

// Done reports whether all steps in the script have been executed.
func (r *PoseScript) Done() bool {
	return r.done
}

// step advances the script by one frame. Called from Field.Update.
func (r *PoseScript) step(f *Field) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if len(f.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "pose":
		f.InjectHand(st.Hand, HandSample{Position: *st.At, Pinching: st.Pinching})
	case "pinch":
		f.InjectPinch(st.Hand, *st.At)
	case "release":
		f.InjectRelease(st.Hand)
	case "absent":
		f.InjectAbsent(st.Hand)
	case "sweep":
		f.InjectSweep(st.Hand, *st.From, *st.To, st.Frames, st.Pinching, EaseByName(st.Ease))
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "chaos":
		if st.Value == nil {
			f.ClearChaosTarget()
		} else {
			f.SetChaosTarget(*st.Value)
		}
	case "clear":
		f.InjectClear()
		f.ClearChaosTarget()
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(f.injectQueue) == 0 {
		r.done = true
	}
}
