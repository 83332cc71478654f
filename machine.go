package tinsel

import (
	"fmt"
	"strings"
)

// FormationSpec is one entry of the home-formation sequence.
type FormationSpec struct {
	Kind FormationKind
	// Glyph is the character rendered by FormationGlyph entries.
	Glyph string
}

// String returns the config form of the spec.
func (s FormationSpec) String() string {
	if s.Kind == FormationGlyph {
		return "glyph:" + s.Glyph
	}
	return s.Kind.String()
}

// ParseFormationSpec parses "tree", "ribbon", "scatter" or "glyph:<char>".
// An empty glyph is accepted and yields a degenerate formation.
func ParseFormationSpec(s string) (FormationSpec, error) {
	if rest, ok := strings.CutPrefix(s, "glyph:"); ok {
		return FormationSpec{Kind: FormationGlyph, Glyph: rest}, nil
	}
	switch s {
	case "tree":
		return FormationSpec{Kind: FormationTree}, nil
	case "ribbon":
		return FormationSpec{Kind: FormationRibbon}, nil
	case "scatter":
		return FormationSpec{Kind: FormationScatter}, nil
	}
	return FormationSpec{}, fmt.Errorf("unknown formation %q", s)
}

// FormationMachine owns the discrete home formation. It advances forward
// one step per excursion of the chaos level above the high threshold; the
// latch only re-arms once the level falls below the low threshold.
type FormationMachine struct {
	seq   []FormationSpec
	index int
	armed bool // true once an advance fired and the level has not yet dropped below low
	high  float64
	low   float64
}

// NewFormationMachine builds a machine over seq starting at HOME(0). seq
// must not be empty.
func NewFormationMachine(seq []FormationSpec, cfg ChaosConfig) *FormationMachine {
	if len(seq) == 0 {
		panic("tinsel: empty formation sequence")
	}
	return &FormationMachine{
		seq:  append([]FormationSpec(nil), seq...),
		high: cfg.High,
		low:  cfg.Low,
	}
}

// Observe feeds the current chaos level and reports whether the home
// formation advanced. Non-finite levels are ignored.
func (m *FormationMachine) Observe(level float64) bool {
	if !isFinite(level) {
		return false
	}
	if level < m.low {
		m.armed = false
		return false
	}
	if level > m.high && !m.armed {
		m.index = (m.index + 1) % len(m.seq)
		m.armed = true
		return true
	}
	return false
}

// Index returns k of HOME(k).
func (m *FormationMachine) Index() int {
	return m.index
}

// Current returns the active home formation.
func (m *FormationMachine) Current() FormationSpec {
	return m.seq[m.index]
}

// Len returns the sequence length.
func (m *FormationMachine) Len() int {
	return len(m.seq)
}

// Latched reports whether the machine is waiting for the level to fall
// below the low threshold.
func (m *FormationMachine) Latched() bool {
	return m.armed
}

func parseFormations(entries []string) ([]FormationSpec, error) {
	seq := make([]FormationSpec, 0, len(entries))
	for _, e := range entries {
		s, err := ParseFormationSpec(e)
		if err != nil {
			return nil, err
		}
		seq = append(seq, s)
	}
	return seq, nil
}
