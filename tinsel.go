package tinsel

import (
	"fmt"
	"math/rand/v2"
)

// FormationKind selects the generator used for an entity group's home
// positions.
type FormationKind uint8

const (
	FormationTree    FormationKind = iota // conical spiral silhouette
	FormationGlyph                        // point cloud sampled from a rasterized character
	FormationRibbon                       // helical ribbon around the tree
	FormationScatter                      // the shared exploded shell
)

// String returns the lowercase config name of the kind.
func (k FormationKind) String() string {
	switch k {
	case FormationTree:
		return "tree"
	case FormationGlyph:
		return "glyph"
	case FormationRibbon:
		return "ribbon"
	case FormationScatter:
		return "scatter"
	default:
		return fmt.Sprintf("formation(%d)", uint8(k))
	}
}

// GroupRole distinguishes how a group lays out its tree formation and
// whether it follows glyph formations.
type GroupRole uint8

const (
	RoleOrnament GroupRole = iota // even golden-angle layout, follows glyphs
	RoleDiffuse                   // random density-biased layout with ripple
	RoleRibbon                    // fixed helix
)

// String returns the lowercase config name of the role.
func (r GroupRole) String() string {
	switch r {
	case RoleOrnament:
		return "ornament"
	case RoleDiffuse:
		return "diffuse"
	case RoleRibbon:
		return "ribbon"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Range is a general-purpose min/max range.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Random returns a random float64 in [Min, Max] drawn from rng.
func (r Range) Random(rng *rand.Rand) float64 {
	if r.Min == r.Max {
		return r.Min
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// newRand returns a deterministic PCG source for the given seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// FrameClock is supplied by the rendering collaborator once per frame.
type FrameClock struct {
	// Elapsed is the monotonically increasing time since start, in seconds.
	Elapsed float64
	// Delta is the time since the previous frame, in seconds.
	Delta float64
}

func (c FrameClock) valid() bool {
	return isFinite(c.Elapsed) && isFinite(c.Delta) && c.Delta >= 0
}
