package tinsel

import "math"

// Rig is a parent frame that entities are positioned in. Its world
// transform is Translate(Offset) * RotateY(Angle), optionally nested under
// a parent rig.
//
// Entity positions (home, scatter, rendered) are always in rig-local
// coordinates; only arbitration and the focus target cross frames.
type Rig struct {
	Name   string
	Offset Vec3
	// Angle is the rotation about the local Y axis in radians.
	Angle float64

	parent *Rig
}

// NewRig returns a rig at offset with no rotation.
func NewRig(name string, offset Vec3) *Rig {
	return &Rig{Name: name, Offset: offset}
}

// SetParent nests the rig under p. Passing nil detaches it.
func (r *Rig) SetParent(p *Rig) {
	for q := p; q != nil; q = q.parent {
		if q == r {
			panic("tinsel: rig cycle")
		}
	}
	r.parent = p
}

// Parent returns the enclosing rig, or nil.
func (r *Rig) Parent() *Rig {
	return r.parent
}

// Spin advances the rig angle by rate*dt, wrapping into [0, 2π).
// Non-finite results are discarded.
func (r *Rig) Spin(rate, dt float64) {
	a := r.Angle + rate*dt
	if !isFinite(a) {
		return
	}
	r.Angle = math.Mod(a, 2*math.Pi)
	if r.Angle < 0 {
		r.Angle += 2 * math.Pi
	}
}

// Settle pulls the angle toward the nearest multiple of 2π by factor so
// the rig's content ends up facing the viewer.
func (r *Rig) Settle(factor float64) {
	a := math.Remainder(r.Angle, 2*math.Pi)
	a *= factor
	if math.Abs(a) < 1e-5 {
		a = 0
	}
	if a < 0 {
		a += 2 * math.Pi
	}
	r.Angle = a
}

// LocalToWorld converts a rig-local point to world space.
func (r *Rig) LocalToWorld(p Vec3) Vec3 {
	for q := r; q != nil; q = q.parent {
		p = p.RotateY(q.Angle).Add(q.Offset)
	}
	return p
}

// WorldToLocal converts a world-space point into the rig's local frame. It
// is the exact inverse of LocalToWorld.
func (r *Rig) WorldToLocal(p Vec3) Vec3 {
	if r.parent != nil {
		p = r.parent.WorldToLocal(p)
	}
	return p.Sub(r.Offset).RotateY(-r.Angle)
}
