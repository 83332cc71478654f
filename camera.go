package tinsel

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// worldUp is the fixed up vector of the viewer basis.
var worldUp = Vec3{Y: 1}

// orbitAnim holds an active orbit glide around the viewer target.
type orbitAnim struct {
	azimuth *gween.Tween
	radius  float64
	height  float64
}

// Viewer is the viewer reference frame: a perspective eye looking at a
// target. Focused notes are held in front of it.
type Viewer struct {
	// Position is the world-space eye position.
	Position Vec3
	// Target is the world-space point the eye looks at.
	Target Vec3
	// FOV is the vertical field of view in degrees.
	FOV float64

	orbit *orbitAnim
}

// NewViewer creates a Viewer from cfg.
func NewViewer(cfg ViewerConfig) *Viewer {
	return &Viewer{Position: cfg.Position, Target: cfg.Target, FOV: cfg.FOV}
}

// Forward returns the unit facing direction. A degenerate frame faces -Z.
func (v *Viewer) Forward() Vec3 {
	f := v.Target.Sub(v.Position).Normalize()
	if f == (Vec3{}) {
		return Vec3{Z: -1}
	}
	return f
}

// basis returns the right and up unit vectors.
func (v *Viewer) basis(f Vec3) (right, up Vec3) {
	right = Vec3{X: -f.Z, Z: f.X}.Normalize() // f × worldUp
	if right == (Vec3{}) {
		right = Vec3{X: 1}
	}
	up = Vec3{
		X: right.Y*f.Z - right.Z*f.Y,
		Y: right.Z*f.X - right.X*f.Z,
		Z: right.X*f.Y - right.Y*f.X,
	}
	return right, up
}

// FocusPoint returns the world point distance units in front of the eye.
func (v *Viewer) FocusPoint(distance float64) Vec3 {
	return v.Position.AddScaled(v.Forward(), distance)
}

// Project maps a world point to screen pixels for a w×h viewport. ok is
// false when the point is at or behind the eye.
func (v *Viewer) Project(p Vec3, w, h float64) (sx, sy, depth float64, ok bool) {
	f := v.Forward()
	right, up := v.basis(f)
	d := p.Sub(v.Position)
	depth = d.Dot(f)
	if depth <= 1e-6 {
		return 0, 0, depth, false
	}
	focal := 1 / math.Tan(v.FOV*math.Pi/360)
	aspect := w / h
	nx := d.Dot(right) * focal / (aspect * depth)
	ny := d.Dot(up) * focal / depth
	return (nx + 1) / 2 * w, (1 - ny) / 2 * h, depth, true
}

// Unproject casts a ray through screen pixel (sx, sy) and intersects it
// with the plane z = planeZ. ok is false when the ray is parallel to the
// plane or the hit is behind the eye.
func (v *Viewer) Unproject(sx, sy, w, h, planeZ float64) (Vec3, bool) {
	f := v.Forward()
	right, up := v.basis(f)
	tanHalf := math.Tan(v.FOV * math.Pi / 360)
	nx := sx/w*2 - 1
	ny := 1 - sy/h*2
	dir := f.AddScaled(right, nx*tanHalf*w/h).AddScaled(up, ny*tanHalf)
	if math.Abs(dir.Z) < 1e-9 {
		return Vec3{}, false
	}
	t := (planeZ - v.Position.Z) / dir.Z
	if t <= 0 || !isFinite(t) {
		return Vec3{}, false
	}
	return v.Position.AddScaled(dir, t), true
}

// OrbitTo glides the eye around Target to the given azimuth (radians,
// measured from +Z toward +X) over duration seconds, keeping its height
// and horizontal distance.
func (v *Viewer) OrbitTo(azimuth float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.InOutSine
	}
	d := v.Position.Sub(v.Target)
	from := math.Atan2(d.X, d.Z)
	// take the short way round
	delta := math.Remainder(azimuth-from, 2*math.Pi)
	v.orbit = &orbitAnim{
		azimuth: gween.New(float32(from), float32(from+delta), duration, easeFn),
		radius:  math.Hypot(d.X, d.Z),
		height:  d.Y,
	}
}

// Orbiting reports whether an orbit glide is in progress.
func (v *Viewer) Orbiting() bool {
	return v.orbit != nil
}

// Update advances the orbit glide by dt seconds.
func (v *Viewer) Update(dt float32) {
	if v.orbit == nil {
		return
	}
	a, done := v.orbit.azimuth.Update(dt)
	sin, cos := math.Sincos(float64(a))
	v.Position = v.Target.Add(Vec3{
		X: v.orbit.radius * sin,
		Y: v.orbit.height,
		Z: v.orbit.radius * cos,
	})
	if done {
		v.orbit = nil
	}
}
