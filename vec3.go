package tinsel

import "math"

// Vec3 is a 3D vector used for entity positions, directions and hand
// positions. Y is up; the viewer looks down -Z by default.
type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// AddScaled returns v + o*s.
func (v Vec3) AddScaled(o Vec3, s float64) Vec3 {
	return Vec3{v.X + o.X*s, v.Y + o.Y*s, v.Z + o.Z*s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Len()
}

// Normalize returns v scaled to unit length. The zero vector stays zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	inv := 1.0 / l
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// IsFinite reports whether every component is neither NaN nor infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// RotateY rotates v about the Y axis by angle radians (right-handed,
// counter-clockwise when looking down from +Y).
func (v Vec3) RotateY(angle float64) Vec3 {
	sin, cos := math.Sincos(angle)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// LerpVec3 linearly interpolates between a and b by t.
func LerpVec3(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// Spherical converts spherical coordinates to a Cartesian point. phi is the
// polar angle measured from +Y, theta the azimuth measured from +Z toward +X.
func Spherical(radius, phi, theta float64) Vec3 {
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	return Vec3{
		X: radius * sinPhi * sinTheta,
		Y: radius * cosPhi,
		Z: radius * sinPhi * cosTheta,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// lerp linearly interpolates between a and b by t.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
