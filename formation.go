package tinsel

import (
	"math"
	"math/rand/v2"
)

// GoldenAngle is π(3-√5). Multiples of it never repeat modulo 2π, so
// ornaments spaced by it stay angularly uniform for any count.
var GoldenAngle = math.Pi * (3 - math.Sqrt(5))

// TreePosition places a point on the cone at height ratio h (0 base, 1
// apex) and azimuth theta. radiusOffset widens the cone for layered groups.
func TreePosition(tree TreeConfig, h, theta, radiusOffset float64) Vec3 {
	y := -tree.Height/2 + h*tree.Height
	r := (1 - h) * (tree.Radius + radiusOffset)
	sin, cos := math.Sincos(theta)
	return Vec3{X: r * cos, Y: y, Z: r * sin}
}

// OrnamentHeight returns the height ratio of ornament i of count. Equal
// index steps cover equal lateral cone area, so ornaments thin out toward
// the apex instead of bunching there.
func OrnamentHeight(i, count int) float64 {
	area := (float64(i) + 0.5) / float64(count)
	return 1 - math.Sqrt(1-area)
}

// OrnamentAzimuth returns the golden-angle azimuth of ornament i.
func OrnamentAzimuth(i int, angleOffset float64) float64 {
	return float64(i)*GoldenAngle + angleOffset
}

// TreeOrnament returns the tree position of entity i in an ornament group.
// The last entity of a gold group is pinned to the apex.
func TreeOrnament(tree TreeConfig, g GroupConfig, i int) Vec3 {
	if g.Gold && i == g.Count-1 {
		return TreePosition(tree, 1, 0, g.RadiusOffset)
	}
	return TreePosition(tree, OrnamentHeight(i, g.Count), OrnamentAzimuth(i, g.AngleOffset), g.RadiusOffset)
}

// TreeDiffuse returns a random tree position biased toward the apex by
// tree.DensityBias.
func TreeDiffuse(tree TreeConfig, radiusOffset float64, rng *rand.Rand) Vec3 {
	h := math.Pow(rng.Float64(), tree.DensityBias)
	return TreePosition(tree, h, rng.Float64()*2*math.Pi, radiusOffset)
}

// RibbonPosition returns point i of count on the helix wound around the
// tree. It is deterministic.
func RibbonPosition(tree TreeConfig, ribbon RibbonConfig, i, count int) Vec3 {
	var t float64
	if count > 1 {
		t = float64(i) / float64(count-1)
	}
	theta := t * ribbon.Turns * 2 * math.Pi
	height := tree.Height + ribbon.ExtraHeight
	y := -height/2 + t*height
	r := lerp(ribbon.OuterRadius, ribbon.InnerRadius, t)
	sin, cos := math.Sincos(theta)
	return Vec3{X: r * cos, Y: y, Z: r * sin}
}

// ScatterPosition returns a point on the thick spherical shell. Polar
// angles come from acos(2u-1) so points are uniform over the sphere rather
// than clustered at the poles.
func ScatterPosition(s ScatterConfig, rng *rand.Rand) Vec3 {
	r := s.Radius.Random(rng)
	phi := math.Acos(2*rng.Float64() - 1)
	theta := rng.Float64() * 2 * math.Pi
	return Spherical(r, phi, theta)
}

// RandomDirection returns a random unit vector.
func RandomDirection(rng *rand.Rand) Vec3 {
	for {
		v := Vec3{rng.Float64() - 0.5, rng.Float64() - 0.5, rng.Float64() - 0.5}
		if l := v.Len(); l > 1e-6 {
			return v.Scale(1 / l)
		}
	}
}
