package tinsel

import (
	"math"
	"sort"
	"testing"
)

func TestGoldenAngleAzimuthsDistinct(t *testing.T) {
	for _, n := range []int{2, 10, 400, 1500} {
		az := make([]float64, n)
		for i := range az {
			az[i] = math.Mod(OrnamentAzimuth(i, 0), 2*math.Pi)
		}
		sort.Float64s(az)
		for i := 1; i < n; i++ {
			if az[i]-az[i-1] < 1e-9 {
				t.Fatalf("n=%d: azimuths %d and %d coincide at %v", n, i-1, i, az[i])
			}
		}
	}
}

func TestOrnamentHeightRange(t *testing.T) {
	const n = 1500
	prev := -1.0
	for i := 0; i < n; i++ {
		h := OrnamentHeight(i, n)
		if h <= 0 || h >= 1 {
			t.Fatalf("h(%d) = %v outside (0,1)", i, h)
		}
		if h <= prev {
			t.Fatalf("h(%d) = %v not increasing (prev %v)", i, h, prev)
		}
		prev = h
	}
}

func TestTreePositionOnCone(t *testing.T) {
	tree := TreeConfig{Height: 16, Radius: 6, DensityBias: 0.8}
	base := TreePosition(tree, 0, 0, 0)
	assertVecNear(t, "base", base, Vec3{X: 6, Y: -8}, 1e-12)
	apex := TreePosition(tree, 1, 2.2, 0.5)
	assertVecNear(t, "apex", apex, Vec3{Y: 8}, 1e-12)

	mid := TreePosition(tree, 0.5, 1, 0.5)
	r := math.Hypot(mid.X, mid.Z)
	assertNear(t, "mid radius", r, 0.5*6.5)
	assertNear(t, "mid height", mid.Y, 0)
}

func TestTreeOrnamentGoldApex(t *testing.T) {
	tree := DefaultConfig().Tree
	g := GroupConfig{Name: "gold", Count: 20, Gold: true}
	assertVecNear(t, "apex", TreeOrnament(tree, g, 19), Vec3{Y: tree.Height / 2}, 1e-12)
	if p := TreeOrnament(tree, g, 18); p.Y >= tree.Height/2 {
		t.Errorf("non-apex ornament at the top: %+v", p)
	}
	g.Gold = false
	if p := TreeOrnament(tree, g, 19); approxEqual(p.Y, tree.Height/2, 1e-9) {
		t.Errorf("non-gold last ornament pinned to apex: %+v", p)
	}
}

func TestTreeDiffuseInsideCone(t *testing.T) {
	tree := DefaultConfig().Tree
	rng := newRand(1)
	for i := 0; i < 2000; i++ {
		p := TreeDiffuse(tree, 0, rng)
		h := (p.Y + tree.Height/2) / tree.Height
		if h < -1e-9 || h > 1+1e-9 {
			t.Fatalf("height ratio %v outside [0,1]", h)
		}
		if r := math.Hypot(p.X, p.Z); r > (1-h)*tree.Radius+1e-9 {
			t.Fatalf("point %+v outside cone", p)
		}
	}
}

func TestRibbonEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	first := RibbonPosition(cfg.Tree, cfg.Ribbon, 0, 2000)
	last := RibbonPosition(cfg.Tree, cfg.Ribbon, 1999, 2000)
	h := cfg.Tree.Height + cfg.Ribbon.ExtraHeight
	assertVecNear(t, "first", first, Vec3{X: cfg.Ribbon.OuterRadius, Y: -h / 2}, 1e-9)
	// three whole turns bring the helix back to +X
	assertVecNear(t, "last", last, Vec3{X: cfg.Ribbon.InnerRadius, Y: h / 2}, 1e-9)

	if p := RibbonPosition(cfg.Tree, cfg.Ribbon, 0, 1); !p.IsFinite() {
		t.Errorf("single-entity ribbon not finite: %+v", p)
	}
	if a, b := RibbonPosition(cfg.Tree, cfg.Ribbon, 700, 2000), RibbonPosition(cfg.Tree, cfg.Ribbon, 700, 2000); a != b {
		t.Error("ribbon is not deterministic")
	}
}

func TestScatterShell(t *testing.T) {
	s := ScatterConfig{Radius: Range{Min: 15, Max: 35}}
	rng := newRand(7)
	var sumY float64
	const n = 4000
	for i := 0; i < n; i++ {
		p := ScatterPosition(s, rng)
		if r := p.Len(); r < 15-1e-9 || r > 35+1e-9 {
			t.Fatalf("radius %v outside shell", r)
		}
		sumY += p.Y / p.Len()
	}
	// uniform over the sphere: mean cos(polar) near zero
	if mean := sumY / n; math.Abs(mean) > 0.05 {
		t.Errorf("mean cos(polar) = %v, points cluster", mean)
	}
}

func TestRandomDirectionUnit(t *testing.T) {
	rng := newRand(3)
	for i := 0; i < 500; i++ {
		if l := RandomDirection(rng).Len(); !approxEqual(l, 1, 1e-12) {
			t.Fatalf("len = %v", l)
		}
	}
}
