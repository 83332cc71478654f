package tinsel

import (
	"math"
	"math/rand/v2"
)

// entity holds per-entity state. Unexported; managed by EntityGroup. All
// positions are in the owning rig's local frame.
type entity struct {
	home     Vec3
	scatter  Vec3 // frozen at creation
	rendered Vec3
	dir      Vec3 // unit explode direction, frozen at creation
	scale    float64
}

// layout bundles what formation generators need.
type layout struct {
	tree    TreeConfig
	ribbon  RibbonConfig
	scatter ScatterConfig
	glyphs  *GlyphRasterizer
	rng     *rand.Rand
}

// EntityGroup is a contiguous arena of entities sharing one generation
// rule. Home positions of a group are always recomputed together.
type EntityGroup struct {
	cfg      GroupConfig
	rig      *Rig
	entities []entity

	// treeHome caches the role layout so returning to TREE does not redraw
	// random diffuse positions.
	treeHome []Vec3
	scratch  []Vec3

	formation FormationSpec
	rehomes   int
}

// newEntityGroup builds the arena with homes in the role layout, a frozen
// scatter shell and frozen explode directions.
func newEntityGroup(cfg GroupConfig, rig *Rig, l *layout) *EntityGroup {
	g := &EntityGroup{
		cfg:       cfg,
		rig:       rig,
		entities:  make([]entity, cfg.Count),
		treeHome:  make([]Vec3, cfg.Count),
		scratch:   make([]Vec3, cfg.Count),
		formation: FormationSpec{Kind: FormationTree},
	}
	for i := range g.entities {
		var home Vec3
		switch cfg.Role {
		case RoleOrnament:
			home = TreeOrnament(l.tree, cfg, i)
		case RoleDiffuse:
			home = TreeDiffuse(l.tree, cfg.RadiusOffset, l.rng)
		case RoleRibbon:
			home = RibbonPosition(l.tree, l.ribbon, i, cfg.Count)
		}
		g.treeHome[i] = home
		g.entities[i] = entity{
			home:     home,
			scatter:  ScatterPosition(l.scatter, l.rng),
			rendered: home,
			dir:      RandomDirection(l.rng),
			scale:    g.baseScale(i),
		}
	}
	return g
}

// Name returns the group name.
func (g *EntityGroup) Name() string { return g.cfg.Name }

// Role returns the group role.
func (g *EntityGroup) Role() GroupRole { return g.cfg.Role }

// Count returns the number of entities.
func (g *EntityGroup) Count() int { return len(g.entities) }

// Rig returns the parent frame the group lives in.
func (g *EntityGroup) Rig() *Rig { return g.rig }

// Formation returns the formation the current homes were generated from.
func (g *EntityGroup) Formation() FormationSpec { return g.formation }

// Rehomes returns how many times the homes were regenerated.
func (g *EntityGroup) Rehomes() int { return g.rehomes }

// Config returns the group's configuration.
func (g *EntityGroup) Config() GroupConfig { return g.cfg }

// Position returns the rendered rig-local position of entity i.
func (g *EntityGroup) Position(i int) Vec3 { return g.entities[i].rendered }

// Home returns the home position of entity i.
func (g *EntityGroup) Home(i int) Vec3 { return g.entities[i].home }

// ScatterPoint returns the frozen scatter position of entity i.
func (g *EntityGroup) ScatterPoint(i int) Vec3 { return g.entities[i].scatter }

// Scale returns the render scale of entity i.
func (g *EntityGroup) Scale(i int) float64 { return g.entities[i].scale }

// Positions appends every rendered rig-local position to dst.
func (g *EntityGroup) Positions(dst []Vec3) []Vec3 {
	for i := range g.entities {
		dst = append(dst, g.entities[i].rendered)
	}
	return dst
}

// WorldPositions appends every rendered position, converted to world space,
// to dst.
func (g *EntityGroup) WorldPositions(dst []Vec3) []Vec3 {
	for i := range g.entities {
		dst = append(dst, g.rig.LocalToWorld(g.entities[i].rendered))
	}
	return dst
}

// rehome regenerates every home position for spec. Groups that do not
// follow the formation ignore the call. Positions are computed into a
// scratch buffer first and only then committed, so a half-updated group is
// never visible to the blend. Reports whether homes changed.
func (g *EntityGroup) rehome(spec FormationSpec, l *layout) bool {
	if !g.cfg.FollowsFormation {
		return false
	}
	switch spec.Kind {
	case FormationTree:
		copy(g.scratch, g.treeHome)
	case FormationGlyph:
		l.glyphs.Positions(g.scratch, spec.Glyph, l.rng)
	case FormationRibbon:
		for i := range g.scratch {
			g.scratch[i] = RibbonPosition(l.tree, l.ribbon, i, len(g.scratch))
		}
	case FormationScatter:
		for i := range g.scratch {
			g.scratch[i] = g.entities[i].scatter
		}
	}
	for i := range g.entities {
		g.entities[i].home = g.scratch[i]
	}
	g.formation = spec
	g.rehomes++
	return true
}

// blend runs the per-entity kernel for one frame.
func (g *EntityGroup) blend(chaos, elapsed float64) {
	explode := math.Sin(chaos*math.Pi) * g.cfg.ExplodeMagnitude
	ripple := 0.0
	if g.cfg.Role == RoleDiffuse {
		ripple = g.cfg.Ripple * (1 - chaos)
	}
	smoothing := g.cfg.Smoothing
	grow := 1 + chaos*g.cfg.ChaosScale

	for i := range g.entities {
		e := &g.entities[i]
		b := LerpVec3(e.home, e.scatter, chaos).AddScaled(e.dir, explode)
		if ripple != 0 {
			b.Y += math.Sin(elapsed+b.X) * ripple
		}
		next := LerpVec3(e.rendered, b, smoothing)
		if next.IsFinite() {
			e.rendered = next
		}
		e.scale = g.baseScale(i) * grow
	}
}

func (g *EntityGroup) baseScale(i int) float64 {
	if g.cfg.Gold && i == len(g.entities)-1 && g.cfg.ApexScale > 0 {
		return g.cfg.ApexScale
	}
	return g.cfg.BaseScale
}
