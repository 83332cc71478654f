package tinsel

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// MaxNotes bounds the number of note entities a field may carry.
const MaxNotes = 16

// Config holds every tunable constant of a Field. The zero value is not
// usable; start from DefaultConfig and override fields, or use LoadConfig.
type Config struct {
	// Seed drives every random draw (scatter shells, explode directions,
	// diffuse layouts, glyph sampling) so a field is reproducible.
	Seed uint64 `yaml:"seed"`

	Tree     TreeConfig     `yaml:"tree"`
	Scatter  ScatterConfig  `yaml:"scatter"`
	Glyph    GlyphConfig    `yaml:"glyph"`
	Ribbon   RibbonConfig   `yaml:"ribbon"`
	Chaos    ChaosConfig    `yaml:"chaos"`
	Rotation RotationConfig `yaml:"rotation"`
	Rig      RigConfig      `yaml:"rig"`
	Notes    NotesConfig    `yaml:"notes"`
	Focus    FocusConfig    `yaml:"focus"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Pose     PoseConfig     `yaml:"pose"`

	// Formations is the cyclic home-formation sequence. Entries are "tree",
	// "ribbon", "scatter" or "glyph:<char>".
	Formations []string `yaml:"formations"`

	// Groups lists the entity groups in evaluation order.
	Groups []GroupConfig `yaml:"groups"`

	// Debug enables per-frame stats on stderr and invariant panics.
	Debug bool `yaml:"debug"`
}

// TreeConfig describes the cone every TREE formation is laid out on.
type TreeConfig struct {
	Height float64 `yaml:"height"`
	Radius float64 `yaml:"radius"`
	// DensityBias is the exponent applied to uniform draws for diffuse
	// groups. Values below 1 push points toward the apex.
	DensityBias float64 `yaml:"density_bias"`
}

// ScatterConfig describes the shared exploded shell.
type ScatterConfig struct {
	Radius Range `yaml:"radius"`
}

// GlyphConfig controls glyph rasterization and world mapping.
type GlyphConfig struct {
	// Resolution is the square bitmap edge in pixels.
	Resolution int `yaml:"resolution"`
	// FontSize is the rasterized size in pixels.
	FontSize float64 `yaml:"font_size"`
	// Threshold is the minimum coverage (0..255) for a pixel to count as lit.
	Threshold uint8 `yaml:"threshold"`
	// Scale maps the unit square to world units.
	Scale float64 `yaml:"scale"`
	// DepthJitter is the full width of the random Z spread.
	DepthJitter float64 `yaml:"depth_jitter"`
	// FontPath optionally points at a TTF/OTF file. Empty uses Go Bold.
	FontPath string `yaml:"font_path"`
}

// RibbonConfig describes the helical ribbon.
type RibbonConfig struct {
	Turns       float64 `yaml:"turns"`
	OuterRadius float64 `yaml:"outer_radius"`
	InnerRadius float64 `yaml:"inner_radius"`
	// ExtraHeight extends the helix beyond the tree's height, split evenly
	// above and below.
	ExtraHeight float64 `yaml:"extra_height"`
}

// ChaosConfig holds the chaos accumulation law and the mode hysteresis.
type ChaosConfig struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
	// Gain is the fraction of the remaining distance to the target covered
	// per frame.
	Gain float64 `yaml:"gain"`
	// MaxStep caps the per-frame change of the chaos level.
	MaxStep float64 `yaml:"max_step"`
}

// RotationConfig holds the rotation conditioner constants.
type RotationConfig struct {
	// Idle is the target rate used when the control hand is absent.
	Idle float64 `yaml:"idle"`
	// NeutralX is the control hand's world X at which the target equals Idle.
	NeutralX float64 `yaml:"neutral_x"`
	// Sensitivity converts world-unit offsets from NeutralX into rate.
	Sensitivity float64 `yaml:"sensitivity"`
	// Smoothing is the per-tick exponential smoothing factor.
	Smoothing float64 `yaml:"smoothing"`
	// IdleSpin is added to the rigs' spin in radians per second.
	IdleSpin float64 `yaml:"idle_spin"`
}

// RigConfig positions the two parent frames entities live in.
type RigConfig struct {
	Offset Vec3 `yaml:"offset"`
	// SettleFactor multiplies the inner rig angle each frame while a glyph
	// is being shown and chaos is below SettleBelow.
	SettleFactor float64 `yaml:"settle_factor"`
	SettleBelow  float64 `yaml:"settle_below"`
}

// NotesConfig describes the note entities.
type NotesConfig struct {
	Texts  []string `yaml:"texts"`
	Radius float64  `yaml:"radius"`
	// PolarStart is the lowest cos(polar) used by the even distribution,
	// keeping notes off the bottom of the sphere.
	PolarStart float64 `yaml:"polar_start"`
	// Spread multiplies the azimuth progression.
	Spread           float64 `yaml:"spread"`
	Scatter          Range   `yaml:"scatter"`
	ScatterInfluence float64 `yaml:"scatter_influence"`
	Smoothing        float64 `yaml:"smoothing"`
	FocusSmoothing   float64 `yaml:"focus_smoothing"`
}

// TieBreak selects which note wins when several qualify in one frame.
type TieBreak string

const (
	TieBreakFirst   TieBreak = "first"   // lowest note index wins
	TieBreakNearest TieBreak = "nearest" // closest note wins, lowest index on equal distance
)

// FocusConfig holds grab arbitration constants.
type FocusConfig struct {
	CaptureRadius float64 `yaml:"capture_radius"`
	// Distance is how far in front of the viewer a focused note holds.
	Distance float64  `yaml:"distance"`
	TieBreak TieBreak `yaml:"tie_break"`
}

// ViewerConfig sets the initial viewer reference frame.
type ViewerConfig struct {
	Position Vec3 `yaml:"position"`
	Target   Vec3 `yaml:"target"`
	// FOV is the vertical field of view in degrees.
	FOV float64 `yaml:"fov"`
}

// PoseConfig controls how pose samples are interpreted.
type PoseConfig struct {
	// StaleAfter treats the latest sample as absent once it is older than
	// this. Zero disables staleness.
	StaleAfter time.Duration `yaml:"stale_after"`
	// ControlHand drives rotation and chaos; GrabHand drives focus.
	ControlHand Hand `yaml:"control_hand"`
	GrabHand    Hand `yaml:"grab_hand"`
}

// GroupConfig describes one entity group.
type GroupConfig struct {
	Name  string    `yaml:"name"`
	Role  GroupRole `yaml:"role"`
	Count int       `yaml:"count"`
	// Gold pins the last entity to the apex.
	Gold         bool    `yaml:"gold"`
	RadiusOffset float64 `yaml:"radius_offset"`
	AngleOffset  float64 `yaml:"angle_offset"`
	// FollowsFormation makes the group take the field's current home
	// formation. Otherwise it keeps the formation implied by its role.
	FollowsFormation bool    `yaml:"follows_formation"`
	Smoothing        float64 `yaml:"smoothing"`
	ExplodeMagnitude float64 `yaml:"explode_magnitude"`
	// Ripple is the vertical ripple amplitude for diffuse groups.
	Ripple float64 `yaml:"ripple"`
	// BaseScale and ChaosScale give the per-entity render scale
	// BaseScale * (1 + chaos*ChaosScale).
	BaseScale  float64 `yaml:"base_scale"`
	ChaosScale float64 `yaml:"chaos_scale"`
	// ApexScale replaces BaseScale for the apex entity of a gold group.
	ApexScale float64 `yaml:"apex_scale"`
}

// DefaultConfig returns the representative constant set.
func DefaultConfig() Config {
	return Config{
		Seed: 2025,
		Tree: TreeConfig{Height: 16, Radius: 6, DensityBias: 0.8},
		Scatter: ScatterConfig{
			Radius: Range{Min: 15, Max: 35},
		},
		Glyph: GlyphConfig{
			Resolution:  128,
			FontSize:    90,
			Threshold:   150,
			Scale:       15,
			DepthJitter: 0.5,
		},
		Ribbon: RibbonConfig{Turns: 3, OuterRadius: 10, InnerRadius: 2, ExtraHeight: 4},
		Chaos:  ChaosConfig{High: 0.8, Low: 0.1, Gain: 0.05, MaxStep: 0.025},
		Rotation: RotationConfig{
			Idle:        0.1,
			NeutralX:    -8.75,
			Sensitivity: 1.5 / 35,
			Smoothing:   0.05,
			IdleSpin:    0.02,
		},
		Rig: RigConfig{
			Offset:       Vec3{Y: -5},
			SettleFactor: 0.95,
			SettleBelow:  0.5,
		},
		Notes: NotesConfig{
			Texts: []string{
				"More than one road ahead",
				"Winter always ends",
				"Getting better, slowly",
				"Dear me, it works out",
				"Happy every day",
				"Good things are coming",
				"Ate something great today",
				"Wishes come true",
				"Peace all year",
				"Another year survived!",
			},
			Radius:           8,
			PolarStart:       -0.3,
			Spread:           5,
			Scatter:          Range{Min: 10, Max: 14},
			ScatterInfluence: 0.3,
			Smoothing:        0.1,
			FocusSmoothing:   0.2,
		},
		Focus:  FocusConfig{CaptureRadius: 4, Distance: 8, TieBreak: TieBreakFirst},
		Viewer: ViewerConfig{Position: Vec3{Z: 30}, FOV: 50},
		Pose: PoseConfig{
			StaleAfter:  time.Second,
			ControlHand: HandRight,
			GrabHand:    HandLeft,
		},
		Formations: []string{"tree", "glyph:N", "glyph:O", "glyph:E", "glyph:L"},
		Groups: []GroupConfig{
			{
				Name: "gold", Role: RoleOrnament, Count: 1500, Gold: true,
				FollowsFormation: true, Smoothing: 0.08, ExplodeMagnitude: 12,
				BaseScale: 0.18, ChaosScale: 0.1, ApexScale: 0.8,
			},
			{
				Name: "red", Role: RoleOrnament, Count: 400, RadiusOffset: 0.5,
				FollowsFormation: true, Smoothing: 0.08, ExplodeMagnitude: 12,
				BaseScale: 0.15, ChaosScale: 0.1,
			},
			{
				Name: "green", Role: RoleOrnament, Count: 400, RadiusOffset: 0.5, AngleOffset: math.Pi,
				FollowsFormation: true, Smoothing: 0.08, ExplodeMagnitude: 12,
				BaseScale: 0.15, ChaosScale: 0.1,
			},
			{
				Name: "canopy", Role: RoleDiffuse, Count: 20000,
				Smoothing: 0.2, ExplodeMagnitude: 12, Ripple: 0.05,
				BaseScale: 0.05,
			},
			{
				Name: "ribbon", Role: RoleRibbon, Count: 2000,
				Smoothing: 0.08, ExplodeMagnitude: 20,
				BaseScale: 0.05,
			},
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if name, ok := c.firstNonFinite(); !ok {
		return bad("%s must be finite", name)
	}
	if c.Tree.Height <= 0 || c.Tree.Radius <= 0 {
		return bad("tree height and radius must be positive")
	}
	if c.Tree.DensityBias <= 0 {
		return bad("tree density_bias must be positive")
	}
	if c.Scatter.Radius.Min < 0 || c.Scatter.Radius.Max < c.Scatter.Radius.Min {
		return bad("scatter radius range [%g, %g] is invalid", c.Scatter.Radius.Min, c.Scatter.Radius.Max)
	}
	if c.Glyph.Resolution <= 0 || c.Glyph.FontSize <= 0 {
		return bad("glyph resolution and font_size must be positive")
	}
	if c.Ribbon.Turns <= 0 {
		return bad("ribbon turns must be positive")
	}
	// The level saturates at 1 and advancing needs level > high.
	if !(0 <= c.Chaos.Low && c.Chaos.Low < c.Chaos.High && c.Chaos.High < 1) {
		return bad("chaos thresholds need 0 <= low < high < 1, got low=%g high=%g", c.Chaos.Low, c.Chaos.High)
	}
	if !unitFactor(c.Chaos.Gain) || c.Chaos.MaxStep <= 0 {
		return bad("chaos gain must be in (0,1] and max_step positive")
	}
	if !unitFactor(c.Rotation.Smoothing) {
		return bad("rotation smoothing must be in (0,1]")
	}
	if c.Rig.SettleFactor < 0 || c.Rig.SettleFactor > 1 {
		return bad("rig settle_factor must be in [0,1]")
	}
	if len(c.Notes.Texts) > MaxNotes {
		return bad("%d notes exceeds the maximum of %d", len(c.Notes.Texts), MaxNotes)
	}
	if !unitFactor(c.Notes.Smoothing) || !unitFactor(c.Notes.FocusSmoothing) {
		return bad("note smoothing factors must be in (0,1]")
	}
	if c.Focus.CaptureRadius <= 0 {
		return bad("focus capture_radius must be positive")
	}
	switch c.Focus.TieBreak {
	case TieBreakFirst, TieBreakNearest:
	default:
		return bad("unknown focus tie_break %q", c.Focus.TieBreak)
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return bad("viewer fov must be in (0,180)")
	}
	if c.Viewer.Position == c.Viewer.Target {
		return bad("viewer position and target coincide")
	}
	if c.Pose.ControlHand == c.Pose.GrabHand {
		return bad("control_hand and grab_hand must differ")
	}
	if len(c.Formations) == 0 {
		return bad("formations is empty")
	}
	for _, f := range c.Formations {
		if _, err := ParseFormationSpec(f); err != nil {
			return bad("%v", err)
		}
	}
	if len(c.Groups) == 0 {
		return bad("no groups")
	}
	seen := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.Name == "" {
			return bad("group without a name")
		}
		if seen[g.Name] {
			return bad("duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		if g.Count <= 0 {
			return bad("group %q count must be positive", g.Name)
		}
		if !unitFactor(g.Smoothing) {
			return bad("group %q smoothing must be in (0,1]", g.Name)
		}
	}
	return nil
}

// firstNonFinite returns the yaml path of the first NaN or infinite value.
func (c Config) firstNonFinite() (string, bool) {
	type field struct {
		name string
		v    float64
	}
	fields := []field{
		{"tree.height", c.Tree.Height},
		{"tree.radius", c.Tree.Radius},
		{"tree.density_bias", c.Tree.DensityBias},
		{"scatter.radius.min", c.Scatter.Radius.Min},
		{"scatter.radius.max", c.Scatter.Radius.Max},
		{"glyph.font_size", c.Glyph.FontSize},
		{"glyph.scale", c.Glyph.Scale},
		{"glyph.depth_jitter", c.Glyph.DepthJitter},
		{"ribbon.turns", c.Ribbon.Turns},
		{"ribbon.outer_radius", c.Ribbon.OuterRadius},
		{"ribbon.inner_radius", c.Ribbon.InnerRadius},
		{"ribbon.extra_height", c.Ribbon.ExtraHeight},
		{"chaos.high", c.Chaos.High},
		{"chaos.low", c.Chaos.Low},
		{"chaos.gain", c.Chaos.Gain},
		{"chaos.max_step", c.Chaos.MaxStep},
		{"rotation.idle", c.Rotation.Idle},
		{"rotation.neutral_x", c.Rotation.NeutralX},
		{"rotation.sensitivity", c.Rotation.Sensitivity},
		{"rotation.smoothing", c.Rotation.Smoothing},
		{"rotation.idle_spin", c.Rotation.IdleSpin},
		{"rig.settle_factor", c.Rig.SettleFactor},
		{"rig.settle_below", c.Rig.SettleBelow},
		{"notes.radius", c.Notes.Radius},
		{"notes.polar_start", c.Notes.PolarStart},
		{"notes.spread", c.Notes.Spread},
		{"notes.scatter.min", c.Notes.Scatter.Min},
		{"notes.scatter.max", c.Notes.Scatter.Max},
		{"notes.scatter_influence", c.Notes.ScatterInfluence},
		{"notes.smoothing", c.Notes.Smoothing},
		{"notes.focus_smoothing", c.Notes.FocusSmoothing},
		{"focus.capture_radius", c.Focus.CaptureRadius},
		{"focus.distance", c.Focus.Distance},
		{"viewer.fov", c.Viewer.FOV},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return f.name, false
		}
	}
	vecs := []struct {
		name string
		v    Vec3
	}{
		{"rig.offset", c.Rig.Offset},
		{"viewer.position", c.Viewer.Position},
		{"viewer.target", c.Viewer.Target},
	}
	for _, v := range vecs {
		if !v.v.IsFinite() {
			return v.name, false
		}
	}
	for _, g := range c.Groups {
		for _, f := range []field{
			{"radius_offset", g.RadiusOffset},
			{"angle_offset", g.AngleOffset},
			{"smoothing", g.Smoothing},
			{"explode_magnitude", g.ExplodeMagnitude},
			{"ripple", g.Ripple},
			{"base_scale", g.BaseScale},
			{"chaos_scale", g.ChaosScale},
			{"apex_scale", g.ApexScale},
		} {
			if !isFinite(f.v) {
				return fmt.Sprintf("groups[%s].%s", g.Name, f.name), false
			}
		}
	}
	return "", true
}

func unitFactor(v float64) bool {
	return v > 0 && v <= 1
}

// MarshalText implements encoding.TextMarshaler.
func (r GroupRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *GroupRole) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ornament":
		*r = RoleOrnament
	case "diffuse":
		*r = RoleDiffuse
	case "ribbon":
		*r = RoleRibbon
	default:
		return fmt.Errorf("unknown group role %q", b)
	}
	return nil
}
