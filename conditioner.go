package tinsel

import "math"

// RotationConditioner turns the control hand's horizontal position into a
// smoothed signed rotation rate.
type RotationConditioner struct {
	cfg     RotationConfig
	current float64
	target  float64
}

// NewRotationConditioner starts at the idle rate so there is no spin-up
// at launch.
func NewRotationConditioner(cfg RotationConfig) *RotationConditioner {
	return &RotationConditioner{cfg: cfg, current: cfg.Idle, target: cfg.Idle}
}

// Update advances one tick. With the control hand absent the target falls
// back to the idle rate. A non-finite hand position is ignored and the
// previous target kept.
func (c *RotationConditioner) Update(hand HandSample, present bool) float64 {
	switch {
	case !present:
		c.target = c.cfg.Idle
	case isFinite(hand.Steer().X):
		c.target = c.cfg.Idle + (c.cfg.NeutralX-hand.Steer().X)*c.cfg.Sensitivity
	}
	c.current += (c.target - c.current) * c.cfg.Smoothing
	return c.current
}

// Rate returns the current smoothed rotation rate in radians per second.
func (c *RotationConditioner) Rate() float64 {
	return c.current
}

// Target returns the unsmoothed target rate of the last tick.
func (c *RotationConditioner) Target() float64 {
	return c.target
}

// ChaosLevel is the process-wide blend scalar in [0,1]. It only moves by
// the bounded per-frame law in Apply.
type ChaosLevel struct {
	cfg   ChaosConfig
	value float64
}

// NewChaosLevel returns a level at rest (0).
func NewChaosLevel(cfg ChaosConfig) *ChaosLevel {
	return &ChaosLevel{cfg: cfg}
}

// Value returns the current level.
func (c *ChaosLevel) Value() float64 {
	return c.value
}

// Apply moves the level one frame toward target. The target is clamped to
// [0,1], the step is capped at MaxStep, and NaN or infinite targets are
// rejected leaving the level untouched. It reports whether the target was
// accepted.
func (c *ChaosLevel) Apply(target float64) bool {
	if !isFinite(target) {
		return false
	}
	target = clamp01(target)
	step := (target - c.value) * c.cfg.Gain
	if step > c.cfg.MaxStep {
		step = c.cfg.MaxStep
	} else if step < -c.cfg.MaxStep {
		step = -c.cfg.MaxStep
	}
	next := c.value + step
	// Exponential approach never lands exactly; snap the tail so the level
	// reaches the endpoints and explode factors return to exactly zero.
	if math.Abs(target-next) < 1e-4 {
		next = target
	}
	if !isFinite(next) {
		return false
	}
	c.value = clamp01(next)
	return true
}

// Nudge applies a relative change: the target becomes value+delta.
func (c *ChaosLevel) Nudge(delta float64) bool {
	return c.Apply(c.value + delta)
}

// ChaosTarget derives the chaos target from the control hand: an open
// hand scatters the field, anything else lets it settle.
func ChaosTarget(hand HandSample, present bool) float64 {
	if present && hand.Open() {
		return 1
	}
	return 0
}
