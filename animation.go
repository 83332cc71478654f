package tinsel

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenVec3 animates a Vec3 from one point to another. Call Update(dt)
// each frame and read Value; Done reports completion.
//
// There is no global animation manager; owners call Update themselves.
type TweenVec3 struct {
	tweens [3]*gween.Tween
	value  Vec3
	Done   bool
}

// NewTweenVec3 builds a tween from -> to over duration seconds. A nil fn
// uses ease.Linear.
func NewTweenVec3(from, to Vec3, duration float32, fn ease.TweenFunc) *TweenVec3 {
	if fn == nil {
		fn = ease.Linear
	}
	t := &TweenVec3{value: from}
	t.tweens[0] = gween.New(float32(from.X), float32(to.X), duration, fn)
	t.tweens[1] = gween.New(float32(from.Y), float32(to.Y), duration, fn)
	t.tweens[2] = gween.New(float32(from.Z), float32(to.Z), duration, fn)
	if duration <= 0 {
		t.value = to
		t.Done = true
	}
	return t
}

// Update advances the tween by dt seconds and returns the new value.
func (t *TweenVec3) Update(dt float32) Vec3 {
	if t.Done {
		return t.value
	}
	x, dx := t.tweens[0].Update(dt)
	y, dy := t.tweens[1].Update(dt)
	z, dz := t.tweens[2].Update(dt)
	t.value = Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
	t.Done = dx && dy && dz
	return t.value
}

// Value returns the current interpolated value.
func (t *TweenVec3) Value() Vec3 {
	return t.value
}

// EaseByName maps script and config names to easing functions. Unknown
// names return nil.
func EaseByName(name string) ease.TweenFunc {
	switch name {
	case "", "linear":
		return ease.Linear
	case "in-out-quad":
		return ease.InOutQuad
	case "out-cubic":
		return ease.OutCubic
	case "in-out-sine":
		return ease.InOutSine
	case "in-out-cubic":
		return ease.InOutCubic
	case "out-quad":
		return ease.OutQuad
	}
	return nil
}
