// Package easing provides the timing-curve catalogue required by spec.md
// §4.4's "optional easing" paragraph. Every function maps normalised
// progress in [0,1] to a (possibly overshooting, for Back/Elastic) curve
// value, in the small-pure-function style of the teacher's x/ramp and
// x/mathx packages — no allocation, no state, safe to call per-tick from
// the render path.
package easing

import "math"

// Func is a timing curve: f(0) == 0, f(1) == 1 for every curve below,
// though intermediate values may leave [0,1] (Back, Elastic).
type Func func(t float64) float64

// Linear is the identity curve; also what a FadeIn/FadeOut/FadeTo config
// with no Easing set resolves to.
func Linear(t float64) float64 { return t }

const backOvershoot = 1.70158

func EaseInBack(t float64) float64 {
	c1 := backOvershoot
	c3 := c1 + 1
	return c3*t*t*t - c1*t*t
}

func EaseOutBack(t float64) float64 {
	c1 := backOvershoot
	c3 := c1 + 1
	u := t - 1
	return 1 + c3*u*u*u + c1*u*u
}

func EaseInOutBack(t float64) float64 {
	c1 := backOvershoot
	c2 := c1 * 1.525
	if t < 0.5 {
		u := 2 * t
		return (u * u * ((c2+1)*u - c2)) / 2
	}
	u := 2*t - 2
	return (u*u*((c2+1)*u+c2) + 2) / 2
}

const (
	elasticPeriod = 3.0
)

func EaseInElastic(t float64) float64 {
	switch t {
	case 0:
		return 0
	case 1:
		return 1
	}
	c4 := (2 * math.Pi) / elasticPeriod
	return -math.Pow(2, 10*t-10) * math.Sin((t*10-10.75)*c4)
}

func EaseOutElastic(t float64) float64 {
	switch t {
	case 0:
		return 0
	case 1:
		return 1
	}
	c4 := (2 * math.Pi) / elasticPeriod
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

func EaseInOutElastic(t float64) float64 {
	switch t {
	case 0:
		return 0
	case 1:
		return 1
	}
	c5 := (2 * math.Pi) / 4.5
	if t < 0.5 {
		return -(math.Pow(2, 20*t-10) * math.Sin((20*t-11.125)*c5)) / 2
	}
	return (math.Pow(2, -20*t+10)*math.Sin((20*t-11.125)*c5))/2 + 1
}

const (
	bounceN1 = 7.5625
	bounceD1 = 2.75
)

func EaseOutBounce(t float64) float64 {
	switch {
	case t < 1/bounceD1:
		return bounceN1 * t * t
	case t < 2/bounceD1:
		t -= 1.5 / bounceD1
		return bounceN1*t*t + 0.75
	case t < 2.5/bounceD1:
		t -= 2.25 / bounceD1
		return bounceN1*t*t + 0.9375
	default:
		t -= 2.625 / bounceD1
		return bounceN1*t*t + 0.984375
	}
}

func EaseInBounce(t float64) float64 {
	return 1 - EaseOutBounce(1-t)
}

func EaseInOutBounce(t float64) float64 {
	if t < 0.5 {
		return (1 - EaseOutBounce(1-2*t)) / 2
	}
	return (1 + EaseOutBounce(2*t-1)) / 2
}

// ByName resolves the required catalogue by the configuration-facing name
// used in animation JSON (spec.md §6). Unknown names resolve to
// Linear — easing is an optional cosmetic layer, not a validation gate.
func ByName(name string) Func {
	switch name {
	case "easeInBack":
		return EaseInBack
	case "easeOutBack":
		return EaseOutBack
	case "easeInOutBack":
		return EaseInOutBack
	case "easeInElastic":
		return EaseInElastic
	case "easeOutElastic":
		return EaseOutElastic
	case "easeInOutElastic":
		return EaseInOutElastic
	case "easeInBounce":
		return EaseInBounce
	case "easeOutBounce":
		return EaseOutBounce
	case "easeInOutBounce":
		return EaseInOutBounce
	case "linear", "":
		return Linear
	default:
		return Linear
	}
}
