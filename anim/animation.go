// Package anim implements the Timeline Animation model (spec.md §4.4,
// C4) and the Ledstrip/Timeline Container (spec.md §4.5, C5): a tagged
// union of brightness generators sharing one lifecycle contract, and the
// ordered container that composes them into a named animation.
//
// The lifecycle contract (duration/start/tick/render, monotonic
// started→active→ended flags) follows spec.md §9's guidance to express
// variants as a flat sum type rather than a class hierarchy: each
// variant is a leaf struct embedding `base` for the shared bookkeeping,
// the same composition-over-inheritance shape the teacher uses for its
// own device variants (a shared struct holding common state, leaf types
// adding behaviour via plain methods, no embedding of behaviour
// polymorphism beyond Go interfaces).
package anim

import (
	"math"

	"stairled-core/errcode"
	"stairled-core/x/easing"
	"stairled-core/x/mathx"
)

// BrightnessReader lets a variant snapshot externally observed state at
// on_start (spec.md §4.4: FadeTo "reads the current brightness of each
// target step from the pin mapper"). Constructed animations close over
// one at build time rather than receiving it per-call, since the
// lifecycle methods below mirror the spec's no-argument on_start/tick
// signatures.
type BrightnessReader interface {
	CurrentBrightness(step int) int
}

// State is the tick() return value: the three monotonic lifecycle flags
// plus integer-percent progress (spec.md §3).
type State struct {
	Started  bool
	Active   bool
	Ended    bool
	Progress int
}

// Animation is the shared contract every variant implements (spec.md
// §4.4).
type Animation interface {
	DurationMs() int64
	SetAbsoluteStart(t0Ms int64)
	OnStart()
	Tick(nowMs int64) State
	Render() map[int]int
	// Reset clears absolute timing and per-item flags, preserving
	// configuration (spec.md §4.5 reset()).
	Reset()
}

// base holds the bookkeeping shared by every variant: absolute timing,
// the three monotonic flags, integer progress, and an optional easing
// curve. Variants embed base and supply their own Render and, where
// relevant, OnStart snapshot logic.
type base struct {
	durationMs    int64
	absoluteStart int64
	absoluteEnd   int64

	started  bool
	active   bool
	ended    bool
	progress int

	ease       easing.Func
	onStartFn  func() // variant-supplied snapshot hook, nil if unused
}

func (b *base) DurationMs() int64 { return b.durationMs }

func (b *base) SetAbsoluteStart(t0Ms int64) {
	b.absoluteStart = t0Ms
	b.absoluteEnd = t0Ms + b.durationMs
}

func (b *base) OnStart() {
	if b.onStartFn != nil {
		b.onStartFn()
	}
}

func (b *base) Tick(nowMs int64) State {
	switch {
	case nowMs < b.absoluteStart:
		b.active = false
		b.progress = 0
	case nowMs <= b.absoluteEnd:
		if !b.started {
			b.started = true
			b.OnStart()
		}
		b.active = true
		b.progress = b.computeProgress(nowMs)
	default:
		b.progress = 100
		b.active = false
		b.ended = true
	}
	return State{Started: b.started, Active: b.active, Ended: b.ended, Progress: b.progress}
}

func (b *base) computeProgress(nowMs int64) int {
	if b.durationMs <= 0 {
		return 100
	}
	pct := int(math.Round(100 * float64(nowMs-b.absoluteStart) / float64(b.durationMs)))
	return mathx.Clamp(pct, 0, 100)
}

func (b *base) Reset() {
	b.absoluteStart = 0
	b.absoluteEnd = 0
	b.started = false
	b.active = false
	b.ended = false
	b.progress = 0
}

// easedFraction returns progress/100 run through the attached easing
// curve, or the raw fraction if no easing was configured (linear is the
// identity-equivalent default).
func (b *base) easedFraction() float64 {
	f := float64(b.progress) / 100
	if b.ease == nil {
		return f
	}
	return b.ease(f)
}

func validateDuration(durationMs int64) error {
	if durationMs < 0 {
		return errcode.New(errcode.ConfigInvalid, "anim.Validate", "duration_ms must be >= 0")
	}
	return nil
}

func validateBrightness(field string, v int) error {
	if v < 0 || v > 4095 {
		return errcode.New(errcode.ConfigInvalid, "anim.Validate", field+" must be in [0,4095]")
	}
	return nil
}

func validateLeds(leds []int) error {
	if len(leds) == 0 {
		return errcode.New(errcode.ConfigInvalid, "anim.Validate", "leds must be a non-empty sequence")
	}
	for _, l := range leds {
		if l <= 0 {
			return errcode.New(errcode.ConfigInvalid, "anim.Validate", "leds must be positive integers")
		}
	}
	return nil
}
