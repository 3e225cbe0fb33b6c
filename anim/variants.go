package anim

import (
	"stairled-core/errcode"
	"stairled-core/x/easing"
	"stairled-core/x/mathx"
)

// FadeInConfig configures a FadeIn variant.
type FadeInConfig struct {
	Leds            []int
	StartBrightness int
	EndBrightness   int
	DurationMs      int64
	Easing          string
}

// FadeIn ramps every led linearly (or eased) from start to end
// brightness over its duration (spec.md §4.4).
type FadeIn struct {
	base
	leds  []int
	start int
	end   int
}

// NewFadeIn validates cfg and constructs a FadeIn.
func NewFadeIn(cfg FadeInConfig) (*FadeIn, error) {
	if err := validateDuration(cfg.DurationMs); err != nil {
		return nil, err
	}
	if err := validateLeds(cfg.Leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("start_brightness", cfg.StartBrightness); err != nil {
		return nil, err
	}
	if err := validateBrightness("end_brightness", cfg.EndBrightness); err != nil {
		return nil, err
	}
	return &FadeIn{
		base:  base{durationMs: cfg.DurationMs, ease: easing.ByName(cfg.Easing)},
		leds:  append([]int(nil), cfg.Leds...),
		start: cfg.StartBrightness,
		end:   cfg.EndBrightness,
	}, nil
}

func (f *FadeIn) Render() map[int]int {
	pct := int(mathx.Clamp(f.easedFraction()*100, 0, 100))
	v := mathx.LerpPercentRound(f.start, f.end, pct)
	out := make(map[int]int, len(f.leds))
	for _, led := range f.leds {
		out[led] = v
	}
	return out
}

// FadeOutConfig configures a FadeOut variant.
type FadeOutConfig struct {
	Leds            []int
	StartBrightness int
	DurationMs      int64
	Easing          string
}

// FadeOut ramps every led from its starting brightness down to zero
// (spec.md §4.4).
type FadeOut struct {
	base
	leds  []int
	start int
}

// NewFadeOut validates cfg and constructs a FadeOut.
func NewFadeOut(cfg FadeOutConfig) (*FadeOut, error) {
	if err := validateDuration(cfg.DurationMs); err != nil {
		return nil, err
	}
	if err := validateLeds(cfg.Leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("start_brightness", cfg.StartBrightness); err != nil {
		return nil, err
	}
	return &FadeOut{
		base:  base{durationMs: cfg.DurationMs, ease: easing.ByName(cfg.Easing)},
		leds:  append([]int(nil), cfg.Leds...),
		start: cfg.StartBrightness,
	}, nil
}

func (f *FadeOut) Render() map[int]int {
	pct := int(mathx.Clamp(f.easedFraction()*100, 0, 100))
	v := mathx.LerpPercentRound(f.start, 0, pct)
	out := make(map[int]int, len(f.leds))
	for _, led := range f.leds {
		out[led] = v
	}
	return out
}

// FadeToConfig configures a FadeTo variant.
type FadeToConfig struct {
	Leds             []int
	TargetBrightness int
	DurationMs       int64
	Easing           string
}

// FadeTo ramps every led from its observed brightness at on_start to a
// target brightness (spec.md §4.4). Requires a BrightnessReader to
// capture the starting snapshot.
type FadeTo struct {
	base
	leds     []int
	target   int
	reader   BrightnessReader
	snapshot map[int]int
}

// NewFadeTo validates cfg and constructs a FadeTo bound to reader, which
// is consulted exactly once, at on_start, to snapshot each led's
// current brightness (spec.md §4.4).
func NewFadeTo(cfg FadeToConfig, reader BrightnessReader) (*FadeTo, error) {
	if err := validateDuration(cfg.DurationMs); err != nil {
		return nil, err
	}
	if err := validateLeds(cfg.Leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("target_brightness", cfg.TargetBrightness); err != nil {
		return nil, err
	}
	f := &FadeTo{
		leds:   append([]int(nil), cfg.Leds...),
		target: cfg.TargetBrightness,
		reader: reader,
	}
	f.base = base{durationMs: cfg.DurationMs, ease: easing.ByName(cfg.Easing), onStartFn: f.snapshotNow}
	return f, nil
}

// snapshotNow is resolved from spec.md §9's open question: when the
// reader has no recorded brightness for a led, this reads whatever the
// reader returns for an unknown step (zero, by pinmap.Mapper's own
// convention), matching the source's observed behaviour rather than
// treating it as an error.
func (f *FadeTo) snapshotNow() {
	f.snapshot = make(map[int]int, len(f.leds))
	for _, led := range f.leds {
		v := 0
		if f.reader != nil {
			v = f.reader.CurrentBrightness(led)
		}
		f.snapshot[led] = v
	}
}

func (f *FadeTo) Render() map[int]int {
	pct := int(mathx.Clamp(f.easedFraction()*100, 0, 100))
	out := make(map[int]int, len(f.leds))
	for _, led := range f.leds {
		from := f.snapshot[led]
		out[led] = mathx.LerpPercentRound(from, f.target, pct)
	}
	return out
}

func (f *FadeTo) Reset() {
	f.base.Reset()
	f.snapshot = nil
}

// ImmediateConfig configures an Immediate variant.
type ImmediateConfig struct {
	Leds       []int
	Brightness int
	DurationMs int64 // 0 ends after one render; >0 holds the value
}

// Immediate sets every led to a fixed brightness, either ending on the
// next tick (duration 0) or holding the value for DurationMs (spec.md
// §4.4).
type Immediate struct {
	base
	leds       []int
	brightness int
}

// NewImmediate validates cfg and constructs an Immediate.
func NewImmediate(cfg ImmediateConfig) (*Immediate, error) {
	if err := validateDuration(cfg.DurationMs); err != nil {
		return nil, err
	}
	if err := validateLeds(cfg.Leds); err != nil {
		return nil, err
	}
	if err := validateBrightness("brightness", cfg.Brightness); err != nil {
		return nil, err
	}
	return &Immediate{
		base:       base{durationMs: cfg.DurationMs},
		leds:       append([]int(nil), cfg.Leds...),
		brightness: cfg.Brightness,
	}, nil
}

func (im *Immediate) Render() map[int]int {
	out := make(map[int]int, len(im.leds))
	for _, led := range im.leds {
		out[led] = im.brightness
	}
	return out
}

// ShiftingConfig configures a Shifting variant.
type ShiftingConfig struct {
	Leds    []int
	Pattern []int
	StepMs  int64
	Bounce  bool
}

// Shifting advances a pattern index over time, placing pattern values at
// consecutive leds starting at the current index (spec.md §4.4). Easing
// MUST NOT be applied (index arithmetic is discrete), so Shifting never
// sets base.ease.
type Shifting struct {
	base
	leds      []int
	pattern   []int
	stepMs    int64
	bounce    bool
	lastNowMs int64
}

// NewShifting validates cfg and constructs a Shifting. Duration is
// derived: pattern_len * step_ms, doubled if bouncing.
func NewShifting(cfg ShiftingConfig) (*Shifting, error) {
	if err := validateLeds(cfg.Leds); err != nil {
		return nil, err
	}
	if len(cfg.Pattern) == 0 {
		return nil, errConfigInvalid("pattern must be a non-empty sequence")
	}
	if cfg.StepMs <= 0 {
		return nil, errConfigInvalid("step_ms must be positive")
	}
	duration := int64(len(cfg.Pattern)) * cfg.StepMs
	if cfg.Bounce {
		duration *= 2
	}
	return &Shifting{
		base:    base{durationMs: duration},
		leds:    append([]int(nil), cfg.Leds...),
		pattern: append([]int(nil), cfg.Pattern...),
		stepMs:  cfg.StepMs,
		bounce:  cfg.Bounce,
	}, nil
}

// Tick shadows base.Tick so the exact elapsed time (not the rounded
// integer percent) is available to Render's index arithmetic (spec.md
// §8 boundary behaviour requires exact indices at step_ms boundaries).
func (s *Shifting) Tick(nowMs int64) State {
	st := s.base.Tick(nowMs)
	s.lastNowMs = nowMs
	return st
}

func (s *Shifting) Render() map[int]int {
	elapsed := clampInt64(s.lastNowMs-s.absoluteStart, 0, s.durationMs)
	patternLen := int64(len(s.pattern))
	index := elapsed / s.stepMs
	if s.bounce {
		index = bounceIndex(index, patternLen)
	} else if index >= patternLen {
		index = patternLen - 1
	}

	out := make(map[int]int, len(s.leds))
	for i, led := range s.leds {
		pi := (int(index) + i) % len(s.pattern)
		out[led] = s.pattern[pi]
	}
	return out
}

// bounceIndex reflects an advancing index off the pattern's ends via a
// triangular wave, e.g. pattern length 3 over indices 0,1,2,3,4,5
// produces 0,1,2,1,0,1 (spec.md §8 boundary behaviour).
func bounceIndex(index, patternLen int64) int64 {
	if patternLen <= 1 {
		return 0
	}
	period := 2 * (patternLen - 1)
	pos := index % period
	if pos < patternLen {
		return pos
	}
	return period - pos
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func errConfigInvalid(msg string) error {
	return errcode.New(errcode.ConfigInvalid, "anim.Validate", msg)
}
