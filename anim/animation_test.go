package anim

import "testing"

func TestFadeIn_BoundaryProgress(t *testing.T) {
	f, err := NewFadeIn(FadeInConfig{Leds: []int{1}, StartBrightness: 0, EndBrightness: 4095, DurationMs: 1000})
	if err != nil {
		t.Fatalf("NewFadeIn: %v", err)
	}
	f.SetAbsoluteStart(0)

	st := f.Tick(0)
	if !st.Active || st.Progress != 0 {
		t.Fatalf("at t=start expected active,progress=0, got %+v", st)
	}
	if got := f.Render()[1]; got != 0 {
		t.Fatalf("at t=start expected brightness 0, got %d", got)
	}

	f.Tick(1000)
	if got := f.Render()[1]; got != 4095 {
		t.Fatalf("at t=start+duration expected brightness 4095, got %d", got)
	}

	f.Tick(500)
	got := f.Render()[1]
	if got < 2047 || got > 2048 {
		t.Fatalf("at t=start+500 expected brightness in [2047,2048], got %d", got)
	}
}

func TestAnimation_BeforeStart(t *testing.T) {
	f, _ := NewFadeIn(FadeInConfig{Leds: []int{1}, StartBrightness: 0, EndBrightness: 100, DurationMs: 1000})
	f.SetAbsoluteStart(500)
	st := f.Tick(0)
	if st.Active || st.Progress != 0 {
		t.Fatalf("before start expected inactive,progress=0, got %+v", st)
	}
}

func TestAnimation_AfterEnd(t *testing.T) {
	f, _ := NewFadeIn(FadeInConfig{Leds: []int{1}, StartBrightness: 0, EndBrightness: 100, DurationMs: 1000})
	f.SetAbsoluteStart(0)
	st := f.Tick(5000)
	if st.Active || !st.Ended || st.Progress != 100 {
		t.Fatalf("after end expected ended,progress=100,inactive, got %+v", st)
	}
}

func TestImmediate_ZeroDurationEndsNextTick(t *testing.T) {
	im, err := NewImmediate(ImmediateConfig{Leds: []int{1}, Brightness: 42, DurationMs: 0})
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	im.SetAbsoluteStart(100)

	st := im.Tick(100)
	if !st.Active {
		t.Fatalf("expected active at the exact start instant, got %+v", st)
	}
	if got := im.Render()[1]; got != 42 {
		t.Fatalf("expected brightness 42, got %d", got)
	}

	st = im.Tick(101)
	if !st.Ended {
		t.Fatalf("expected ended on the tick after a zero-duration window, got %+v", st)
	}
}

type fakeReader struct{ values map[int]int }

func (r fakeReader) CurrentBrightness(step int) int { return r.values[step] }

func TestFadeTo_SnapshotsAtOnStart(t *testing.T) {
	reader := fakeReader{values: map[int]int{1: 1000}}
	f, err := NewFadeTo(FadeToConfig{Leds: []int{1}, TargetBrightness: 4000, DurationMs: 1000}, reader)
	if err != nil {
		t.Fatalf("NewFadeTo: %v", err)
	}
	f.SetAbsoluteStart(0)

	f.Tick(0)
	if got := f.Render()[1]; got != 1000 {
		t.Fatalf("expected snapshot brightness 1000 at t=0, got %d", got)
	}

	reader.values[1] = 9999 // later external changes must not affect the snapshot
	f.Tick(1000)
	if got := f.Render()[1]; got != 4000 {
		t.Fatalf("expected target brightness 4000 at duration end, got %d", got)
	}
}

func TestFadeTo_UnknownStepSnapshotsZero(t *testing.T) {
	f, err := NewFadeTo(FadeToConfig{Leds: []int{7}, TargetBrightness: 100, DurationMs: 100}, fakeReader{})
	if err != nil {
		t.Fatalf("NewFadeTo: %v", err)
	}
	f.SetAbsoluteStart(0)
	f.Tick(0)
	if got := f.Render()[7]; got != 0 {
		t.Fatalf("expected 0 from an empty reader snapshot, got %d", got)
	}
}

func TestShifting_BounceIndices(t *testing.T) {
	s, err := NewShifting(ShiftingConfig{Leds: []int{1}, Pattern: []int{10, 20, 30}, StepMs: 100, Bounce: true})
	if err != nil {
		t.Fatalf("NewShifting: %v", err)
	}
	s.SetAbsoluteStart(0)

	want := []int{0, 1, 2, 1, 0, 1}
	for i, wantIdx := range want {
		now := int64(i * 100)
		s.Tick(now)
		got := s.Render()[1]
		wantBrightness := s.pattern[wantIdx]
		if got != wantBrightness {
			t.Fatalf("t=%d: expected pattern[%d]=%d, got %d", now, wantIdx, wantBrightness, got)
		}
	}
}

func TestShifting_DurationDoublesWhenBouncing(t *testing.T) {
	s, err := NewShifting(ShiftingConfig{Leds: []int{1}, Pattern: []int{1, 2, 3}, StepMs: 100, Bounce: true})
	if err != nil {
		t.Fatalf("NewShifting: %v", err)
	}
	if s.DurationMs() != 600 {
		t.Fatalf("expected duration 600 (3*100*2), got %d", s.DurationMs())
	}
}

func TestShifting_RejectsEmptyPattern(t *testing.T) {
	if _, err := NewShifting(ShiftingConfig{Leds: []int{1}, Pattern: nil, StepMs: 100}); err == nil {
		t.Fatal("expected validation error for empty pattern")
	}
}

func TestSequence_NestedFadeTos(t *testing.T) {
	// spec.md §8 Scenario F: three FadeTo items at offsets 0,100,200ms
	// (each 100ms) driving leds 1,2,3. At t=150 only led 2 is active.
	seq := NewSequence()
	reader := fakeReader{}
	for i, offset := range []int64{0, 100, 200} {
		fa, err := NewFadeTo(FadeToConfig{Leds: []int{i + 1}, TargetBrightness: 4000, DurationMs: 100}, reader)
		if err != nil {
			t.Fatalf("NewFadeTo: %v", err)
		}
		seq.Add(offset, fa)
	}
	seq.SetAbsoluteStart(0)

	seq.Tick(150)
	out := seq.Render()
	if _, ok := out[1]; ok {
		t.Fatalf("expected led 1 absent at t=150 (its item already ended), got %v", out)
	}
	if _, ok := out[3]; ok {
		t.Fatalf("expected led 3 absent at t=150 (its item not yet started), got %v", out)
	}
	if _, ok := out[2]; !ok {
		t.Fatalf("expected led 2 present at t=150, got %v", out)
	}
}

func TestTimeline_DurationIsMaxOffsetPlusDuration(t *testing.T) {
	tl := NewTimeline()
	a1, _ := NewImmediate(ImmediateConfig{Leds: []int{1}, Brightness: 1, DurationMs: 100})
	a2, _ := NewImmediate(ImmediateConfig{Leds: []int{2}, Brightness: 1, DurationMs: 50})
	tl.Add(0, a1)
	tl.Add(200, a2)
	if tl.DurationMs() != 250 {
		t.Fatalf("expected duration 250 (200+50), got %d", tl.DurationMs())
	}
}

func TestTimeline_LaterItemWinsOnOverlap(t *testing.T) {
	tl := NewTimeline()
	a1, _ := NewImmediate(ImmediateConfig{Leds: []int{1}, Brightness: 10, DurationMs: 1000})
	a2, _ := NewImmediate(ImmediateConfig{Leds: []int{1}, Brightness: 99, DurationMs: 1000})
	tl.Add(0, a1)
	tl.Add(0, a2)
	tl.SetAbsoluteStart(0)
	tl.SetCurrent(0)
	if got := tl.Render()[1]; got != 99 {
		t.Fatalf("expected later item (99) to win, got %d", got)
	}
}
