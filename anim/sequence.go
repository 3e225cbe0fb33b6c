package anim

// Sequence is the variant whose inner timeline drives nested, possibly
// overlapping animations (spec.md §4.4). It reuses Timeline for its
// inner container rather than re-implementing add/arm/tick/merge.
type Sequence struct {
	base
	inner *Timeline
}

// NewSequence constructs an empty Sequence; call Add to populate its
// inner timeline before SetAbsoluteStart is called on it.
func NewSequence() *Sequence {
	return &Sequence{inner: NewTimeline()}
}

// Add appends an inner item and recomputes Sequence's own duration to
// match its inner timeline's (spec.md §4.4 "duration = max(inner end)").
func (s *Sequence) Add(offsetMs int64, a Animation) {
	s.inner.Add(offsetMs, a)
	s.durationMs = s.inner.DurationMs()
}

// Inner exposes the nested timeline for validation/introspection.
func (s *Sequence) Inner() *Timeline { return s.inner }

func (s *Sequence) SetAbsoluteStart(t0Ms int64) {
	s.base.SetAbsoluteStart(t0Ms)
	s.inner.SetAbsoluteStart(t0Ms)
}

// Tick shadows base.Tick: Sequence's own active/ended bookkeeping
// follows its own [start, start+duration] window, so it stays active
// across gaps between inner items, while every inner item still gets
// its own tick() call each frame regardless of the container's own
// window (spec.md §4.4 "delegates ... to whichever
// inner items are active at now_ms").
func (s *Sequence) Tick(nowMs int64) State {
	st := s.base.Tick(nowMs)
	s.inner.SetCurrent(nowMs)
	return st
}

func (s *Sequence) Render() map[int]int {
	return s.inner.Render()
}

func (s *Sequence) Reset() {
	s.base.Reset()
	s.inner.Reset()
}
