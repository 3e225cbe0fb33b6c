package anim

// TimelineItem pairs an animation with its offset from the container's
// absolute start (spec.md §3 "Timeline item").
type TimelineItem struct {
	OffsetMs  int64
	Animation Animation
}

// Timeline is the ordered container shared by the Sequence variant's
// inner_timeline and by LedstripAnimation (spec.md §4.5, C5): both need
// identical add/arm/tick/merge semantics, so this one type backs both.
type Timeline struct {
	items      []*TimelineItem
	t0         int64
	durationMs int64
	active     []*TimelineItem
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Add appends an item and recomputes the container's overall duration
// (spec.md §4.5 add()).
func (tl *Timeline) Add(offsetMs int64, a Animation) {
	tl.items = append(tl.items, &TimelineItem{OffsetMs: offsetMs, Animation: a})
	tl.recompute()
}

func (tl *Timeline) recompute() {
	var max int64
	for _, it := range tl.items {
		if end := it.OffsetMs + it.Animation.DurationMs(); end > max {
			max = end
		}
	}
	tl.durationMs = max
}

// DurationMs is max(offset + animation.duration) over items (spec.md §3).
func (tl *Timeline) DurationMs() int64 { return tl.durationMs }

// SetAbsoluteStart arms the container at t0 and propagates t0+offset to
// every item (spec.md §4.5 set_absolute_start()).
func (tl *Timeline) SetAbsoluteStart(t0Ms int64) {
	tl.t0 = t0Ms
	for _, it := range tl.items {
		it.Animation.SetAbsoluteStart(t0Ms + it.OffsetMs)
	}
}

// SetCurrent ticks every item and returns the items that are currently
// active, in insertion order (spec.md §4.5 set_current()).
func (tl *Timeline) SetCurrent(nowMs int64) []*TimelineItem {
	active := tl.active[:0]
	for _, it := range tl.items {
		st := it.Animation.Tick(nowMs)
		if st.Active {
			active = append(active, it)
		}
	}
	tl.active = active
	return active
}

// ActiveItems returns the set cached by the last SetCurrent call
// (spec.md §4.5 active_items()).
func (tl *Timeline) ActiveItems() []*TimelineItem { return tl.active }

// Render merges each active item's render output, later items in
// insertion order overwriting earlier ones for the same step (spec.md
// §4.5 merging policy).
func (tl *Timeline) Render() map[int]int {
	merged := make(map[int]int)
	for _, it := range tl.active {
		for step, b := range it.Animation.Render() {
			merged[step] = b
		}
	}
	return merged
}

// Reset clears absolute timing on the container and every item,
// preserving configuration (spec.md §4.5 reset()).
func (tl *Timeline) Reset() {
	tl.t0 = 0
	tl.durationMs = 0
	tl.active = nil
	for _, it := range tl.items {
		it.Animation.Reset()
	}
	tl.recompute()
}

// Items exposes the underlying item slice read-only, used by validation
// and the UI-facing step_groups view.
func (tl *Timeline) Items() []*TimelineItem {
	return append([]*TimelineItem(nil), tl.items...)
}
