package anim

// LedstripAnimation is the top-level Timeline Container (spec.md §4.5,
// C5): the thing the engine arms and the thing a NamedAnimation wraps.
// It is mechanically identical to the Sequence variant's inner
// container, so both share the Timeline type; LedstripAnimation adds
// nothing beyond a constructor, matching spec.md §3's statement that a
// ledstrip animation's duration is max(offset+animation.duration) over
// items, exactly as Timeline already computes.
type LedstripAnimation struct {
	*Timeline
}

// NewLedstripAnimation returns an empty, unarmed container.
func NewLedstripAnimation() *LedstripAnimation {
	return &LedstripAnimation{Timeline: NewTimeline()}
}

// NamedAnimation is a registry entry: a timeline plus metadata (spec.md
// §3).
type NamedAnimation struct {
	Name        string
	Description string
	Timeline    *LedstripAnimation
	// StepGroups optionally maps symbolic group names to step sets, used
	// by the validator/UI only (spec.md §3).
	StepGroups map[string][]int
}
