package config

// PinMapEntryDoc is the wire shape of one pinmapper.mapping row
// (spec.md §6: `{step:int>0, chip:"0xNN", channel:0..15}`).
type PinMapEntryDoc struct {
	Step    int    `json:"step"`
	Chip    string `json:"chip"`
	Channel int    `json:"channel"`
}

// AnimationDoc is the wire shape of one animations.<name> entry
// (spec.md §3 "Named animation").
type AnimationDoc struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	StepGroups  map[string][]int  `json:"step_groups,omitempty"`
	Timeline    []TimelineItemDoc `json:"timeline"`
}

// TimelineItemDoc is the wire shape of one timeline item (spec.md §3
// "Timeline item").
type TimelineItemDoc struct {
	OffsetMs  int64      `json:"offset_ms"`
	Animation VariantDoc `json:"animation"`
}

// VariantDoc is the tagged-union wire shape of one animation variant
// (spec.md §3 "Animation variants", §9 "enum of variant tags"). Only
// the fields relevant to Type are read by the decoder; the rest are
// ignored.
type VariantDoc struct {
	Type string `json:"type"`

	Leds []int `json:"leds,omitempty"`

	StartBrightness  int `json:"start_brightness,omitempty"`
	EndBrightness    int `json:"end_brightness,omitempty"`
	TargetBrightness int `json:"target_brightness,omitempty"`
	Brightness       int `json:"brightness,omitempty"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Easing     string `json:"easing,omitempty"`

	Pattern []int `json:"pattern,omitempty"`
	StepMs  int64 `json:"step_ms,omitempty"`
	Bounce  bool  `json:"bounce,omitempty"`

	// Sequence holds the inner timeline for a "sequence" variant.
	Sequence []TimelineItemDoc `json:"sequence,omitempty"`
}

// Variant type tags (spec.md §9: "enum of variant tags").
const (
	VariantFadeIn    = "fade_in"
	VariantFadeOut   = "fade_out"
	VariantFadeTo    = "fade_to"
	VariantImmediate = "immediate"
	VariantSequence  = "sequence"
	VariantShifting  = "shifting"
)

// SensorDoc is the wire shape of one sensors[] entry (spec.md §3
// "Sensor").
type SensorDoc struct {
	Name                string `json:"name"`
	ChannelID           string `json:"channel_id"`
	Threshold           int32  `json:"threshold"`
	Operator            string `json:"operator"` // "<=", ">=", "=="
	TargetAnimationName string `json:"target_animation_name"`
	Enabled             bool   `json:"enabled"`
}
