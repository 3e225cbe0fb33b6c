package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"stairled-core/anim"
	"stairled-core/errcode"
	"stairled-core/pinmap"
	"stairled-core/sensor"
)

// DecodePinMap turns the raw pinmapper.mapping JSON array into pinmap
// entries (spec.md §6).
func DecodePinMap(raw json.RawMessage) ([]pinmap.Entry, error) {
	var docs []PinMapEntryDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, errcode.Wrap(errcode.ConfigInvalid, "config.DecodePinMap", err)
	}
	out := make([]pinmap.Entry, 0, len(docs))
	for _, d := range docs {
		addr, err := parseChipAddr(d.Chip)
		if err != nil {
			return nil, errcode.Wrap(errcode.ConfigInvalid, "config.DecodePinMap", err)
		}
		out = append(out, pinmap.Entry{Step: d.Step, ChipAddr: addr, Channel: d.Channel})
	}
	return out, nil
}

func parseChipAddr(s string) (uint16, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid chip address %q: %w", s, err)
	}
	return uint16(v), nil
}

// DecodeAnimation builds one *anim.NamedAnimation from its wire form.
// FadeTo variants consult reader at construction time only to bind the
// snapshot hook; the actual snapshot is taken later, at on_start
// (spec.md §4.4).
func DecodeAnimation(doc AnimationDoc, reader anim.BrightnessReader) (*anim.NamedAnimation, error) {
	tl := anim.NewLedstripAnimation()
	for _, item := range doc.Timeline {
		a, err := buildVariant(item.Animation, reader)
		if err != nil {
			return nil, errcode.Wrap(errcode.ConfigInvalid, "config.DecodeAnimation", err)
		}
		tl.Add(item.OffsetMs, a)
	}
	return &anim.NamedAnimation{
		Name:        doc.Name,
		Description: doc.Description,
		Timeline:    tl,
		StepGroups:  doc.StepGroups,
	}, nil
}

// DecodeAnimations decodes every entry under the animations.<name>
// prefix, continuing past per-entity decode failures so one bad
// document never blocks the rest (spec.md §7 propagation policy; the
// registry's own LoadFrom additionally validates each survivor).
func DecodeAnimations(store Store, reader anim.BrightnessReader) ([]*anim.NamedAnimation, error) {
	keys, err := store.Keys(KeyAnimationsPfx)
	if err != nil {
		return nil, errcode.Wrap(errcode.ConfigInvalid, "config.DecodeAnimations", err)
	}
	out := make([]*anim.NamedAnimation, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := store.Get(key)
		if err != nil || !ok {
			continue
		}
		var doc AnimationDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		a, err := DecodeAnimation(doc, reader)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// buildVariant dispatches on the variant's type tag at the config-parse
// edge (spec.md §9: "an enum of variant tags and a constructor that
// dispatches on it"), so nothing downstream of this function ever sees
// raw configuration again.
func buildVariant(v VariantDoc, reader anim.BrightnessReader) (anim.Animation, error) {
	switch v.Type {
	case VariantFadeIn:
		return anim.NewFadeIn(anim.FadeInConfig{
			Leds:            v.Leds,
			StartBrightness: v.StartBrightness,
			EndBrightness:   v.EndBrightness,
			DurationMs:      v.DurationMs,
			Easing:          v.Easing,
		})
	case VariantFadeOut:
		return anim.NewFadeOut(anim.FadeOutConfig{
			Leds:            v.Leds,
			StartBrightness: v.StartBrightness,
			DurationMs:      v.DurationMs,
			Easing:          v.Easing,
		})
	case VariantFadeTo:
		return anim.NewFadeTo(anim.FadeToConfig{
			Leds:             v.Leds,
			TargetBrightness: v.TargetBrightness,
			DurationMs:       v.DurationMs,
			Easing:           v.Easing,
		}, reader)
	case VariantImmediate:
		return anim.NewImmediate(anim.ImmediateConfig{
			Leds:       v.Leds,
			Brightness: v.Brightness,
			DurationMs: v.DurationMs,
		})
	case VariantShifting:
		return anim.NewShifting(anim.ShiftingConfig{
			Leds:    v.Leds,
			Pattern: v.Pattern,
			StepMs:  v.StepMs,
			Bounce:  v.Bounce,
		})
	case VariantSequence:
		seq := anim.NewSequence()
		for _, item := range v.Sequence {
			inner, err := buildVariant(item.Animation, reader)
			if err != nil {
				return nil, err
			}
			seq.Add(item.OffsetMs, inner)
		}
		return seq, nil
	default:
		return nil, errcode.New(errcode.ConfigInvalid, "config.buildVariant", fmt.Sprintf("unknown animation variant type %q", v.Type))
	}
}

// DecodeSensors turns the raw sensors JSON array into dispatcher
// entries (spec.md §3).
func DecodeSensors(raw json.RawMessage) ([]*sensor.Sensor, error) {
	var docs []SensorDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, errcode.Wrap(errcode.ConfigInvalid, "config.DecodeSensors", err)
	}
	out := make([]*sensor.Sensor, 0, len(docs))
	for _, d := range docs {
		out = append(out, &sensor.Sensor{
			Name:                d.Name,
			ChannelID:           d.ChannelID,
			Threshold:           d.Threshold,
			Operator:            sensor.Operator(d.Operator),
			TargetAnimationName: d.TargetAnimationName,
			Enabled:             d.Enabled,
		})
	}
	return out, nil
}

// DecodeEngineTickHz reads engine.tick_hz, falling back to
// DefaultTickHz when unset (spec.md §6).
func DecodeEngineTickHz(store Store) (int, error) {
	raw, ok, err := store.Get(KeyEngineTickHz)
	if err != nil {
		return 0, errcode.Wrap(errcode.ConfigInvalid, "config.DecodeEngineTickHz", err)
	}
	if !ok {
		return DefaultTickHz, nil
	}
	var hz int
	if err := json.Unmarshal(raw, &hz); err != nil {
		return 0, errcode.Wrap(errcode.ConfigInvalid, "config.DecodeEngineTickHz", err)
	}
	if hz <= 0 {
		return DefaultTickHz, nil
	}
	return hz, nil
}

// DecodePWMHz reads pinmapper.pwm_hz, falling back to DefaultPWMHz when
// unset (spec.md §6).
func DecodePWMHz(store Store) (int, error) {
	raw, ok, err := store.Get(KeyPinMapPWMHz)
	if err != nil {
		return 0, errcode.Wrap(errcode.ConfigInvalid, "config.DecodePWMHz", err)
	}
	if !ok {
		return DefaultPWMHz, nil
	}
	var hz int
	if err := json.Unmarshal(raw, &hz); err != nil {
		return 0, errcode.Wrap(errcode.ConfigInvalid, "config.DecodePWMHz", err)
	}
	if hz <= 0 {
		return DefaultPWMHz, nil
	}
	return hz, nil
}

// ConfigSource adapts a Store + BrightnessReader into registry.Source
// (spec.md §6: decoding lives at the config-parse edge, outside the
// registry itself).
type ConfigSource struct {
	Store  Store
	Reader anim.BrightnessReader
}

// LoadAnimations implements registry.Source.
func (c ConfigSource) LoadAnimations() ([]*anim.NamedAnimation, error) {
	return DecodeAnimations(c.Store, c.Reader)
}
