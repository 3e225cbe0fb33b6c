package evbus

// Concrete topic set published/subscribed by this project. Kept in one
// file so every evbus participant (registry, pin mapper, sensor
// dispatcher, webui) agrees on the wire shape without importing each
// other — the same role the teacher's main.go topic-variable block plays.

// DiscoveryTopic carries the retained pinmap.Snapshot (spec.md §6
// "self-describing discovery artefact"), republished every time
// pinmap.Mapper.Initialize or SetMapping runs (Discover alone does not
// publish).
func DiscoveryTopic() Topic { return T("discovery", "pinmap") }

// ConfigReloadTopic announces that one configuration section changed.
// registry.Registry publishes it (not retained) for section "animations"
// after every LoadFrom, Upsert and Delete; nothing in this module
// subscribes to it.
func ConfigReloadTopic(section string) Topic { return T("config", "reload", section) }

// TriggerEventTopic carries sensor.TriggerEvent values out to persistence
// sinks (spec.md §6 "Trigger event sink"); sensor is the normalized name.
func TriggerEventTopic(sensor string) Topic { return T("trigger", sensor) }

// EngineStateTopic is a retained topic holding the engine's current
// RUNNING/IDLE/STOPPING state, read by the UI the way the teacher's
// hal/state retained topic gates main.go's waitHALReady.
func EngineStateTopic() Topic { return T("engine", "state") }
