// Package pinmap implements the Pin Mapper (spec.md §4.3, C3): the
// authoritative step → (chip, channel) map, I²C discovery, and the
// brightness fan-out the engine and self-test drive through.
//
// Discovery and the atomic set_mapping sequence are grounded on the
// teacher's own device bring-up idiom in services/hal (probe-then-build
// a device table once at startup), generalized from the teacher's
// Pico-GPIO probing to periph.io I²C scanning. The self-test ramp reuses
// x/ramp.StartLinear, the teacher's synchronous caller-driven ramp
// helper, paced by time.Sleep between ramp steps and between the steps
// under test.
package pinmap

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stairled-core/errcode"
	"stairled-core/i2cbus"
	"stairled-core/internal/evbus"
	"stairled-core/pca9685"
	"stairled-core/x/mathx"
	"stairled-core/x/ramp"
)

const (
	scanLow  = 0x40
	scanHigh = 0x7F
	// falsePositiveAddr is a known false-positive PCA9685 response address
	// observed on Raspberry Pi I²C buses (a system peripheral answers at
	// this address); discovery excludes it unconditionally.
	falsePositiveAddr = 0x70

	channelsPerChip = 16
)

// Pin identifies one physical PWM output.
type Pin struct {
	ChipAddr uint16
	Channel  int
}

// Entry is one row of a pin map: a logical step bound to a physical pin.
type Entry struct {
	Step     int
	ChipAddr uint16
	Channel  int
}

// Snapshot is the read-only discovery artefact published over evbus
// (spec.md §6 "self-describing discovery artefact") and returned by
// Mapper.Snapshot for the external UI; its Driver field is the view
// DriverMappings returns.
type Snapshot struct {
	Discovered []uint16
	Mapping    []Entry
	// Driver maps each discovered chip to its 16 channel slots, holding
	// the bound step number or nil when unmapped.
	Driver map[uint16][channelsPerChip]*int
}

// Config configures a Mapper.
type Config struct {
	BusID string
	PWMHz int // 0 uses pca9685.DefaultTargetPWMHz
}

// Mapper is the sole writer to every PCA9685 device on its bus
// (spec.md §3 "Ownership").
type Mapper struct {
	gw  *i2cbus.Gateway
	bus *evbus.Bus
	log logrus.FieldLogger
	cfg Config

	mu         sync.RWMutex
	devices    map[uint16]*pca9685.Device
	discovered []uint16 // ascending, discovery order
	mapping    map[int]Pin
	byPin      map[Pin]int // reverse lookup, rebuilt on every mapping install
	lookupOK   bool
	cache      map[int]int // last written brightness per step
	warnedStep map[int]bool
}

// New constructs a Mapper bound to one I²C gateway. Discover/Initialize
// must run before any brightness operation.
func New(gw *i2cbus.Gateway, bus *evbus.Bus, cfg Config, log logrus.FieldLogger) *Mapper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mapper{
		gw:         gw,
		bus:        bus,
		log:        log.WithField("component", "pinmap"),
		cfg:        cfg,
		devices:    map[uint16]*pca9685.Device{},
		mapping:    map[int]Pin{},
		cache:      map[int]int{},
		warnedStep: map[int]bool{},
	}
}

// Discover scans 0x40..0x7F, excludes the known Pi false-positive 0x70,
// and accepts any address that answers a MODE1 probe.
func (m *Mapper) Discover() ([]uint16, error) {
	var found []uint16
	for addr := uint16(scanLow); addr <= scanHigh; addr++ {
		if addr == falsePositiveAddr {
			continue
		}
		if m.gw.Probe(addr) {
			found = append(found, addr)
		}
	}
	return found, nil
}

// Initialize constructs and programs a Device for each discovered
// address, then installs stored (if non-empty) or a sequential default
// mapping (spec.md §4.3).
func (m *Mapper) Initialize(discovered []uint16, stored []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discovered = append([]uint16(nil), discovered...)
	m.devices = make(map[uint16]*pca9685.Device, len(discovered))
	for _, addr := range discovered {
		dev := pca9685.New(m.gw, pca9685.Config{Addr: addr, TargetPWMHz: m.cfg.PWMHz}, m.log)
		if err := dev.Initialize(pca9685.Config{Addr: addr, TargetPWMHz: m.cfg.PWMHz}); err != nil {
			return errcode.Wrap(errcode.BusIO, "pinmap.Initialize", err)
		}
		m.devices[addr] = dev
	}

	if len(stored) > 0 {
		m.installMappingLocked(stored)
	} else {
		m.installMappingLocked(defaultMapping(discovered))
	}
	m.publishSnapshotLocked()
	return nil
}

func defaultMapping(discovered []uint16) []Entry {
	var out []Entry
	step := 1
	for _, addr := range discovered {
		for ch := 0; ch < channelsPerChip; ch++ {
			out = append(out, Entry{Step: step, ChipAddr: addr, Channel: ch})
			step++
		}
	}
	return out
}

// SetMapping atomically replaces the pin map: zero every currently
// mapped channel, swap the map, zero every newly mapped channel
// (spec.md §4.3 invariant: no channel from the previous mapping stays
// lit after the swap).
func (m *Mapper) SetMapping(entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPins := make([]Pin, 0, len(m.mapping))
	for _, p := range m.mapping {
		oldPins = append(oldPins, p)
	}
	for _, p := range oldPins {
		m.writePinLocked(p, 0)
	}

	m.installMappingLocked(entries)

	for _, e := range entries {
		m.writePinLocked(Pin{ChipAddr: e.ChipAddr, Channel: e.Channel}, 0)
	}
	m.publishSnapshotLocked()
	return nil
}

func (m *Mapper) installMappingLocked(entries []Entry) {
	mapping := make(map[int]Pin, len(entries))
	byPin := make(map[Pin]int, len(entries))
	cache := make(map[int]int, len(entries))
	for _, e := range entries {
		p := Pin{ChipAddr: e.ChipAddr, Channel: e.Channel}
		mapping[e.Step] = p
		byPin[p] = e.Step
		cache[e.Step] = 0
	}
	m.mapping = mapping
	m.byPin = byPin
	m.cache = cache
	m.lookupOK = true
}

// GetMappedPin returns the physical pin for step with one lookup in the
// step→pin map that SetMapping/Initialize install eagerly; nothing is
// built on demand.
func (m *Mapper) GetMappedPin(step int) (Pin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.mapping[step]
	return p, ok
}

// CurrentBrightness implements anim.BrightnessReader: it returns the
// last value written to step, or zero for an unmapped or never-written
// step (spec.md §9 open question on FadeTo's snapshot convention).
func (m *Mapper) CurrentBrightness(step int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[step]
}

// SetBrightness clamps value to [0,4095], records it, and writes it to
// the mapped device. Unknown steps are dropped with a once-per-step
// warning (spec.md §4.3, §7 UnknownStep).
func (m *Mapper) SetBrightness(step int, value int) error {
	value = mathx.Clamp(value, 0, pca9685.MaxDuty)

	m.mu.Lock()
	p, ok := m.mapping[step]
	if !ok {
		warned := m.warnedStep[step]
		m.warnedStep[step] = true
		m.mu.Unlock()
		if !warned {
			m.log.WithField("step", step).Warn("pinmap: set_brightness for unmapped step")
		}
		return errcode.New(errcode.UnknownStep, "pinmap.SetBrightness", fmt.Sprintf("step %d not mapped", step))
	}
	m.cache[step] = value
	m.mu.Unlock()

	return m.writePin(p, value)
}

// SetAll fans value out to every currently mapped step.
func (m *Mapper) SetAll(value int) error {
	m.mu.RLock()
	steps := make([]int, 0, len(m.mapping))
	for s := range m.mapping {
		steps = append(steps, s)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, s := range steps {
		if err := m.SetBrightness(s, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// writePin writes directly to a physical pin without touching the
// per-step cache; SetBrightness calls it after updating the cache.
// SetMapping's zeroing passes use writePinLocked instead.
func (m *Mapper) writePin(p Pin, value int) error {
	m.mu.RLock()
	dev := m.devices[p.ChipAddr]
	m.mu.RUnlock()
	if dev == nil {
		return errcode.New(errcode.BusIO, "pinmap.writePin", "no device for chip address")
	}
	return dev.SetChannel(p.Channel, 0, value)
}

func (m *Mapper) writePinLocked(p Pin, value int) {
	dev := m.devices[p.ChipAddr]
	if dev == nil {
		return
	}
	if err := dev.SetChannel(p.Channel, 0, value); err != nil {
		m.log.WithError(err).WithField("chip", fmt.Sprintf("%#x", p.ChipAddr)).Warn("pinmap: zeroing write failed")
	}
}

// Test sequentially ramps each mapped step to a visible brightness and
// back to zero, used as a startup self-test (spec.md §4.3).
func (m *Mapper) Test(visible int, stepDelay time.Duration) {
	m.mu.RLock()
	steps := make([]int, 0, len(m.mapping))
	for s := range m.mapping {
		steps = append(steps, s)
	}
	m.mu.RUnlock()

	for _, s := range steps {
		m.rampStep(s, 0, visible)
		m.rampStep(s, visible, 0)
		time.Sleep(stepDelay)
	}
}

func (m *Mapper) rampStep(step, from, to int) {
	const rampDurMs, rampSteps = 150, 30
	ramp.StartLinear(uint16(from), uint16(to), pca9685.MaxDuty, rampDurMs, rampSteps,
		func(d time.Duration) bool { time.Sleep(d); return true },
		func(level uint16) { _ = m.SetBrightness(step, int(level)) },
	)
}

// DriverMappings returns the read-only chip→channel view the external UI
// renders (spec.md §4.3).
func (m *Mapper) DriverMappings() map[uint16][channelsPerChip]*int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driverMappingsLocked()
}

func (m *Mapper) driverMappingsLocked() map[uint16][channelsPerChip]*int {
	out := make(map[uint16][channelsPerChip]*int, len(m.discovered))
	for _, addr := range m.discovered {
		out[addr] = [channelsPerChip]*int{}
	}
	for step, p := range m.mapping {
		row := out[p.ChipAddr]
		s := step
		row[p.Channel] = &s
		out[p.ChipAddr] = row
	}
	return out
}

// Snapshot returns the current discovery artefact.
func (m *Mapper) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Mapper) snapshotLocked() Snapshot {
	entries := make([]Entry, 0, len(m.mapping))
	for step, p := range m.mapping {
		entries = append(entries, Entry{Step: step, ChipAddr: p.ChipAddr, Channel: p.Channel})
	}
	return Snapshot{
		Discovered: append([]uint16(nil), m.discovered...),
		Mapping:    entries,
		Driver:     m.driverMappingsLocked(),
	}
}

func (m *Mapper) publishSnapshotLocked() {
	if m.bus == nil {
		return
	}
	conn := m.bus.NewConnection("pinmap")
	conn.Publish(conn.NewMessage(evbus.DiscoveryTopic(), m.snapshotLocked(), true))
}

// Cleanup performs a best-effort all-off on every known device with up
// to three retries at 100ms intervals (spec.md §4.3). Safe to call more
// than once, but later calls are not no-ops: every call repeats the
// all-off pass on every device and zeroes the brightness cache.
func (m *Mapper) Cleanup() {
	m.mu.RLock()
	devices := make([]*pca9685.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.RUnlock()

	for _, d := range devices {
		var err error
		for attempt := 0; attempt <= 3; attempt++ { // first try plus three retries
			if err = d.Close(); err == nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if err != nil {
			m.log.WithError(err).WithField("chip", fmt.Sprintf("%#x", d.Addr())).
				Warn("pinmap: cleanup all_off failed after retries")
		}
	}

	m.mu.Lock()
	for step := range m.cache {
		m.cache[step] = 0
	}
	m.mu.Unlock()
}
