// Package pca9685 implements the PCA9685 Device abstraction (spec.md
// §4.2, C2): per-chip register programming, PWM frequency initialisation
// and per-channel duty cycle writes.
//
// The register map and prescale formula are grounded on the PCA9685
// datasheet as reproduced by the periph-adjacent viam-rdk board driver
// (components/board/hat/pca9685) retrieved alongside this pack: MODE1 at
// 0x00, PRESCALE at 0xFE, and four registers per channel starting at
// 0x06 (ON_L, ON_H, OFF_L, OFF_H), plus the ALL_LED_* shortcut registers.
package pca9685

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stairled-core/errcode"
	"stairled-core/i2cbus"
)

// Register addresses (datasheet §7.3, §7.4).
const (
	regMode1    = 0x00
	regMode2    = 0x01
	regPrescale = 0xFE

	regLED0OnL = 0x06 // each channel occupies 4 consecutive registers

	regAllLEDOnL  = 0xFA
	regAllLEDOffL = 0xFC

	mode1Sleep        = 1 << 4
	mode1AutoIncrement = 1 << 5
	mode1Restart      = 1 << 7
	ledFullOnOff      = 1 << 4 // bit 4 of the *_H register forces full on/off
)

// DefaultOscillatorHz is the internal RC oscillator frequency used by the
// prescale calculation when a chip-specific override isn't configured
// (spec.md §4.2: "compile-time constant... exposed as config"). 25 MHz is
// the datasheet nominal value and the default used by the periph/viam
// reference driver; the original stairled board's measured 27 MHz
// oscillator is supplied as a per-chip Config.OscillatorHz override.
const DefaultOscillatorHz = 25_000_000

const (
	MinChannel = 0
	MaxChannel = 15
	MaxDuty    = 4095
)

// Config configures one chip's initialisation.
type Config struct {
	Addr         uint16 // 0x40..0x7F
	TargetPWMHz  int    // desired PWM frequency; 0 uses DefaultTargetPWMHz
	OscillatorHz int    // 0 uses DefaultOscillatorHz
}

const DefaultTargetPWMHz = 52_000 // spec.md §6 pinmapper.pwm_hz default

// Device is one PCA9685 chip on an I²C bus. All register I/O goes through
// the shared i2cbus.Gateway for that bus, so concurrent Devices on the
// same physical bus remain serialized (spec.md §4.1).
type Device struct {
	gw   *i2cbus.Gateway
	addr uint16
	log  logrus.FieldLogger

	mu        sync.Mutex
	degraded  bool
	lastWarn  time.Time
}

// New constructs a Device. It does not touch the bus; call Initialize to
// program the chip.
func New(gw *i2cbus.Gateway, cfg Config, log logrus.FieldLogger) *Device {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Device{
		gw:   gw,
		addr: cfg.Addr,
		log:  log.WithField("chip", fmt.Sprintf("%#x", cfg.Addr)),
	}
}

// Addr returns the chip's I²C address.
func (d *Device) Addr() uint16 { return d.addr }

// Initialize resets MODE1, sleeps the oscillator, programs PRE_SCALE from
// round(oscillator_hz / (4096 * target_pwm_hz)) - 1, restarts and enables
// register auto-increment (spec.md §4.2).
func (d *Device) Initialize(cfg Config) error {
	osc := cfg.OscillatorHz
	if osc == 0 {
		osc = DefaultOscillatorHz
	}
	targetHz := cfg.TargetPWMHz
	if targetHz == 0 {
		targetHz = DefaultTargetPWMHz
	}

	prescale := int(math.Round(float64(osc)/(4096.0*float64(targetHz))) - 1)
	if prescale < 3 {
		prescale = 3 // datasheet minimum
	}
	if prescale > 255 {
		prescale = 255
	}

	if err := d.writeReg(regMode1, 0x00); err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.reset", err)
	}
	oldMode1, err := d.readReg(regMode1)
	if err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.read_mode1", err)
	}
	sleepMode1 := (oldMode1 & 0x7F) | mode1Sleep
	if err := d.writeReg(regMode1, sleepMode1); err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.sleep", err)
	}
	if err := d.writeReg(regPrescale, byte(prescale)); err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.prescale", err)
	}
	if err := d.writeReg(regMode1, oldMode1); err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.restore", err)
	}
	time.Sleep(5 * time.Millisecond) // datasheet: oscillator stabilisation after wake
	if err := d.writeReg(regMode1, oldMode1|mode1Restart|mode1AutoIncrement); err != nil {
		return errcode.Wrap(errcode.BusIO, "pca9685.Initialize.restart", err)
	}

	d.mu.Lock()
	d.degraded = false
	d.mu.Unlock()
	return nil
}

// SetChannel writes LEDn_ON/OFF registers for one channel. The common
// "brightness" form used by pinmap is on=0, off=brightness, with
// full-on/full-off special-cased via the datasheet's bit-4-of-*_H flags
// when brightness is 0 or MaxDuty.
func (d *Device) SetChannel(ch int, onCount, offCount int) error {
	if ch < MinChannel || ch > MaxChannel {
		return errcode.New(errcode.ConfigInvalid, "pca9685.SetChannel", "channel out of range")
	}

	d.mu.Lock()
	degraded := d.degraded
	d.mu.Unlock()
	if degraded {
		d.rateLimitedWarn("set_channel skipped: chip degraded")
		return nil
	}

	onCount = clampDuty(onCount)
	offCount = clampDuty(offCount)

	var onH, offH byte
	onL, offL := byte(onCount&0xFF), byte(offCount&0xFF)
	switch {
	case offCount == 0:
		// full off: bit4 of OFF_H set, ON bytes ignored per datasheet
		offH = ledFullOnOff
	case offCount >= MaxDuty:
		onH = ledFullOnOff
		offH = byte((offCount >> 8) & 0x0F)
	default:
		onH = byte((onCount >> 8) & 0x0F)
		offH = byte((offCount >> 8) & 0x0F)
	}

	base := byte(regLED0OnL + 4*ch)
	payload := []byte{onL, onH, offL, offH}
	if err := d.gw.WriteBytes(d.addr, base, payload); err != nil {
		d.markDegraded(err)
		return errcode.Wrap(errcode.BusIO, "pca9685.SetChannel", err)
	}
	return nil
}

// AllOff writes the ALL_LED_OFF shortcut registers, extinguishing every
// channel on this chip in one transaction.
func (d *Device) AllOff() error {
	if err := d.gw.WriteBytes(d.addr, regAllLEDOffL, []byte{0x00, ledFullOnOff, 0x00, 0x00}); err != nil {
		d.markDegraded(err)
		return errcode.Wrap(errcode.BusIO, "pca9685.AllOff", err)
	}
	d.mu.Lock()
	d.degraded = false
	d.mu.Unlock()
	return nil
}

// Close turns every channel off then leaves the bus handle (owned by the
// shared i2cbus.Gateway) for the caller to release.
func (d *Device) Close() error {
	return d.AllOff()
}

// Degraded reports whether the chip is currently bypassed due to a prior
// I²C failure (spec.md §4.2 failure model).
func (d *Device) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

// Probe re-reads MODE1; a successful read clears the degraded flag,
// matching spec.md's "until a successful probe" recovery condition.
func (d *Device) Probe() bool {
	ok := d.gw.Probe(d.addr)
	if ok {
		d.mu.Lock()
		d.degraded = false
		d.mu.Unlock()
	}
	return ok
}

func (d *Device) markDegraded(cause error) {
	d.mu.Lock()
	already := d.degraded
	d.degraded = true
	d.mu.Unlock()
	if !already {
		d.log.WithError(cause).Warn("pca9685: chip marked degraded")
	} else {
		d.rateLimitedWarn(cause.Error())
	}
}

func (d *Device) rateLimitedWarn(msg string) {
	d.mu.Lock()
	due := time.Since(d.lastWarn) > 5*time.Second
	if due {
		d.lastWarn = time.Now()
	}
	d.mu.Unlock()
	if due {
		d.log.Warn("pca9685: " + msg)
	}
}

func (d *Device) writeReg(reg, val byte) error {
	return d.gw.WriteBytes(d.addr, reg, []byte{val})
}

func (d *Device) readReg(reg byte) (byte, error) {
	b, err := d.gw.ReadBytes(d.addr, reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func clampDuty(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxDuty {
		return MaxDuty
	}
	return v
}
