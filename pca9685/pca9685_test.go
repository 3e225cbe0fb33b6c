package pca9685

import (
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"github.com/sirupsen/logrus"

	"stairled-core/i2cbus"
)

func newTestDevice(t *testing.T, ops []i2ctest.IO) *Device {
	t.Helper()
	rec := &i2ctest.Playback{Ops: ops}
	gw := i2cbus.New("bus0", rec)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(gw, Config{Addr: 0x40}, log)
}

func TestInitialize_ProgramsPrescaleForDefaultTarget(t *testing.T) {
	// 25MHz osc / (4096 * 52000Hz) rounds to 0; minus 1 gives -1, clamped
	// up to the datasheet minimum of 3.
	d := newTestDevice(t, []i2ctest.IO{
		{Addr: 0x40, W: []byte{regMode1, 0x00}},
		{Addr: 0x40, W: []byte{regMode1}, R: []byte{0x01}},
		{Addr: 0x40, W: []byte{regMode1, 0x01 | mode1Sleep}},
		{Addr: 0x40, W: []byte{regPrescale, 0x03}},
		{Addr: 0x40, W: []byte{regMode1, 0x01}},
		{Addr: 0x40, W: []byte{regMode1, 0x01 | mode1Restart | mode1AutoIncrement}},
	})

	if err := d.Initialize(Config{Addr: 0x40}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if d.Degraded() {
		t.Fatal("device should not be degraded after a clean initialize")
	}
}

func TestSetChannel_MidRangeDuty(t *testing.T) {
	d := newTestDevice(t, []i2ctest.IO{
		{Addr: 0x40, W: []byte{regLED0OnL, 0x00, 0x00, 0xFF, 0x07}},
	})
	if err := d.SetChannel(0, 0, 2047); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
}

func TestSetChannel_FullOff(t *testing.T) {
	d := newTestDevice(t, []i2ctest.IO{
		{Addr: 0x40, W: []byte{regLED0OnL, 0x00, 0x00, 0x00, ledFullOnOff}},
	})
	if err := d.SetChannel(0, 0, 0); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
}

func TestSetChannel_FullOn(t *testing.T) {
	d := newTestDevice(t, []i2ctest.IO{
		{Addr: 0x40, W: []byte{regLED0OnL, 0x00, ledFullOnOff, 0xFF, 0x0F}},
	})
	if err := d.SetChannel(0, 0, MaxDuty); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
}

func TestSetChannel_RejectsOutOfRangeChannel(t *testing.T) {
	d := newTestDevice(t, nil)
	if err := d.SetChannel(16, 0, 100); err == nil {
		t.Fatal("expected error for channel 16")
	}
}

func TestSetChannel_SkipsWhenDegraded(t *testing.T) {
	// Playback has no scripted ops; a write would panic Playback.Tx if it
	// were attempted, so the test also proves degraded chips are bypassed.
	d := newTestDevice(t, nil)
	d.markDegraded(errTestFailure)
	if !d.Degraded() {
		t.Fatal("expected device to be degraded")
	}
	if err := d.SetChannel(0, 0, 100); err != nil {
		t.Fatalf("SetChannel on a degraded chip should no-op, got error: %v", err)
	}
}

func TestAllOff_ClearsDegraded(t *testing.T) {
	d := newTestDevice(t, []i2ctest.IO{
		{Addr: 0x40, W: []byte{regAllLEDOffL, 0x00, ledFullOnOff, 0x00, 0x00}},
	})
	d.markDegraded(errTestFailure)
	if err := d.AllOff(); err != nil {
		t.Fatalf("AllOff: %v", err)
	}
	if d.Degraded() {
		t.Fatal("AllOff should clear the degraded flag on success")
	}
}

var errTestFailure = testError("simulated bus failure")

type testError string

func (e testError) Error() string { return string(e) }
