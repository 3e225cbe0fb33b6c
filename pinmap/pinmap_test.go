package pinmap

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"github.com/sirupsen/logrus"

	"stairled-core/errcode"
	"stairled-core/i2cbus"
	"stairled-core/internal/evbus"
	"stairled-core/pca9685"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestDefaultMapping_SequentialAcrossChips(t *testing.T) {
	got := defaultMapping([]uint16{0x40, 0x41})
	if len(got) != 32 {
		t.Fatalf("expected 32 entries, got %d", len(got))
	}
	if got[0].Step != 1 || got[0].ChipAddr != 0x40 || got[0].Channel != 0 {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[16].Step != 17 || got[16].ChipAddr != 0x41 || got[16].Channel != 0 {
		t.Fatalf("unexpected 17th entry (first of second chip): %+v", got[16])
	}
}

func TestSetBrightness_UnknownStepReturnsUnknownStepError(t *testing.T) {
	rec := &i2ctest.Playback{}
	gw := i2cbus.New("bus0", rec)
	m := New(gw, evbus.NewBus(8), Config{}, quietLog())

	err := m.SetBrightness(99, 100)
	if err == nil {
		t.Fatal("expected an error for an unmapped step")
	}
	if errcode.Of(err) != errcode.UnknownStep {
		t.Fatalf("expected UnknownStep code, got %v", errcode.Of(err))
	}
}

func TestSetMapping_ZeroesOldAndNewChannels(t *testing.T) {
	rec := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// initial mapping install via SetMapping's "new channel" zero pass
			{Addr: 0x40, W: []byte{0x06, 0x00, 0x00, 0x00, 0x10}},
			// re-map: zero the old pin (0x40 ch0), then zero the new pin (0x40 ch1)
			{Addr: 0x40, W: []byte{0x06, 0x00, 0x00, 0x00, 0x10}},
			{Addr: 0x40, W: []byte{0x0A, 0x00, 0x00, 0x00, 0x10}},
		},
	}
	gw := i2cbus.New("bus0", rec)
	m := New(gw, evbus.NewBus(8), Config{}, quietLog())
	// zeroing writes only reach chips the mapper holds a Device for
	m.devices[0x40] = pca9685.New(gw, pca9685.Config{Addr: 0x40}, quietLog())

	if err := m.SetMapping([]Entry{{Step: 1, ChipAddr: 0x40, Channel: 0}}); err != nil {
		t.Fatalf("initial SetMapping: %v", err)
	}
	if err := m.SetMapping([]Entry{{Step: 1, ChipAddr: 0x40, Channel: 1}}); err != nil {
		t.Fatalf("remap SetMapping: %v", err)
	}

	p, ok := m.GetMappedPin(1)
	if !ok || p.Channel != 1 {
		t.Fatalf("expected step 1 remapped to channel 1, got %+v ok=%v", p, ok)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("expected every scripted zeroing write to happen: %v", err)
	}
}

func TestDriverMappings_ReflectsCurrentMapping(t *testing.T) {
	rec := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0x06, 0x00, 0x00, 0x00, 0x10}},
		},
	}
	gw := i2cbus.New("bus0", rec)
	m := New(gw, evbus.NewBus(8), Config{}, quietLog())
	m.discovered = []uint16{0x40}

	if err := m.SetMapping([]Entry{{Step: 1, ChipAddr: 0x40, Channel: 0}}); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	dm := m.DriverMappings()
	row, ok := dm[0x40]
	if !ok {
		t.Fatal("expected driver mapping row for 0x40")
	}
	if row[0] == nil || *row[0] != 1 {
		t.Fatalf("expected channel 0 bound to step 1, got %v", row[0])
	}
	if row[1] != nil {
		t.Fatalf("expected channel 1 unmapped, got %v", *row[1])
	}
}

func TestCleanup_IsIdempotent(t *testing.T) {
	rec := &i2ctest.Playback{DontPanic: true}
	gw := i2cbus.New("bus0", rec)
	m := New(gw, evbus.NewBus(8), Config{}, quietLog())

	done := make(chan struct{})
	go func() {
		m.Cleanup()
		m.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cleanup did not return promptly")
	}
}
