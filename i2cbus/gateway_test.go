package i2cbus

import (
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestGateway_WriteBytes(t *testing.T) {
	rec := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0x06, 0x00, 0x00, 0xFF, 0x0F}, R: nil},
		},
		DontPanic: false,
	}
	gw := New("bus0", rec)

	if err := gw.WriteBytes(0x40, 0x06, []byte{0x00, 0x00, 0xFF, 0x0F}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
}

func TestGateway_ReadBytes(t *testing.T) {
	rec := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0x00}, R: []byte{0x21}},
		},
	}
	gw := New("bus0", rec)

	got, err := gw.ReadBytes(0x40, 0x00, 1)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(got) != 1 || got[0] != 0x21 {
		t.Fatalf("unexpected read result: %#v", got)
	}
}

func TestGateway_Probe(t *testing.T) {
	t.Run("responds", func(t *testing.T) {
		rec := &i2ctest.Playback{
			Ops: []i2ctest.IO{{Addr: 0x40, W: []byte{0x00}, R: []byte{0x00}}},
		}
		gw := New("bus0", rec)
		if !gw.Probe(0x40) {
			t.Fatal("expected Probe to succeed")
		}
	})

	t.Run("no response", func(t *testing.T) {
		rec := &i2ctest.Playback{DontPanic: true}
		gw := New("bus0", rec)
		if gw.Probe(0x40) {
			t.Fatal("expected Probe to fail against an empty playback script")
		}
	})
}

func TestGateway_SequentialWritesReachBusInCallOrder(t *testing.T) {
	rec := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0x06, 0x10}, R: nil},
			{Addr: 0x41, W: []byte{0x06, 0x20}, R: nil},
		},
	}
	gw := New("bus0", rec)

	if err := gw.WriteBytes(0x40, 0x06, []byte{0x10}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := gw.WriteBytes(0x41, 0x06, []byte{0x20}); err != nil {
		t.Fatalf("second write: %v", err)
	}
}
