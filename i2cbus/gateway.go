// Package i2cbus implements the I²C Bus Gateway (spec.md §4.1, C1): a
// single serialized point of byte-level access to one Linux I²C bus.
//
// It wraps a periph.io/x/conn/v3/i2c.Bus (opened via i2creg against a
// /dev/i2c-N device, the way the teacher's seedhammer-style sibling
// drivers open an SPI port through periph's port registry and call
// host.Init() once at process start) behind a sync.Mutex, so concurrent
// requests from the pin mapper run strictly one at a time. The mutex
// does not hand the bus to waiting callers in their arrival order. No
// retries happen at this layer — retry policy is a
// decision for the PCA9685 device layer (C2) above.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// ChipAddr is a 7-bit I²C chip address, 0x40..0x7F for PCA9685 addressing
// (spec.md §3).
type ChipAddr = uint16

// Gateway serializes byte-level access to one physical I²C bus.
type Gateway struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	id  string
}

// New wraps an already-opened periph I²C bus. id is a human-readable bus
// identifier used in log fields and pinmap.Config.BusID.
func New(id string, bus i2c.BusCloser) *Gateway {
	return &Gateway{bus: bus, id: id}
}

// ID returns the bus identifier this gateway was constructed with.
func (g *Gateway) ID() string { return g.id }

// Close releases the underlying bus handle.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bus.Close()
}

// WriteBytes writes a register address followed by bytes to chipAddr.
// PCA9685 (and most I²C register-addressed devices) expect the register
// number as the first byte of the write, so the wire payload is
// []byte{register} ++ bytes.
func (g *Gateway) WriteBytes(chipAddr ChipAddr, register byte, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := make([]byte, 0, len(data)+1)
	w = append(w, register)
	w = append(w, data...)
	dev := &i2c.Dev{Bus: g.bus, Addr: chipAddr}
	if err := dev.Tx(w, nil); err != nil {
		return fmt.Errorf("i2cbus: write chip=%#x reg=%#x: %w", chipAddr, register, err)
	}
	return nil
}

// ReadBytes reads n bytes starting at register from chipAddr.
func (g *Gateway) ReadBytes(chipAddr ChipAddr, register byte, n int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := make([]byte, n)
	dev := &i2c.Dev{Bus: g.bus, Addr: chipAddr}
	if err := dev.Tx([]byte{register}, r); err != nil {
		return nil, fmt.Errorf("i2cbus: read chip=%#x reg=%#x len=%d: %w", chipAddr, register, n, err)
	}
	return r, nil
}

// Probe attempts a one-byte MODE1 (register 0x00) read and reports
// whether the chip answered. Used by pinmap.Discover (spec.md §4.3).
func (g *Gateway) Probe(chipAddr ChipAddr) bool {
	const mode1Reg = 0x00
	b, err := g.ReadBytes(chipAddr, mode1Reg, 1)
	return err == nil && len(b) == 1
}
