// Package emu provides the architectural state of the simulated machine and
// a functional reference model that executes programs without timing.
package emu

import (
	"fmt"
	"strings"
)

// NumRegs is the number of integer registers x0-x31.
const NumRegs = 32

// RegFile represents the integer register file.
// X[0] is hardwired to zero: it always reads as 0 and writes to it are dropped.
type RegFile struct {
	// X holds registers x0-x31.
	X [NumRegs]int32
}

// ReadReg reads a register value. Register 0 and out-of-range indices read 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 and to
// out-of-range indices are ignored.
func (r *RegFile) WriteReg(reg uint8, value int32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.X[reg] = value
}

// Snapshot returns a copy of all register values.
func (r *RegFile) Snapshot() [NumRegs]int32 {
	return r.X
}

// Reset clears every register.
func (r *RegFile) Reset() {
	r.X = [NumRegs]int32{}
}

// Dump renders the register file as "x0=0 x1=... x31=...".
func (r *RegFile) Dump() string {
	var sb strings.Builder
	for i := 0; i < NumRegs; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "x%d=%d", i, r.ReadReg(uint8(i)))
	}
	return sb.String()
}
