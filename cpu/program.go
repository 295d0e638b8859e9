package cpu

import (
	"iter"
)

// Link is a reference to a label, patched little-endian into a statement's
// bytes once all labels are known.
type Link struct {
	Offset int    // Offset of the 16-bit field within Bytes.
	Label  string // Label to resolve.
}

// Statement represents a line of assembled code with its source location and generated bytes.
type Statement struct {
	LineNo  int
	Address uint16
	Words   []string
	Bytes   []byte
	Links   []Link
}

// Program is an assembled listing.
type Program struct {
	Statements []Statement
}

// Debug locates the statement containing an address.
type Debug struct {
	*Statement
	Index int
}

// Debug returns the statement that generated the byte at 'addr'.
// If no statement covers the address, the Statement is nil.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, stmt := range prog.Statements {
		start := int(stmt.Address)
		if int(addr) >= start && int(addr) < start+len(stmt.Bytes) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr) - start,
			}
			break
		}
	}

	return
}

// End returns the address one past the highest assembled byte.
func (prog *Program) End() (end int) {
	for _, stmt := range prog.Statements {
		last := int(stmt.Address) + len(stmt.Bytes)
		if last > end {
			end = last
		}
	}

	return
}

// Binary returns the memory image of the program from address 0.
// Addresses not covered by any statement are zero.
func (prog *Program) Binary() (bin []byte) {
	bin = make([]byte, prog.End())
	for addr, code := range prog.Codes() {
		bin[addr] = code
	}

	return
}

// Codes iterates over every assembled byte and its address.
func (prog *Program) Codes() iter.Seq2[uint16, byte] {
	return func(yield func(addr uint16, code byte) bool) {
		for _, stmt := range prog.Statements {
			for n, code := range stmt.Bytes {
				if !yield(stmt.Address+uint16(n), code) {
					return
				}
			}
		}
	}
}
