// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory implements the flat byte store used for both program data
// and the CPU register file.
package memory

// Memory is a fixed-length, byte addressable store.
type Memory struct {
	cell []byte
}

// New creates a zeroed memory of 'size' cells.
func New(size uint) (mem *Memory) {
	mem = &Memory{
		cell: make([]byte, size),
	}

	return
}

// Len returns the number of cells.
func (mem *Memory) Len() int {
	return len(mem.cell)
}

// Reset zeros all cells.
func (mem *Memory) Reset() {
	clear(mem.cell)
}

// check verifies an index is in range.
func (mem *Memory) check(index int) (err error) {
	if index < 0 || index >= len(mem.cell) {
		err = ErrOutOfBounds{Index: index, Size: len(mem.cell)}
	}
	return
}

// Read returns the byte at 'index'.
func (mem *Memory) Read(index int) (value byte, err error) {
	err = mem.check(index)
	if err != nil {
		return
	}

	value = mem.cell[index]
	return
}

// Write stores 'value' at 'index'.
func (mem *Memory) Write(index int, value byte) (err error) {
	err = mem.check(index)
	if err != nil {
		return
	}

	mem.cell[index] = value
	return
}

// Read16 reads a little-endian 16-bit value from 'index' and 'index+1'.
func (mem *Memory) Read16(index int) (value uint16, err error) {
	lo, err := mem.Read(index)
	if err != nil {
		return
	}
	hi, err := mem.Read(index + 1)
	if err != nil {
		return
	}

	value = uint16(lo) | (uint16(hi) << 8)
	return
}

// Write16 writes a little-endian 16-bit value to 'index' and 'index+1'.
// Both cells are checked before either is modified.
func (mem *Memory) Write16(index int, value uint16) (err error) {
	err = mem.check(index)
	if err != nil {
		return
	}
	err = mem.check(index + 1)
	if err != nil {
		return
	}

	mem.cell[index] = byte(value & 0xff)
	mem.cell[index+1] = byte(value >> 8)
	return
}
