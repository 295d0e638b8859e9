// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/regvm/cpu"
	"github.com/ezrec/regvm/internal"
	"github.com/ezrec/regvm/memory"
)

const (
	MEMORY_SIZE = 0x100 // Default program/data memory size.
)

// Emulator state. CPU + memory + loaded program.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.
}

// NewEmulator creates a new emulator with 'size' bytes of program/data memory.
func NewEmulator(size uint) (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(memory.New(size)),
		Program: &cpu.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	emulator_defines := map[string]string{
		"MEMORY_SIZE": fmt.Sprintf("%v", emu.Cpu.MemorySize()),
	}

	return internal.IterSeq2Concat(maps.All(emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Reset the CPU, and load the program into memory.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	emu.Cpu.Reset()

	err = emu.Cpu.LoadProgram(0, emu.Program.Binary())
	if err != nil {
		return
	}

	return
}

// Ip returns current instruction pointer.
func (emu *Emulator) Ip() uint16 {
	ip, _ := emu.Cpu.GetRegister(cpu.REG_IP)
	return ip
}

// LineNo returns the current line number for the executing statement.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Ip())
	if dbg.Statement == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction of the emulator.
// The program is done once ip leaves the assembled program.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	if lineno == 0 {
		done = true
		return
	}

	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Step()

	return
}

// Run ticks until the program is done, an error occurs, or 'limit' ticks
// have executed. A limit of 0 runs without limit.
func (emu *Emulator) Run(limit int) (ticks int, err error) {
	for emu.LineNo() != 0 {
		if limit > 0 && ticks >= limit {
			err = ErrTickLimit
			return
		}
		_, err = emu.Tick()
		if err != nil {
			return
		}
		ticks++
	}

	return
}
