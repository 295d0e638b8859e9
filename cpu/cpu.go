// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/regvm/memory"
)

var _cpu_defines = map[string]string{
	"MOV_LIT_REG":    fmt.Sprintf("0x%02x", byte(MOV_LIT_REG)),
	"MOV_REG_REG":    fmt.Sprintf("0x%02x", byte(MOV_REG_REG)),
	"MOV_REG_MEM":    fmt.Sprintf("0x%02x", byte(MOV_REG_MEM)),
	"MOV_MEM_REG":    fmt.Sprintf("0x%02x", byte(MOV_MEM_REG)),
	"ADD_REG_REG":    fmt.Sprintf("0x%02x", byte(ADD_REG_REG)),
	"JMP_NEQ":        fmt.Sprintf("0x%02x", byte(JMP_NEQ)),
	"REGISTER_COUNT": fmt.Sprintf("%d", REGISTER_COUNT),
}

// Cpu is the simulation context for the register machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Ticks int // Instructions completed since reset.

	memory   *memory.Memory // Program and data memory.
	register *memory.Memory // Register file storage.
}

// NewCpu creates a new CPU, taking ownership of the program/data memory.
func NewCpu(mem *memory.Memory) (cpu *Cpu) {
	cpu = &Cpu{
		memory:   mem,
		register: memory.New(REGISTER_COUNT * 2),
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the CPU state.
// - Clears the registers and program memory.
// - Zeros the tick counter.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.register.Reset()
	cpu.memory.Reset()
	cpu.Ticks = 0
}

// MemorySize returns the size of the program/data memory.
func (cpu *Cpu) MemorySize() int {
	return cpu.memory.Len()
}

// Load writes a byte directly into program/data memory.
func (cpu *Cpu) Load(addr uint16, value byte) (err error) {
	err = cpu.memory.Write(int(addr), value)
	return
}

// LoadProgram writes 'data' into program/data memory starting at 'addr'.
// Nothing is written unless the whole span fits.
func (cpu *Cpu) LoadProgram(addr uint16, data []byte) (err error) {
	if len(data) == 0 {
		return
	}

	last := int(addr) + len(data) - 1
	if last >= cpu.memory.Len() {
		err = memory.ErrOutOfBounds{Index: last, Size: cpu.memory.Len()}
		return
	}

	for n, value := range data {
		err = cpu.memory.Write(int(addr)+n, value)
		if err != nil {
			return
		}
	}

	return
}

// Peek reads a byte from program/data memory without affecting the CPU.
func (cpu *Cpu) Peek(addr uint16) (value byte, err error) {
	value, err = cpu.memory.Read(int(addr))
	return
}

// GetRegister returns the value of a register.
func (cpu *Cpu) GetRegister(reg Register) (value uint16, err error) {
	if !reg.Valid() {
		err = ErrRegisterInvalid
		return
	}

	value, err = cpu.register.Read16(reg.Offset())
	return
}

// SetRegister sets the value of a register.
func (cpu *Cpu) SetRegister(reg Register, value uint16) (err error) {
	if !reg.Valid() {
		err = ErrRegisterInvalid
		return
	}

	err = cpu.register.Write16(reg.Offset(), value)
	return
}

// reg reads a register that is known to be valid.
func (cpu *Cpu) reg(reg Register) uint16 {
	value, err := cpu.GetRegister(reg)
	if err != nil {
		panic(err)
	}
	return value
}

// setReg writes a register that is known to be valid.
func (cpu *Cpu) setReg(reg Register, value uint16) {
	err := cpu.SetRegister(reg, value)
	if err != nil {
		panic(err)
	}
}

// Registers returns the register values in declaration order.
func (cpu *Cpu) Registers() iter.Seq2[Register, uint16] {
	return func(yield func(reg Register, value uint16) bool) {
		for n := range REGISTER_COUNT {
			reg := Register(n)
			if !yield(reg, cpu.reg(reg)) {
				return
			}
		}
	}
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for reg, value := range cpu.Registers() {
		text += fmt.Sprintf("% 4s: %04X\n", reg.String(), value)
	}

	return
}

// Fetch reads the byte at ip from memory, and advances ip.
func (cpu *Cpu) Fetch() (value byte, err error) {
	ip, err := cpu.GetRegister(REG_IP)
	if err != nil {
		err = errors.Join(ErrFetch, err)
		return
	}

	value, err = cpu.memory.Read(int(ip))
	if err != nil {
		err = errors.Join(ErrFetch, err)
		return
	}

	err = cpu.SetRegister(REG_IP, ip+1)
	if err != nil {
		err = errors.Join(ErrFetch, err)
		return
	}

	return
}

// FetchWide fetches two bytes, low byte first, as a 16-bit value.
// On failure ip is left where it started.
func (cpu *Cpu) FetchWide() (value uint16, err error) {
	ip := cpu.reg(REG_IP)

	lo, err := cpu.Fetch()
	if err != nil {
		return
	}

	hi, err := cpu.Fetch()
	if err != nil {
		cpu.setReg(REG_IP, ip)
		return
	}

	value = uint16(lo) | (uint16(hi) << 8)
	return
}

// fetchRegister fetches a register operand byte.
func (cpu *Cpu) fetchRegister() (reg Register, err error) {
	index, err := cpu.Fetch()
	if err != nil {
		return
	}

	reg = RegisterOf(index)
	return
}

// Step fetches, decodes, and executes a single instruction.
// On failure ip is restored to the address of the failed opcode.
func (cpu *Cpu) Step() (err error) {
	ip := cpu.reg(REG_IP)
	defer func() {
		if err != nil {
			cpu.setReg(REG_IP, ip)
		}
	}()

	code, err := cpu.Fetch()
	if err != nil {
		return
	}

	op, err := Decode(code)
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("%04x: %v", ip, op)
	}

	err = cpu.Execute(op)
	if err != nil {
		return
	}

	cpu.Ticks++

	return
}

// Execute executes a single opcode, fetching its operands from the
// instruction stream. On failure no register or memory is modified.
func (cpu *Cpu) Execute(op Opcode) (err error) {
	ip := cpu.reg(REG_IP)
	defer func() {
		if err != nil {
			cpu.setReg(REG_IP, ip)
			err = errors.Join(ErrOpcode(op), err)
		}
	}()

	switch op {
	case MOV_LIT_REG:
		var lit uint16
		var dst Register
		lit, err = cpu.FetchWide()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		dst, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		cpu.setReg(dst, lit)
	case MOV_REG_REG:
		var src, dst Register
		src, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		dst, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		cpu.setReg(dst, cpu.reg(src))
	case MOV_REG_MEM:
		var src Register
		var addr uint16
		src, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		addr, err = cpu.FetchWide()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		// Write16 checks both cells before storing either.
		err = cpu.memory.Write16(int(addr), cpu.reg(src))
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
	case MOV_MEM_REG:
		var addr, value uint16
		var dst Register
		addr, err = cpu.FetchWide()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		dst, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		value, err = cpu.memory.Read16(int(addr))
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		cpu.setReg(dst, value)
	case ADD_REG_REG:
		var a, b Register
		a, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		b, err = cpu.fetchRegister()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		// uint16 addition wraps modulo 0x10000.
		cpu.setReg(REG_ACC, cpu.reg(a)+cpu.reg(b))
	case JMP_NEQ:
		var lit, addr uint16
		lit, err = cpu.FetchWide()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg1, err)
			return
		}
		addr, err = cpu.FetchWide()
		if err != nil {
			err = errors.Join(ErrExecute, ErrOpcodeArg2, err)
			return
		}
		if lit != cpu.reg(REG_ACC) {
			cpu.setReg(REG_IP, addr)
		}
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
