package cpu

import (
	"errors"
	"fmt"
)

// Opcode is the first byte of an instruction.
type Opcode byte

const (
	MOV_LIT_REG = Opcode(0x10) // lit16, reg: Move a literal into a register.
	MOV_REG_REG = Opcode(0x11) // reg, reg: Copy a register to a register.
	MOV_REG_MEM = Opcode(0x12) // reg, addr16: Store a register to memory.
	MOV_MEM_REG = Opcode(0x13) // addr16, reg: Load a register from memory.
	ADD_REG_REG = Opcode(0x14) // reg, reg: Add two registers into acc.
	JMP_NEQ     = Opcode(0x15) // lit16, addr16: Jump if acc differs from a literal.
)

type opcodeInfo struct {
	name string
	size int // Instruction size in bytes, including the opcode.
}

var _opcode_info = map[Opcode]opcodeInfo{
	MOV_LIT_REG: {"MOV_LIT_REG", 4},
	MOV_REG_REG: {"MOV_REG_REG", 3},
	MOV_REG_MEM: {"MOV_REG_MEM", 4},
	MOV_MEM_REG: {"MOV_MEM_REG", 4},
	ADD_REG_REG: {"ADD_REG_REG", 3},
	JMP_NEQ:     {"JMP_NEQ", 5},
}

// Decode converts an instruction stream byte into an Opcode.
func Decode(code byte) (op Opcode, err error) {
	op = Opcode(code)
	if !op.Valid() {
		err = errors.Join(ErrOpcode(op), ErrInstructionInvalid)
	}
	return
}

// Valid returns true if the opcode is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := _opcode_info[op]
	return ok
}

// Size returns the encoded size of the instruction, or 0 if the opcode is invalid.
func (op Opcode) Size() int {
	return _opcode_info[op].size
}

func (op Opcode) String() string {
	info, ok := _opcode_info[op]
	if !ok {
		return fmt.Sprintf("Opcode(0x%02x)", byte(op))
	}
	return info.name
}
