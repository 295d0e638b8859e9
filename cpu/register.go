package cpu

import (
	"fmt"
)

// Register names a 16-bit CPU register.
type Register int

const (
	REG_IP  = Register(0) // ip
	REG_ACC = Register(1) // acc
	REG_R1  = Register(2) // r1
	REG_R2  = Register(3) // r2
	REG_R3  = Register(4) // r3
	REG_R4  = Register(5) // r4
	REG_R5  = Register(6) // r5
	REG_R6  = Register(7) // r6
	REG_R7  = Register(8) // r7
	REG_R8  = Register(9) // r8

	REGISTER_COUNT = 10 // Number of registers.
)

var _register_name = [REGISTER_COUNT]string{
	"ip", "acc", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8",
}

// Valid returns true if the register is one of the declared registers.
func (reg Register) Valid() bool {
	return reg >= 0 && reg < REGISTER_COUNT
}

// Offset returns the byte offset of the register in the register memory.
func (reg Register) Offset() int {
	return int(reg) * 2
}

func (reg Register) String() string {
	if !reg.Valid() {
		return fmt.Sprintf("Register(%d)", int(reg))
	}
	return _register_name[reg]
}

// RegisterOf maps a register operand byte to its register.
// All operand bytes are valid; they are reduced modulo the register count.
func RegisterOf(index byte) Register {
	return Register(int(index) % REGISTER_COUNT)
}

// ParseRegister returns the register for a register name.
func ParseRegister(name string) (reg Register, err error) {
	for n, reg_name := range _register_name {
		if name == reg_name {
			reg = Register(n)
			return
		}
	}

	reg = -1
	err = ErrRegisterInvalid
	return
}
