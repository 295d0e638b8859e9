package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/regvm/memory"
)

// newCpu creates a CPU with 256 bytes of memory, and the program loaded at 0.
func newCpu(t *testing.T, program ...byte) (cpu *Cpu) {
	cpu = NewCpu(memory.New(256))
	err := cpu.LoadProgram(0, program)
	assert.NoError(t, err)
	return
}

// snapshot captures all observable CPU state.
func snapshot(cpu *Cpu) (regs []uint16, mem []byte) {
	for _, value := range cpu.Registers() {
		regs = append(regs, value)
	}
	for n := range cpu.MemorySize() {
		value, _ := cpu.Peek(uint16(n))
		mem = append(mem, value)
	}
	return
}

func getReg(t *testing.T, cpu *Cpu, reg Register) uint16 {
	value, err := cpu.GetRegister(reg)
	assert.NoError(t, err)
	return value
}

func TestCpu_New(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.New(16))
	assert.Equal(16, cpu.MemorySize())
	assert.Equal(0, cpu.Ticks)

	for reg, value := range cpu.Registers() {
		assert.Equal(uint16(0), value, reg.String())
	}
}

func TestCpu_RegisterRoundTrip(t *testing.T) {
	cpu := NewCpu(memory.New(16))

	for n := range REGISTER_COUNT {
		reg := Register(n)
		for v := range 0x10000 {
			err := cpu.SetRegister(reg, uint16(v))
			if err != nil {
				t.Fatalf("%v: set 0x%04x: %v", reg, v, err)
			}
			got, err := cpu.GetRegister(reg)
			if err != nil {
				t.Fatalf("%v: get 0x%04x: %v", reg, v, err)
			}
			if got != uint16(v) {
				t.Fatalf("%v: expected 0x%04x, got 0x%04x", reg, v, got)
			}
		}
	}
}

func TestCpu_RegisterLayout(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.New(16))

	assert.NoError(cpu.SetRegister(REG_ACC, 0xabcd))
	assert.NoError(cpu.SetRegister(REG_R1, 0x1234))
	assert.NoError(cpu.SetRegister(REG_R8, 0x5678))

	expected := map[int]byte{
		2: 0xcd, 3: 0xab, // acc
		4: 0x34, 5: 0x12, // r1
		18: 0x78, 19: 0x56, // r8
	}

	assert.Equal(REGISTER_COUNT*2, cpu.register.Len())
	for n := range cpu.register.Len() {
		value, err := cpu.register.Read(n)
		assert.NoError(err)
		assert.Equal(expected[n], value, "offset %d", n)
	}
}

func TestCpu_RegisterInvalid(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t)
	for n := range REGISTER_COUNT {
		assert.NoError(cpu.SetRegister(Register(n), uint16(0x1111*n)))
	}
	pre_regs, pre_mem := snapshot(cpu)

	for _, reg := range []Register{-1, REGISTER_COUNT, 11, 0x100} {
		value, err := cpu.GetRegister(reg)
		assert.ErrorIs(err, ErrRegisterInvalid, reg.String())
		assert.Equal(uint16(0), value)

		err = cpu.SetRegister(reg, 0xdead)
		assert.ErrorIs(err, ErrRegisterInvalid, reg.String())
	}

	post_regs, post_mem := snapshot(cpu)
	assert.Equal(pre_regs, post_regs)
	assert.Equal(pre_mem, post_mem)
}

func TestCpu_MovLitReg(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, byte(MOV_LIT_REG), 0x34, 0x12, 0x02)

	err := cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(0x1234), getReg(t, cpu, REG_R1))
	assert.Equal(uint16(4), getReg(t, cpu, REG_IP))
	assert.Equal(1, cpu.Ticks)
}

func TestCpu_MovRegReg(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t,
		byte(MOV_LIT_REG), 0x34, 0x12, byte(REG_R1),
		byte(MOV_REG_REG), byte(REG_R1), byte(REG_R2),
	)

	assert.NoError(cpu.Step())
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1234), getReg(t, cpu, REG_R1))
	assert.Equal(uint16(0x1234), getReg(t, cpu, REG_R2))
	assert.Equal(uint16(7), getReg(t, cpu, REG_IP))
	assert.Equal(2, cpu.Ticks)
}

func TestCpu_MovMemory(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t,
		byte(MOV_LIT_REG), 0xef, 0xbe, byte(REG_R3),
		byte(MOV_REG_MEM), byte(REG_R3), 0x80, 0x00,
		byte(MOV_MEM_REG), 0x80, 0x00, byte(REG_R4),
	)

	for range 3 {
		assert.NoError(cpu.Step())
	}

	lo, _ := cpu.Peek(0x80)
	hi, _ := cpu.Peek(0x81)
	assert.Equal(byte(0xef), lo)
	assert.Equal(byte(0xbe), hi)
	assert.Equal(uint16(0xbeef), getReg(t, cpu, REG_R4))
	assert.Equal(uint16(12), getReg(t, cpu, REG_IP))
}

func TestCpu_AddRegReg(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		a, b uint16
		sum  uint16
	}){
		{"simple", 0x0001, 0x0002, 0x0003},
		{"wrap", 0x1234, 0xabcd, uint16((0x1234 + 0xabcd) % 0x10000)},
		{"carry_out", 0xffff, 0x0002, 0x0001},
		{"zero", 0x8000, 0x8000, 0x0000},
	}

	for _, entry := range table {
		cpu := newCpu(t, byte(ADD_REG_REG), byte(REG_R1), byte(REG_R2))
		assert.NoError(cpu.SetRegister(REG_R1, entry.a))
		assert.NoError(cpu.SetRegister(REG_R2, entry.b))

		err := cpu.Step()
		assert.NoError(err, entry.name)
		assert.Equal(entry.sum, getReg(t, cpu, REG_ACC), entry.name)
		assert.Equal(entry.a, getReg(t, cpu, REG_R1), entry.name)
		assert.Equal(entry.b, getReg(t, cpu, REG_R2), entry.name)
		assert.Equal(uint16(3), getReg(t, cpu, REG_IP), entry.name)
	}
}

func TestCpu_JmpNeq(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		acc     uint16
		compare uint16
		ip      uint16
	}){
		{"equal", 0x0010, 0x0010, 5},
		{"differ", 0x0010, 0x0011, 0x4321},
		{"zero_equal", 0x0000, 0x0000, 5},
		{"zero_differ", 0x0000, 0xffff, 0x4321},
	}

	for _, entry := range table {
		cpu := newCpu(t, byte(JMP_NEQ),
			byte(entry.compare&0xff), byte(entry.compare>>8),
			0x21, 0x43)
		assert.NoError(cpu.SetRegister(REG_ACC, entry.acc))

		err := cpu.Step()
		assert.NoError(err, entry.name)
		assert.Equal(entry.ip, getReg(t, cpu, REG_IP), entry.name)
		assert.Equal(entry.acc, getReg(t, cpu, REG_ACC), entry.name)
	}
}

func TestCpu_RegisterOperandModulo(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		index byte
		reg   Register
	}){
		{0x00, REG_IP},
		{0x02, REG_R1},
		{0x0a, REG_IP},
		{0x0c, REG_R1},
		{0x13, REG_R8},
		{0xff, REG_R4},
	}

	for _, entry := range table {
		cpu := newCpu(t, byte(MOV_LIT_REG), 0x00, 0x40, entry.index)
		assert.NoError(cpu.Step())
		assert.Equal(uint16(0x4000), getReg(t, cpu, entry.reg), "index 0x%02x", entry.index)
	}
}

func TestCpu_Fetch(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, 0xaa, 0xbb, 0xcc)

	value, err := cpu.Fetch()
	assert.NoError(err)
	assert.Equal(byte(0xaa), value)
	assert.Equal(uint16(1), getReg(t, cpu, REG_IP))

	wide, err := cpu.FetchWide()
	assert.NoError(err)
	assert.Equal(uint16(0xccbb), wide)
	assert.Equal(uint16(3), getReg(t, cpu, REG_IP))
}

func TestCpu_FetchOutOfBounds(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.New(4))
	assert.NoError(cpu.SetRegister(REG_IP, 4))

	value, err := cpu.Fetch()
	assert.ErrorIs(err, ErrFetch)
	assert.ErrorIs(err, memory.ErrOutOfBounds{})
	assert.Equal(byte(0), value)
	assert.Equal(uint16(4), getReg(t, cpu, REG_IP))

	// Second byte of a wide fetch is out of range.
	assert.NoError(cpu.SetRegister(REG_IP, 3))
	wide, err := cpu.FetchWide()
	assert.ErrorIs(err, ErrFetch)
	assert.ErrorIs(err, memory.ErrOutOfBounds{})
	assert.Equal(uint16(0), wide)
	assert.Equal(uint16(3), getReg(t, cpu, REG_IP))
}

func TestCpu_IpWraps(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.New(0x10000))
	assert.NoError(cpu.LoadProgram(0xfffd, []byte{byte(MOV_REG_REG), byte(REG_ACC), byte(REG_R1)}))
	assert.NoError(cpu.SetRegister(REG_IP, 0xfffd))
	assert.NoError(cpu.SetRegister(REG_ACC, 0x5555))

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x5555), getReg(t, cpu, REG_R1))
	assert.Equal(uint16(0), getReg(t, cpu, REG_IP))
}

func TestCpu_InvalidInstruction(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, 0xff, 0x00, 0x00)
	pre_regs, pre_mem := snapshot(cpu)

	err := cpu.Step()
	assert.ErrorIs(err, ErrInstructionInvalid)
	assert.ErrorIs(err, ErrOpcode(0))
	assert.Equal(0, cpu.Ticks)

	post_regs, post_mem := snapshot(cpu)
	assert.Equal(pre_regs, post_regs)
	assert.Equal(pre_mem, post_mem)

	err = cpu.Execute(Opcode(0x42))
	assert.ErrorIs(err, ErrInstructionInvalid)
}

func TestCpu_ExecuteFailure(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		size    uint
		program []byte
		regs    map[Register]uint16
		arg     error
		cause   error
	}){
		{"lit_truncated", 3,
			[]byte{byte(MOV_LIT_REG), 0x34, 0x12},
			nil, ErrOpcodeArg2, ErrFetch},
		{"lit_half_word", 2,
			[]byte{byte(MOV_LIT_REG), 0x34},
			nil, ErrOpcodeArg1, ErrFetch},
		{"reg_reg_truncated", 2,
			[]byte{byte(MOV_REG_REG), byte(REG_R1)},
			nil, ErrOpcodeArg2, ErrFetch},
		{"reg_mem_straddle", 8,
			[]byte{byte(MOV_REG_MEM), byte(REG_R1), 0x07, 0x00},
			map[Register]uint16{REG_R1: 0x1234}, ErrOpcodeArg2, memory.ErrOutOfBounds{}},
		{"reg_mem_far", 8,
			[]byte{byte(MOV_REG_MEM), byte(REG_R1), 0x00, 0x10},
			map[Register]uint16{REG_R1: 0x1234}, ErrOpcodeArg2, memory.ErrOutOfBounds{}},
		{"mem_reg_far", 8,
			[]byte{byte(MOV_MEM_REG), 0xff, 0x00, byte(REG_R2)},
			map[Register]uint16{REG_R2: 0x4321}, ErrOpcodeArg1, memory.ErrOutOfBounds{}},
		{"add_truncated", 2,
			[]byte{byte(ADD_REG_REG), byte(REG_R1)},
			map[Register]uint16{REG_ACC: 0x0007}, ErrOpcodeArg2, ErrFetch},
		{"jmp_truncated", 4,
			[]byte{byte(JMP_NEQ), 0x01, 0x00, 0x20},
			nil, ErrOpcodeArg2, ErrFetch},
	}

	for _, entry := range table {
		cpu := NewCpu(memory.New(entry.size))
		assert.NoError(cpu.LoadProgram(0, entry.program), entry.name)
		for reg, value := range entry.regs {
			assert.NoError(cpu.SetRegister(reg, value))
		}

		pre_regs, pre_mem := snapshot(cpu)

		err := cpu.Step()
		assert.ErrorIs(err, ErrExecute, entry.name)
		assert.ErrorIs(err, entry.arg, entry.name)
		assert.ErrorIs(err, entry.cause, entry.name)
		assert.ErrorIs(err, ErrOpcode(0), entry.name)
		assert.Equal(0, cpu.Ticks, entry.name)

		post_regs, post_mem := snapshot(cpu)
		assert.Equal(pre_regs, post_regs, entry.name)
		assert.Equal(pre_mem, post_mem, entry.name)
	}
}

func TestCpu_Registers(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, byte(MOV_LIT_REG), 0x34, 0x12, byte(REG_R1))
	assert.NoError(cpu.Step())

	var order []Register
	for reg := range cpu.Registers() {
		order = append(order, reg)
	}
	assert.Equal([]Register{REG_IP, REG_ACC, REG_R1, REG_R2, REG_R3,
		REG_R4, REG_R5, REG_R6, REG_R7, REG_R8}, order)

	// Dumps are pure.
	first_regs, first_mem := snapshot(cpu)
	second_regs, second_mem := snapshot(cpu)
	assert.Equal(first_regs, second_regs)
	assert.Equal(first_mem, second_mem)
	assert.Equal(cpu.String(), cpu.String())
	assert.Equal([]uint16{4, 0, 0x1234, 0, 0, 0, 0, 0, 0, 0}, first_regs)

	// Early exit from the iterator.
	count := 0
	for range cpu.Registers() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(3, count)
}

func TestCpu_String(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t)
	assert.NoError(cpu.SetRegister(REG_R1, 0x1234))
	assert.NoError(cpu.SetRegister(REG_ACC, 0xabcd))

	expected := "  ip: 0000\n" +
		" acc: ABCD\n" +
		"  r1: 1234\n" +
		"  r2: 0000\n" +
		"  r3: 0000\n" +
		"  r4: 0000\n" +
		"  r5: 0000\n" +
		"  r6: 0000\n" +
		"  r7: 0000\n" +
		"  r8: 0000\n"
	assert.Equal(expected, cpu.String())
}

func TestCpu_Load(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.New(8))

	assert.NoError(cpu.Load(7, 0x42))
	value, err := cpu.Peek(7)
	assert.NoError(err)
	assert.Equal(byte(0x42), value)

	err = cpu.Load(8, 0x42)
	assert.ErrorIs(err, memory.ErrOutOfBounds{})
	_, err = cpu.Peek(8)
	assert.ErrorIs(err, memory.ErrOutOfBounds{})

	// A program that does not fit is not partially written.
	err = cpu.LoadProgram(6, []byte{1, 2, 3})
	assert.ErrorIs(err, memory.ErrOutOfBounds{})
	value, _ = cpu.Peek(6)
	assert.Equal(byte(0), value)

	assert.NoError(cpu.LoadProgram(5, []byte{1, 2, 3}))
	assert.NoError(cpu.LoadProgram(0, nil))
	value, _ = cpu.Peek(7)
	assert.Equal(byte(3), value)
}

func TestCpu_Reset(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, byte(MOV_LIT_REG), 0x34, 0x12, byte(REG_R1))
	assert.NoError(cpu.Step())
	assert.Equal(1, cpu.Ticks)

	cpu.Reset()
	assert.Equal(0, cpu.Ticks)

	regs, mem := snapshot(cpu)
	assert.Equal(make([]uint16, REGISTER_COUNT), regs)
	assert.Equal(make([]byte, 256), mem)
}

func TestCpu_Defines(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t)

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}

	assert.Equal("0x10", defines["MOV_LIT_REG"])
	assert.Equal("0x15", defines["JMP_NEQ"])
	assert.Equal("10", defines["REGISTER_COUNT"])
}
