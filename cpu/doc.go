// Package cpu implements the register machine and assembler for the regvm system.
//
// The CPU has ten 16-bit registers (ip, acc, r1-r8) held little-endian in a
// private register memory, and executes a byte oriented instruction stream
// from a single program/data memory. Each Step fetches one opcode byte,
// decodes it, and executes it, fetching any operand bytes through the same
// Fetch primitive.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, and compile-time expression evaluation.
package cpu
