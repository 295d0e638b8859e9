// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/regvm/cpu"
	"github.com/ezrec/regvm/emulator"
)

func main() {
	var compile string
	var size uint
	var limit int
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to compile and run")
	flag.UintVar(&size, "m", emulator.MEMORY_SIZE, "Program/data memory size, in bytes")
	flag.IntVar(&limit, "n", 0, "Maximum instructions to execute (0 for no limit)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(compile) == 0 {
		log.Fatalf("%v: -c is required", os.Args[0])
	}

	emu := emulator.NewEmulator(size)
	emu.Verbose = verbose

	inf, err := os.Open(compile)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}
	defer inf.Close()

	asm := &cpu.Assembler{Verbose: verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}
	emu.Program, err = asm.Parse(inf)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	err = emu.Reset()
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	ticks, err := emu.Run(limit)
	if err != nil {
		log.Printf("%v: %v", compile, err)
	}

	fmt.Print(emu.Cpu.String())
	if verbose {
		log.Printf("%v: %d instructions", compile, ticks)
	}

	if err != nil {
		os.Exit(1)
	}
}
