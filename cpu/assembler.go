// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	ADDRESS_LIMIT = 0x10000 // Size of the 16-bit address space.
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

var reLabel = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Assembler is a single pass macro assembler for the regvm system.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string   // Predefines
	here      int                 // Current assembly address.
	expansion int                 // Count of macro expansions, for '@' labels.
	Label     map[string]int      // Map of jump labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}
	if len(word) > 0 && word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(strings.Trim(word, "'"))
		return
	}
	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if invert {
		value = int64(^uint16(value))
	}

	return
}

// byteOf returns an 8-bit value; negative values are two's complement.
func (asm *Assembler) byteOf(word string) (value byte, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v64 < -0x80 || v64 > 0xff {
		err = errors.Join(ErrValueRange, ErrParseNumber(word))
		return
	}

	value = byte(v64)
	return
}

// wordOf returns a 16-bit value or, failing that, a label to link later.
func (asm *Assembler) wordOf(word string) (value uint16, label string, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		if reLabel.MatchString(word) {
			label = word
			err = nil
		}
		return
	}
	if v64 < -0x8000 || v64 > 0xffff {
		err = errors.Join(ErrValueRange, ErrParseNumber(word))
		return
	}

	value = uint16(v64)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v64 int64
		v64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// substitute replaces a word, or the inside of a [word], with its equate.
func (asm *Assembler) substitute(word string) string {
	if len(word) > 2 && word[0] == '[' && word[len(word)-1] == ']' {
		equate, ok := asm.Equate[word[1:len(word)-1]]
		if ok {
			return "[" + equate + "]"
		}
		return word
	}

	equate, ok := asm.Equate[word]
	if ok {
		return equate
	}
	return word
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = asm.substitute(words[2])
		words = words[:0]
		return
	}

	for n, word := range words {
		words[n] = asm.substitute(word)
	}

	labeled := false
	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.here
		labeled = true
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// A label would name the address before the move.
	if labeled && words[0] == ".org" {
		err = ErrOrgSyntax
		return
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		expansion := asm.expansion

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", fmt.Sprintf("%v_%v_%v_", name, expansion, lineno))
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = ErrMacro{Macro: name, Line: lineno, Err: err}
				err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = ErrMacro{Macro: name, Line: lineno, Err: err}
				err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// Parse parses an input stream into a Program containing statements.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Statement = asm.Statement[:0]
	asm.here = 0
	asm.expansion = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	maps.Copy(asm.Equate, _cpu_defines)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		stmt := &asm.Statement[n]

		for _, link := range stmt.Links {
			addr, ok := asm.Label[link.Label]
			if !ok {
				lineno = stmt.LineNo
				line = strings.Join(stmt.Words, " ")
				err = ErrLabelMissing(link.Label)
				return
			}
			stmt.Bytes[link.Offset] = byte(addr & 0xff)
			stmt.Bytes[link.Offset+1] = byte((addr >> 8) & 0xff)
		}
	}

	prog = &Program{
		Statements: slices.Clone(asm.Statement),
	}

	return
}

// encoder collects the bytes and label links of a single statement.
type encoder struct {
	asm   *Assembler
	bytes []byte
	links []Link
}

func (enc *encoder) emit(value byte) {
	enc.bytes = append(enc.bytes, value)
}

func (enc *encoder) register(reg Register) {
	enc.emit(byte(reg))
}

// word encodes a 16-bit value, little endian, or a label link.
func (enc *encoder) word(text string) (err error) {
	value, label, err := enc.asm.wordOf(text)
	if err != nil {
		return
	}
	if len(label) != 0 {
		enc.links = append(enc.links, Link{Offset: len(enc.bytes), Label: label})
	}
	enc.emit(byte(value & 0xff))
	enc.emit(byte(value >> 8))
	return
}

// memoryRef returns the address text of a '[ADDR]' operand.
func memoryRef(word string) (addr string, ok bool) {
	if len(word) > 2 && word[0] == '[' && word[len(word)-1] == ']' {
		addr = word[1 : len(word)-1]
		ok = true
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	enc := &encoder{asm: asm}

	initial_words := words

	defer func() {
		if err != nil || len(enc.bytes) == 0 {
			return
		}
		if asm.here+len(enc.bytes) > ADDRESS_LIMIT {
			err = ErrAddressRange
			return
		}
		stmt := Statement{
			LineNo:  lineno,
			Address: uint16(asm.here),
			Words:   initial_words,
			Bytes:   enc.bytes,
			Links:   enc.links,
		}
		asm.Statement = append(asm.Statement, stmt)
		asm.here += len(enc.bytes)
	}()

	args := words[1:]

	switch words[0] {
	case ".org":
		if len(args) != 1 {
			err = ErrOrgSyntax
			return
		}
		var v64 int64
		v64, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if v64 < int64(asm.here) {
			err = ErrOrgBackwards
			return
		}
		if v64 >= ADDRESS_LIMIT {
			err = ErrAddressRange
			return
		}
		asm.here = int(v64)
	case ".byte":
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			var value byte
			value, err = asm.byteOf(arg)
			if err != nil {
				return
			}
			enc.emit(value)
		}
	case ".word":
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			err = enc.word(arg)
			if err != nil {
				return
			}
		}
	case "mov":
		if len(args) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		src, src_err := ParseRegister(args[0])
		dst, dst_err := ParseRegister(args[1])
		src_addr, src_mem := memoryRef(args[0])
		dst_addr, dst_mem := memoryRef(args[1])
		switch {
		case src_err == nil && dst_err == nil:
			// mov REG REG
			enc.emit(byte(MOV_REG_REG))
			enc.register(src)
			enc.register(dst)
		case src_err == nil && dst_mem:
			// mov REG [ADDR]
			enc.emit(byte(MOV_REG_MEM))
			enc.register(src)
			err = enc.word(dst_addr)
		case src_mem && dst_err == nil:
			// mov [ADDR] REG
			enc.emit(byte(MOV_MEM_REG))
			err = enc.word(src_addr)
			enc.register(dst)
		case !src_mem && dst_err == nil:
			// mov LIT REG
			enc.emit(byte(MOV_LIT_REG))
			err = enc.word(args[0])
			enc.register(dst)
		default:
			err = ErrTargetInvalid
		}
	case "add":
		if len(args) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var a, b Register
		a, err = ParseRegister(args[0])
		if err != nil {
			return
		}
		b, err = ParseRegister(args[1])
		if err != nil {
			return
		}
		enc.emit(byte(ADD_REG_REG))
		enc.register(a)
		enc.register(b)
	case "jne":
		if len(args) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		enc.emit(byte(JMP_NEQ))
		err = enc.word(args[0])
		if err != nil {
			return
		}
		err = enc.word(args[1])
	default:
		err = ErrOpcodeInvalid
		return
	}

	return
}
