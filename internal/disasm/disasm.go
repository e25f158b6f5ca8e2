//go:build amd64

// Package disasm renders a run of machine code as textual disassembly,
// decorated with the enclosing source line when known. It wraps
// golang.org/x/arch/x86/x86asm for instruction decoding; aarch64 has no
// such decoder in this build and is handled by disasm_unsupported.go.
package disasm

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Syntax selects the assembler dialect an Instruction is rendered in.
type Syntax int

const (
	SyntaxIntel Syntax = iota
	SyntaxATT
)

// ParseSyntax maps a config string ("intel"/"att") to a Syntax, defaulting
// to Intel on anything else.
func ParseSyntax(s string) Syntax {
	if s == "att" {
		return SyntaxATT
	}
	return SyntaxIntel
}

// ErrUnsupportedArch is returned on architectures with no wired decoder.
var ErrUnsupportedArch = errors.New("disasm: unsupported architecture")

// Instruction is one decoded instruction, optionally annotated with its
// enclosing source line.
type Instruction struct {
	Address uint64
	Length  int
	Text    string

	File      string
	Line      int
	HasSource bool
}

// LineLookup resolves an address to a source location, mirroring
// dwarfidx.Index.FindLocation without importing that package directly (disasm
// stays usable standalone).
type LineLookup func(addr uint64) (file string, line int, ok bool)

// Disassemble decodes code (mapped starting at base) into a sequence of
// instructions in the given syntax, stopping at the first undecodable byte
// run or when the buffer is exhausted.
func Disassemble(code []byte, base uint64, syntax Syntax, lookup LineLookup) ([]Instruction, error) {
	var out []Instruction
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			// Stop rather than fail the whole dump: a truncated or
			// data-interspersed tail is common at the end of a function.
			break
		}

		text := render(inst, syntax)
		addr := base + uint64(offset)

		rec := Instruction{Address: addr, Length: inst.Len, Text: text}
		if lookup != nil {
			if file, line, ok := lookup(addr); ok {
				rec.File, rec.Line, rec.HasSource = file, line, true
			}
		}
		out = append(out, rec)

		if inst.Len <= 0 {
			break // defensive: avoid an infinite loop on a zero-length decode
		}
		offset += inst.Len
	}
	return out, nil
}

func render(inst x86asm.Inst, syntax Syntax) string {
	switch syntax {
	case SyntaxATT:
		return x86asm.GNUSyntax(inst)
	default:
		return x86asm.IntelSyntax(inst)
	}
}

// Format renders one Instruction for display in a terse "addr: mnemonic"
// listing style, with a trailing source annotation when known.
func (i Instruction) Format() string {
	if i.HasSource {
		return fmt.Sprintf("%#x: %-32s ; %s:%d", i.Address, i.Text, i.File, i.Line)
	}
	return fmt.Sprintf("%#x: %s", i.Address, i.Text)
}
