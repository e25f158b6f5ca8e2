package command

import (
	"debug/dwarf"
	"fmt"
	"strings"

	"github.com/tracewell/godbg/internal/disasm"
	"github.com/tracewell/godbg/internal/dwarfidx"
)

// disassemble renders the instructions of the function enclosing the
// current PC, decorating each one with its enclosing source line when
// known.
func (d *Dispatcher) disassemble() (string, error) {
	e := d.eng
	fn, err := e.Index().FunctionAt(e.ProgramCounter())
	if err != nil {
		return "", err
	}
	if !fn.HasPC() {
		return "", fmt.Errorf("disassemble: %s has no address range", fn.Name)
	}

	code, err := e.ReadBytes(fn.LowPC, int(fn.HighPC))
	if err != nil {
		return "", err
	}

	lookup := func(addr uint64) (string, int, bool) {
		loc, err := e.Index().FindLocation(addr)
		if err != nil {
			return "", 0, false
		}
		return loc.File, loc.Line, true
	}

	insts, err := disasm.Disassemble(code, fn.LowPC, d.syntax, lookup)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", fn.Name)
	for _, inst := range insts {
		b.WriteString(inst.Format())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// dumpDwarf renders every DIE grouped by its enclosing compile unit,
// indented by nesting depth.
func dumpDwarf(idx *dwarfidx.Index) string {
	var b strings.Builder

	r := idx.Reader()
	var depth int
	var inCU bool
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag == 0 {
			depth--
			continue
		}

		if entry.Tag == dwarf.TagCompileUnit {
			if inCU {
				b.WriteByte('\n')
			}
			name, _ := entry.Val(dwarf.AttrName).(string)
			fmt.Fprintf(&b, "compile unit %q:\n", name)
			inCU = true
			depth = 0
		} else {
			fmt.Fprintf(&b, "%s%s @%#x %s\n", strings.Repeat("  ", depth+1), entry.Tag, entry.Offset, dieSummary(entry))
		}

		if entry.Children {
			depth++
		}
	}
	return b.String()
}

func dieSummary(entry *dwarf.Entry) string {
	if name, ok := entry.Val(dwarf.AttrName).(string); ok {
		return name
	}
	return ""
}
