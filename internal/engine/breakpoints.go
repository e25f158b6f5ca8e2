package engine

import (
	"fmt"

	"github.com/tracewell/godbg/internal/breakpoint"
)

// SetBreakpointByAddress installs and enables a breakpoint at addr,
// resolving its source location from DWARF for display.
func (e *Engine) SetBreakpointByAddress(addr uint64) (*breakpoint.Breakpoint, error) {
	bp, err := e.installBreakpointAt(addr)
	if err != nil {
		return nil, err
	}
	if err := e.bp.Enable(addr); err != nil {
		return nil, err
	}
	return bp, nil
}

// SetBreakpointByName resolves name to its low_pc via the DWARF index,
// then installs and enables a breakpoint there.
func (e *Engine) SetBreakpointByName(name string) (*breakpoint.Breakpoint, error) {
	fn, err := e.idx.FindFunction(name)
	if err != nil {
		return nil, err
	}
	if !fn.HasPC() {
		return nil, fmt.Errorf("engine: function %q has no address", name)
	}
	return e.SetBreakpointByAddress(fn.LowPC)
}

// SetBreakpointByLocation resolves (file, line) to an address via the
// DWARF index, then installs and enables a breakpoint there.
func (e *Engine) SetBreakpointByLocation(file string, line int) (*breakpoint.Breakpoint, error) {
	addr, err := e.idx.FindAddress(file, line)
	if err != nil {
		return nil, err
	}
	return e.SetBreakpointByAddress(addr)
}

// DeleteBreakpoint disables (if needed) and removes the breakpoint at addr.
func (e *Engine) DeleteBreakpoint(addr uint64) error {
	return e.bp.Delete(addr)
}

// GetBreakpoints returns every tracked breakpoint.
func (e *Engine) GetBreakpoints() []*breakpoint.Breakpoint {
	return e.bp.All()
}

// installBreakpointAt reads the original instruction bytes at addr and
// resolves its source location, then records a disabled table entry. The
// breakpoint package stays target-agnostic per its own doc comment; this
// is the one place that bridges it to a live ptrace read.
func (e *Engine) installBreakpointAt(addr uint64) (*breakpoint.Breakpoint, error) {
	word, err := e.tracer.ReadWord(uintptr(addr))
	if err != nil {
		return nil, fmt.Errorf("engine: reading original bytes at %#x: %w", addr, err)
	}
	trapLen := len(e.arch.TrapBytes())
	original := make([]byte, trapLen)
	for i := 0; i < trapLen; i++ {
		original[i] = byte(word >> (8 * i))
	}

	loc := breakpoint.Location{}
	if l, err := e.idx.FindLocation(addr); err == nil {
		loc = breakpoint.Location{File: l.File, Line: l.Line, Column: l.Column}
	}

	return e.bp.Install(addr, loc, original)
}
