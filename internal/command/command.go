// Package command implements the tagged-union command surface: a single
// Dispatch entry point that decodes a Request, drives one *engine.Engine,
// and returns a Response — the facade every front-end (CLI, HTTP, future
// GUI) consumes.
package command

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tracewell/godbg/internal/breakpoint"
	"github.com/tracewell/godbg/internal/disasm"
	"github.com/tracewell/godbg/internal/dwarfidx"
	"github.com/tracewell/godbg/internal/engine"
	"github.com/tracewell/godbg/internal/target"
	"github.com/tracewell/godbg/internal/variable"
)

// Kind names one supported command.
type Kind string

const (
	KindContinue           Kind = "continue"
	KindStepInstruction    Kind = "step_instruction"
	KindStepIn             Kind = "step_in"
	KindStepOut            Kind = "step_out"
	KindGetRegister        Kind = "get_register"
	KindProgramCounter     Kind = "program_counter"
	KindRead               Kind = "read"
	KindFindFunc           Kind = "find_func"
	KindFindLine           Kind = "find_line"
	KindLocation           Kind = "location"
	KindViewSource         Kind = "view_source"
	KindBacktrace          Kind = "backtrace"
	KindReadVariables      Kind = "read_variables"
	KindDiscoverVariables  Kind = "discover_variables"
	KindSetBreakpoint      Kind = "set_breakpoint"
	KindGetBreakpoints     Kind = "get_breakpoints"
	KindDeleteBreakpoint   Kind = "delete_breakpoint"
	KindGetFunctions       Kind = "get_functions"
	KindGetFile            Kind = "get_file"
	KindDebugMeta          Kind = "debug_meta"
	KindMaps               Kind = "maps"
	KindDisassemble        Kind = "disassemble"
	KindDumpDwarf          Kind = "dump_dwarf"
	KindQuit               Kind = "quit"
)

// ErrInvalidCommand is returned for an unrecognized Kind or a Kind missing
// its required argument.
var ErrInvalidCommand = errors.New("invalid command")

// ErrQuit is returned by Dispatch for a Quit request, signaling the
// top-level loop (cmd/godbg or internal/httpapi) to terminate.
var ErrQuit = errors.New("quit requested")

// BreakpointPoint names a breakpoint by exactly one of name, address, or
// file/line.
type BreakpointPoint struct {
	Name    string  `json:"name,omitempty"`
	Address *uint64 `json:"address,omitempty"`
	File    string  `json:"file,omitempty"`
	Line    int     `json:"line,omitempty"`
}

// Request is the tagged union of every command argument.
type Request struct {
	Kind Kind `json:"kind"`

	Address    uint64          `json:"address,omitempty"`
	Name       string          `json:"name,omitempty"`
	Line       int             `json:"line,omitempty"`
	File       string          `json:"file,omitempty"`
	Path       string          `json:"path,omitempty"`
	Window     int             `json:"window,omitempty"`
	Breakpoint BreakpointPoint `json:"breakpoint,omitempty"`
}

// Response is the tagged union of every command result.
type Response struct {
	Kind Kind `json:"kind"`

	Registers           *target.Registers             `json:"registers,omitempty"`
	U64                 *uint64                        `json:"u64,omitempty"`
	Function            *dwarfidx.FunctionMeta         `json:"function,omitempty"`
	Functions           []dwarfidx.FunctionMeta        `json:"functions,omitempty"`
	Location            *dwarfidx.Location             `json:"location,omitempty"`
	SourceLines         []engine.SourceLine            `json:"source_lines,omitempty"`
	Frames              []engine.Frame                 `json:"frames,omitempty"`
	Variables           []variable.Variable            `json:"variables,omitempty"`
	DiscoveredVariables []variable.DiscoveredVariable  `json:"discovered_variables,omitempty"`
	Breakpoints         []breakpoint.Breakpoint        `json:"breakpoints,omitempty"`
	DebugMeta           *dwarfidx.DebugMeta            `json:"debug_meta,omitempty"`
	Maps                []variable.MemoryMap           `json:"maps,omitempty"`
	Text                string                         `json:"text,omitempty"`
}

// Dispatcher binds a Dispatch entry point to one engine and one
// disassembly syntax preference, guarding every call with a mutex — the
// HTTP server is single-threaded by contract, but the lock makes that an
// enforced invariant rather than a convention.
type Dispatcher struct {
	mu     sync.Mutex
	eng    *engine.Engine
	syntax disasm.Syntax
}

// NewDispatcher binds eng and the configured disassembly syntax.
func NewDispatcher(eng *engine.Engine, syntax disasm.Syntax) *Dispatcher {
	return &Dispatcher{eng: eng, syntax: syntax}
}

// Dispatch decodes req.Kind and drives the bound engine, returning a
// Response tagged with the same Kind. Failures are reported as a
// structured error, never as a silent no-op.
func (d *Dispatcher) Dispatch(req Request) (Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp := Response{Kind: req.Kind}
	e := d.eng

	switch req.Kind {
	case KindContinue:
		return resp, e.ContinueExec()

	case KindStepInstruction:
		return resp, e.StepInstruction()

	case KindStepIn:
		return resp, e.StepIn()

	case KindStepOut:
		return resp, e.StepOut()

	case KindGetRegister:
		regs := e.Registers()
		resp.Registers = &regs
		return resp, nil

	case KindProgramCounter:
		pc := e.ProgramCounter()
		resp.U64 = &pc
		return resp, nil

	case KindRead:
		word, err := e.ReadWord(req.Address)
		if err != nil {
			return resp, err
		}
		resp.U64 = &word
		return resp, nil

	case KindFindFunc:
		if req.Name == "" {
			return resp, fmt.Errorf("find_func: missing name: %w", ErrInvalidCommand)
		}
		fn, err := e.Index().FindFunction(req.Name)
		if err != nil {
			return resp, err
		}
		resp.Function = &fn
		return resp, nil

	case KindFindLine:
		if req.File == "" {
			return resp, fmt.Errorf("find_line: missing filename: %w", ErrInvalidCommand)
		}
		addr, err := e.Index().FindAddress(req.File, req.Line)
		if err != nil {
			return resp, err
		}
		resp.U64 = &addr
		return resp, nil

	case KindLocation:
		loc, err := e.Index().FindLocation(e.ProgramCounter())
		if err != nil {
			return resp, err
		}
		resp.Location = &loc
		return resp, nil

	case KindViewSource:
		lines, err := e.ViewSource(req.Window)
		if err != nil {
			return resp, err
		}
		resp.SourceLines = lines
		return resp, nil

	case KindBacktrace:
		frames, err := e.Backtrace()
		if err != nil {
			return resp, err
		}
		resp.Frames = frames
		return resp, nil

	case KindReadVariables:
		vars, err := e.ReadVariables()
		if err != nil {
			return resp, err
		}
		resp.Variables = vars
		return resp, nil

	case KindDiscoverVariables:
		if req.Name == "" {
			return resp, fmt.Errorf("discover_variables: missing name: %w", ErrInvalidCommand)
		}
		discovered, err := e.DiscoverVariables(req.Name)
		if err != nil {
			return resp, err
		}
		resp.DiscoveredVariables = discovered
		return resp, nil

	case KindSetBreakpoint:
		bp, err := d.setBreakpoint(req.Breakpoint)
		if err != nil {
			return resp, err
		}
		resp.Breakpoints = []breakpoint.Breakpoint{*bp}
		return resp, nil

	case KindGetBreakpoints:
		for _, bp := range e.GetBreakpoints() {
			resp.Breakpoints = append(resp.Breakpoints, *bp)
		}
		return resp, nil

	case KindDeleteBreakpoint:
		return resp, e.DeleteBreakpoint(req.Address)

	case KindGetFunctions:
		resp.Functions = e.Index().AllFunctions()
		return resp, nil

	case KindGetFile:
		if req.Path == "" {
			return resp, fmt.Errorf("get_file: missing path: %w", ErrInvalidCommand)
		}
		text, err := e.GetFile(req.Path)
		if err != nil {
			return resp, err
		}
		resp.Text = text
		return resp, nil

	case KindDebugMeta:
		meta := e.Index().DebugMeta()
		resp.DebugMeta = &meta
		return resp, nil

	case KindMaps:
		maps, err := e.Maps()
		if err != nil {
			return resp, err
		}
		resp.Maps = maps
		return resp, nil

	case KindDisassemble:
		text, err := d.disassemble()
		if err != nil {
			return resp, err
		}
		resp.Text = text
		return resp, nil

	case KindDumpDwarf:
		resp.Text = dumpDwarf(e.Index())
		return resp, nil

	case KindQuit:
		if err := e.Quit(); err != nil {
			return resp, err
		}
		return resp, ErrQuit

	default:
		return resp, fmt.Errorf("%s: %w", req.Kind, ErrInvalidCommand)
	}
}

func (d *Dispatcher) setBreakpoint(point BreakpointPoint) (*breakpoint.Breakpoint, error) {
	e := d.eng
	switch {
	case point.Name != "":
		return e.SetBreakpointByName(point.Name)
	case point.Address != nil:
		return e.SetBreakpointByAddress(*point.Address)
	case point.File != "":
		return e.SetBreakpointByLocation(point.File, point.Line)
	default:
		return nil, fmt.Errorf("set_breakpoint: one of name/address/file+line is required: %w", ErrInvalidCommand)
	}
}
