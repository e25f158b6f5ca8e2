package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/tracewell/godbg/internal/command"
	"github.com/tracewell/godbg/internal/engine"
)

var (
	colorPrompt = color.New(color.FgBlue, color.Bold)
	colorError  = color.New(color.FgRed, color.Bold)
	colorSource = color.New(color.FgHiCyan)
	colorAddr   = color.New(color.FgMagenta)
	colorValue  = color.New(color.FgWhite, color.Bold)
)

// term drives the interactive prompt against one Dispatcher, reading lines
// from stdin with bufio rather than a readline library.
type term struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerm(in io.Reader, out io.Writer) *term {
	return &term{in: bufio.NewReader(in), out: out}
}

func (t *term) promptForInput() (string, error) {
	colorPrompt.Fprint(t.out, "dbg> ")
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runREPL(dispatcher *command.Dispatcher, eng *engine.Engine) error {
	t := newTerm(os.Stdin, os.Stdout)
	fmt.Fprintf(t.out, "godbg — debugging %s (pid %d)\n", eng.Path(), eng.Pid())

	for {
		line, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		req, err := parseCommand(line)
		if err != nil {
			colorError.Fprintf(t.out, "%v\n", err)
			continue
		}

		resp, err := dispatcher.Dispatch(req)
		if err == command.ErrQuit {
			return nil
		}
		if err != nil {
			colorError.Fprintf(t.out, "%v\n", err)
			continue
		}
		printResponse(t.out, resp)
	}
}

// parseCommand turns one typed line into a command.Request. It recognizes a
// small fixed vocabulary; everything else is ErrInvalidCommand.
func parseCommand(line string) (command.Request, error) {
	fields := strings.Fields(line)
	name := fields[0]
	args := fields[1:]

	switch name {
	case "continue", "c":
		return command.Request{Kind: command.KindContinue}, nil
	case "stepi", "si":
		return command.Request{Kind: command.KindStepInstruction}, nil
	case "step", "s":
		return command.Request{Kind: command.KindStepIn}, nil
	case "out", "finish":
		return command.Request{Kind: command.KindStepOut}, nil
	case "regs":
		return command.Request{Kind: command.KindGetRegister}, nil
	case "pc":
		return command.Request{Kind: command.KindProgramCounter}, nil
	case "bt", "backtrace":
		return command.Request{Kind: command.KindBacktrace}, nil
	case "list":
		window := 5
		if len(args) == 1 {
			w, err := strconv.Atoi(args[0])
			if err == nil {
				window = w
			}
		}
		return command.Request{Kind: command.KindViewSource, Window: window}, nil
	case "print", "vars":
		if len(args) == 0 {
			return command.Request{Kind: command.KindReadVariables}, nil
		}
		return command.Request{Kind: command.KindDiscoverVariables, Name: args[0]}, nil
	case "break", "b":
		if len(args) == 0 {
			return command.Request{}, fmt.Errorf("break: need a function name, file:line, or address: %w", command.ErrInvalidCommand)
		}
		return parseBreakpointArg(args[0])
	case "breakpoints":
		return command.Request{Kind: command.KindGetBreakpoints}, nil
	case "delete":
		if len(args) != 1 {
			return command.Request{}, fmt.Errorf("delete: need an address: %w", command.ErrInvalidCommand)
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
		if err != nil {
			return command.Request{}, fmt.Errorf("delete: %v: %w", err, command.ErrInvalidCommand)
		}
		return command.Request{Kind: command.KindDeleteBreakpoint, Address: addr}, nil
	case "funcs":
		return command.Request{Kind: command.KindGetFunctions}, nil
	case "meta":
		return command.Request{Kind: command.KindDebugMeta}, nil
	case "maps":
		return command.Request{Kind: command.KindMaps}, nil
	case "disas", "disassemble":
		return command.Request{Kind: command.KindDisassemble}, nil
	case "dwarf":
		return command.Request{Kind: command.KindDumpDwarf}, nil
	case "quit", "q", "exit":
		return command.Request{Kind: command.KindQuit}, nil
	default:
		return command.Request{}, fmt.Errorf("%s: %w", name, command.ErrInvalidCommand)
	}
}

func parseBreakpointArg(arg string) (command.Request, error) {
	if addr, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 64); err == nil && strings.HasPrefix(arg, "0x") {
		return command.Request{Kind: command.KindSetBreakpoint, Breakpoint: command.BreakpointPoint{Address: &addr}}, nil
	}
	if file, lineStr, ok := strings.Cut(arg, ":"); ok {
		line, err := strconv.Atoi(lineStr)
		if err != nil {
			return command.Request{}, fmt.Errorf("break: bad line %q: %w", lineStr, command.ErrInvalidCommand)
		}
		return command.Request{Kind: command.KindSetBreakpoint, Breakpoint: command.BreakpointPoint{File: file, Line: line}}, nil
	}
	return command.Request{Kind: command.KindSetBreakpoint, Breakpoint: command.BreakpointPoint{Name: arg}}, nil
}

func printResponse(out io.Writer, resp command.Response) {
	switch resp.Kind {
	case command.KindViewSource:
		for _, l := range resp.SourceLines {
			marker := "  "
			if l.IsCurrent {
				marker = "=>"
			}
			colorSource.Fprintf(out, "%s %4d  %s\n", marker, l.LineNo, l.Text)
		}
	case command.KindBacktrace:
		for i, f := range resp.Frames {
			colorAddr.Fprintf(out, "#%d  %#x", i, f.PC)
			fmt.Fprintf(out, "  %s\n", f.Function.Name)
		}
	case command.KindGetRegister:
		if resp.Registers != nil {
			colorValue.Fprintf(out, "pc=%#x sp=%#x bp=%#x\n",
				resp.Registers.InstructionPointer, resp.Registers.StackPointer, resp.Registers.BasePointer)
		}
	case command.KindProgramCounter, command.KindRead:
		if resp.U64 != nil {
			colorAddr.Fprintf(out, "%#x\n", *resp.U64)
		}
	case command.KindReadVariables:
		for _, v := range resp.Variables {
			fmt.Fprintf(out, "%s: %s\n", v.Name, v.Type.Name)
		}
	case command.KindDiscoverVariables:
		for _, v := range resp.DiscoveredVariables {
			fmt.Fprintf(out, "%s = % x\n", v.Path, v.Window)
		}
	case command.KindGetBreakpoints, command.KindSetBreakpoint:
		for _, bp := range resp.Breakpoints {
			colorAddr.Fprintf(out, "%#x", bp.Address)
			fmt.Fprintf(out, "  %s:%d\n", bp.Location.File, bp.Location.Line)
		}
	case command.KindGetFunctions:
		for _, fn := range resp.Functions {
			fmt.Fprintf(out, "%s  %#x\n", fn.Name, fn.LowPC)
		}
	default:
		if resp.Text != "" {
			fmt.Fprintln(out, resp.Text)
		}
	}
}
