// Package engine implements the execution controller: it owns the traced
// child, the DWARF index, the breakpoint table, and the variable resolver,
// and orchestrates them into the observed state machine
// Started → Stopped(reason) → {Running → Stopped} … → Exited.
package engine

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tracewell/godbg/internal/breakpoint"
	"github.com/tracewell/godbg/internal/dwarfidx"
	"github.com/tracewell/godbg/internal/target"
	"github.com/tracewell/godbg/internal/variable"
)

// State is the engine's observed child-process state.
type State int

const (
	StateStarted State = iota
	StateStopped
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Engine bundles all process-wide state that must be owned by one value:
// the pid, the breakpoint table, and the DWARF index. It is driven
// exclusively by the top-level command loop.
type Engine struct {
	path string
	pid  int
	cmd  *exec.Cmd

	tracer *target.Tracer
	arch   target.Target

	idx      *dwarfidx.Index
	bp       *breakpoint.Table
	resolver *variable.Resolver

	state    State
	exitCode int
	curFull  any
	curRegs  target.Registers

	log *slog.Logger
}

// patcherAdapter satisfies breakpoint.Patcher by delegating to the
// package-level, dependency-injected target.PatchTrap/RestoreOriginal
// recipe against the engine's own tracer.
type patcherAdapter struct {
	tracer *target.Tracer
	arch   target.Target
}

func (p *patcherAdapter) PatchTrap(addr uintptr) ([]byte, error) {
	return target.PatchTrap(p.tracer, p.arch, addr)
}

func (p *patcherAdapter) RestoreOriginal(addr uintptr, original []byte) error {
	return target.RestoreOriginal(p.tracer, p.arch, addr, original)
}

// Launch forks, has the child call PTRACE_TRACEME and exec path with
// argv=[path], and waits for the initial exec stop. ASLR is disabled for
// the duration of the fork so the child's address space is reproducible
// across runs; the parent's own personality is restored when Launch returns.
func Launch(path string, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	// ptrace(2) requires every call after PTRACE_TRACEME to come from the
	// same OS thread that observed the child's initial stop.
	runtime.LockOSThread()

	idx, err := dwarfidx.Load(path)
	if err != nil {
		return nil, fmt.Errorf("engine: loading debug info: %w", err)
	}

	oldPersonality, err := unix.Personality(0xffffffff)
	if err == nil {
		defer unix.Personality(uint(oldPersonality))
		if _, err := unix.Personality(uint(oldPersonality) | unix.ADDR_NO_RANDOMIZE); err != nil {
			log.Warn("disabling ASLR failed, continuing with randomized layout", "error", err)
		}
	} else {
		log.Warn("reading personality failed, leaving ASLR as-is", "error", err)
	}

	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine: starting %s: %w", path, err)
	}

	pid := cmd.Process.Pid
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("engine: waiting for initial exec stop: %w", err)
	}

	arch := target.New()
	e := &Engine{
		path:     path,
		pid:      pid,
		cmd:      cmd,
		tracer:   target.NewTracer(pid, arch),
		arch:     arch,
		idx:      idx,
		bp:       nil,
		state:    StateStarted,
		log:      log.With("pid", pid, "binary", path),
	}
	e.bp = breakpoint.New(&patcherAdapter{tracer: e.tracer, arch: arch})
	e.resolver = variable.New(idx, e, e)

	if err := e.refreshRegisters(); err != nil {
		return nil, fmt.Errorf("engine: reading initial registers: %w", err)
	}
	e.state = StateStopped
	e.log.Info("child stopped at exec", "pc", fmt.Sprintf("%#x", e.curRegs.InstructionPointer))
	return e, nil
}

// Path returns the path of the binary under debug.
func (e *Engine) Path() string { return e.path }

// Pid returns the traced child's process id.
func (e *Engine) Pid() int { return e.pid }

// State returns the engine's current observed state.
func (e *Engine) State() State { return e.state }

// ExitCode returns the child's exit status once State() == StateExited.
func (e *Engine) ExitCode() int { return e.exitCode }

// Index exposes the immutable DWARF index for command handlers that need
// direct DIE-level access (DumpDwarf, GetFunctions).
func (e *Engine) Index() *dwarfidx.Index { return e.idx }

// Breakpoints exposes the breakpoint table for listing/deleting.
func (e *Engine) Breakpoints() *breakpoint.Table { return e.bp }

// Registers returns the portable register projection captured at the last
// stop.
func (e *Engine) Registers() target.Registers { return e.curRegs }

// ProgramCounter returns the instruction pointer captured at the last stop.
func (e *Engine) ProgramCounter() uint64 { return e.curRegs.InstructionPointer }

// ReadWord implements variable.MemReader and breakpoint-adjacent raw reads.
func (e *Engine) ReadWord(addr uint64) (uint64, error) {
	return e.tracer.ReadWord(uintptr(addr))
}

// ReadBytes implements variable.MemReader, assembling an arbitrary byte run
// out of word-granularity ptrace reads.
func (e *Engine) ReadBytes(addr uint64, size int) ([]byte, error) {
	if size <= 0 {
		return []byte{}, nil
	}
	base := addr - addr%8
	offset := int(addr - base)
	out := make([]byte, 0, offset+size+8)
	for len(out) < offset+size {
		word, err := e.tracer.ReadWord(uintptr(base))
		if err != nil {
			return nil, err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], word)
		out = append(out, buf[:]...)
		base += 8
	}
	return out[offset : offset+size], nil
}

// FrameBase implements variable.RegisterSource.
func (e *Engine) FrameBase() (uint64, error) {
	return e.arch.FrameBaseRegister(e.curRegs, e.curFull)
}

// DwarfRegister implements variable.RegisterSource.
func (e *Engine) DwarfRegister(n int) (uint64, error) {
	return e.arch.DwarfRegToArchReg(n, e.curFull)
}

// Resolver exposes the variable resolver for ReadVariables/DiscoverVariables
// command handlers.
func (e *Engine) Resolver() *variable.Resolver { return e.resolver }

func (e *Engine) refreshRegisters() error {
	full, proj, err := e.tracer.GetRegisters()
	if err != nil {
		return err
	}
	e.curFull = full
	e.curRegs = proj
	return nil
}

// waitAndSync blocks for the next stop, refreshes cached registers, and
// applies the x86_64 post-trap PC rewind. It must be called exactly once
// after every single_step/continue_exec issue.
func (e *Engine) waitAndSync() (target.StopStatus, error) {
	status, err := e.tracer.WaitForStop()
	if err != nil {
		return status, err
	}

	switch status.Reason {
	case target.StopExited:
		e.state = StateExited
		e.exitCode = status.ExitCode
		e.log.Info("child exited", "code", status.ExitCode)
		return status, nil
	case target.StopSignaled:
		e.state = StateExited
		e.log.Info("child terminated by signal", "signal", status.Signal)
		return status, nil
	}

	if err := e.refreshRegisters(); err != nil {
		return status, err
	}

	if status.Reason == target.StopTrapBreakpoint {
		if err := e.rewindPastTrap(); err != nil {
			return status, err
		}
	}

	e.state = StateStopped
	return status, nil
}

// rewindPastTrap decrements the cached PC by the trap encoding's length and
// pushes it back to the child. Only x86_64's one-byte INT3 advances PC past
// itself; aarch64's BRK leaves PC at the faulting instruction, so the trap
// byte length (1 vs 4) doubles as the "does this architecture auto-advance"
// discriminant.
func (e *Engine) rewindPastTrap() error {
	if len(e.arch.TrapBytes()) != 1 {
		return nil
	}
	newPC := e.curRegs.InstructionPointer - 1
	if err := e.arch.SetInstructionPointer(e.pid, e.curFull, newPC); err != nil {
		return err
	}
	e.curRegs.InstructionPointer = newPC
	return nil
}

// Quit kills the traced child and releases its resources, per the Quit
// command's "process exits" contract.
func (e *Engine) Quit() error {
	if e.state == StateExited {
		return nil
	}
	if err := e.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("engine: killing child: %w", err)
	}
	var ws unix.WaitStatus
	unix.Wait4(e.pid, &ws, 0, nil)
	e.state = StateExited
	return nil
}
