package target

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StopReason classifies why wait_for_stop returned.
type StopReason int

const (
	StopUnknown StopReason = iota
	StopExited
	StopSignaled
	StopTrapBreakpoint // SIGTRAP, si_code == 128: a breakpoint trap
	StopSignal         // stopped with some other signal
)

// StopStatus is the result of wait_for_stop.
type StopStatus struct {
	Reason   StopReason
	ExitCode int
	Signal   unix.Signal
}

// kernelTrapSicode is the si_code the kernel reports for a trap delivered by
// the breakpoint instruction itself, as opposed to a single-step trap or a
// signal the tracee raised on its own.
const kernelTrapSicode = 128

// Tracer drives the ptrace primitives against one traced child. It holds no
// breakpoint or DWARF state; that belongs to higher layers.
type Tracer struct {
	Pid    int
	target Target
}

// NewTracer attaches tracing primitives to an already-running, already-traced
// child (the child must have called PTRACE_TRACEME before exec, or the
// tracer must have PTRACE_ATTACH'd and already waited for the initial stop).
func NewTracer(pid int, t Target) *Tracer {
	return &Tracer{Pid: pid, target: t}
}

// ReadWord reads one machine word from the child's address space.
func (tr *Tracer) ReadWord(addr uintptr) (uint64, error) {
	buf := make([]byte, 8)
	n, err := unix.PtracePeekData(tr.Pid, addr, buf)
	if err != nil {
		return 0, &TraceError{Op: "PEEKDATA", Err: err}
	}
	if n != len(buf) {
		return 0, &TraceError{Op: "PEEKDATA", Err: fmt.Errorf("short read: got %d of %d bytes", n, len(buf))}
	}
	return littleEndianUint64(buf), nil
}

// WriteWord writes one machine word to the child's address space.
func (tr *Tracer) WriteWord(addr uintptr, word uint64) error {
	buf := littleEndianBytes(word)
	_, err := unix.PtracePokeData(tr.Pid, addr, buf)
	if err != nil {
		return &TraceError{Op: "POKEDATA", Err: err}
	}
	return nil
}

// GetRegisters copies the user-register bank out of the child. The returned
// full value is architecture-specific (e.g. *unix.PtraceRegs) and is the
// value callers must pass back into SetRegisters.
func (tr *Tracer) GetRegisters() (full any, proj Registers, err error) {
	full, proj, err = tr.target.GetRegisters(tr.Pid)
	if err != nil {
		return nil, Registers{}, &TraceError{Op: "GETREGS", Err: err}
	}
	return full, proj, nil
}

// SetRegisters copies full back into the child.
func (tr *Tracer) SetRegisters(full any) error {
	if err := tr.target.SetRegisters(tr.Pid, full); err != nil {
		return &TraceError{Op: "SETREGS", Err: err}
	}
	return nil
}

// SingleStep executes exactly one instruction. The caller must call
// WaitForStop afterward.
func (tr *Tracer) SingleStep() error {
	if err := unix.PtraceSingleStep(tr.Pid); err != nil {
		return &TraceError{Op: "SINGLESTEP", Err: err}
	}
	return nil
}

// ContinueExec resumes the child with no pending signal. The caller must
// call WaitForStop afterward.
func (tr *Tracer) ContinueExec() error {
	if err := unix.PtraceCont(tr.Pid, 0); err != nil {
		return &TraceError{Op: "CONT", Err: err}
	}
	return nil
}

// WaitForStop blocks until the child reaches a stop or exits.
func (tr *Tracer) WaitForStop() (StopStatus, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(tr.Pid, &ws, 0, nil)
	if err != nil {
		return StopStatus{}, &TraceError{Op: "WAIT4", Err: err}
	}

	switch {
	case ws.Exited():
		return StopStatus{Reason: StopExited, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		return StopStatus{Reason: StopSignaled, Signal: ws.Signal()}, nil
	case ws.Stopped():
		sig := ws.StopSignal()
		if sig == unix.SIGTRAP {
			info, err := tr.GetSignalInfo()
			if err == nil && info.Code == kernelTrapSicode {
				return StopStatus{Reason: StopTrapBreakpoint, Signal: sig}, nil
			}
		}
		return StopStatus{Reason: StopSignal, Signal: sig}, nil
	default:
		return StopStatus{Reason: StopUnknown}, nil
	}
}

// SignalInfo is the subset of siginfo_t the engine needs to disambiguate a
// SIGTRAP's origin.
type SignalInfo struct {
	Signo int32
	Code  int32
}

// GetSignalInfo returns the auxiliary signal info for the most recent stop.
func (tr *Tracer) GetSignalInfo() (SignalInfo, error) {
	var raw unix.Siginfo
	if err := unix.PtraceGetSiginfo(tr.Pid, &raw); err != nil {
		return SignalInfo{}, &TraceError{Op: "GETSIGINFO", Err: err}
	}
	return SignalInfo{Signo: raw.Signo, Code: raw.Code}, nil
}

func littleEndianUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func littleEndianBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
