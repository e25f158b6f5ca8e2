package engine

import (
	"errors"
	"fmt"

	"github.com/tracewell/godbg/internal/breakpoint"
)

// StepInstruction advances the child by exactly one machine instruction.
// If a breakpoint is installed and enabled at the current PC, it performs
// the step-over-breakpoint sequence so the trap byte is never the
// instruction actually executed.
func (e *Engine) StepInstruction() error {
	pc := e.ProgramCounter()
	if bp, ok := e.bp.Get(pc); ok && bp.Enabled {
		return e.stepOverBreakpoint(bp)
	}
	if err := e.tracer.SingleStep(); err != nil {
		return err
	}
	_, err := e.waitAndSync()
	return err
}

// stepOverBreakpoint implements the atomic disable → single-step → wait →
// re-enable sequence: any failure mid-sequence must leave the trap
// re-installed before surfacing the error.
func (e *Engine) stepOverBreakpoint(bp *breakpoint.Breakpoint) error {
	if err := e.bp.Disable(bp.Address); err != nil {
		return err
	}

	reenable := func() error {
		return e.bp.Enable(bp.Address)
	}

	if err := e.tracer.SingleStep(); err != nil {
		if reErr := reenable(); reErr != nil {
			return fmt.Errorf("%w (and re-enabling breakpoint failed: %v)", err, reErr)
		}
		return err
	}
	if _, err := e.waitAndSync(); err != nil {
		if reErr := reenable(); reErr != nil {
			return fmt.Errorf("%w (and re-enabling breakpoint failed: %v)", err, reErr)
		}
		return err
	}
	return reenable()
}

// StepIn steps at source-line granularity: it repeatedly steps one
// instruction until the PC maps to a different (file, line) than where it
// started, or the PC becomes unmappable.
func (e *Engine) StepIn() error {
	startLoc, startErr := e.idx.FindLocation(e.ProgramCounter())

	for {
		if err := e.StepInstruction(); err != nil {
			return err
		}
		if e.state == StateExited {
			return nil
		}
		loc, err := e.idx.FindLocation(e.ProgramCounter())
		if err != nil {
			// PC became unmappable: stop.
			return nil
		}
		if startErr != nil {
			// No starting location to compare against: any mappable
			// line ends the step.
			return nil
		}
		if loc.File != startLoc.File || loc.Line != startLoc.Line {
			return nil
		}
	}
}

// StepOut installs an ephemeral breakpoint at the return address found at
// [base_pointer + word_size], continues, and removes the ephemeral
// breakpoint once hit. A pre-existing permanent breakpoint at that address
// is left in place rather than removed.
func (e *Engine) StepOut() error {
	wordSize := uint64(e.arch.WordSize())
	retAddr, err := e.tracer.ReadWord(uintptr(e.curRegs.BasePointer + wordSize))
	if err != nil {
		return fmt.Errorf("engine: reading return address: %w", err)
	}

	_, alreadyTracked := e.bp.Get(retAddr)
	ephemeral := !alreadyTracked

	if ephemeral {
		if _, err := e.installBreakpointAt(retAddr); err != nil {
			return err
		}
		if err := e.bp.Enable(retAddr); err != nil {
			return err
		}
	} else if bp, _ := e.bp.Get(retAddr); !bp.Enabled {
		if err := e.bp.Enable(retAddr); err != nil {
			return err
		}
	}

	if err := e.ContinueExec(); err != nil {
		return err
	}

	if ephemeral {
		if e.state != StateExited {
			if bp, ok := e.bp.Get(retAddr); ok && bp.Enabled {
				if err := e.bp.Delete(retAddr); err != nil {
					return err
				}
			} else {
				if err := e.bp.Delete(retAddr); err != nil && !errors.Is(err, breakpoint.ErrNoBreakpointFound) {
					return err
				}
			}
		}
	}
	return nil
}

// ContinueExec resumes the child, stepping over a breakpoint at the
// current PC first so its trap byte does not immediately re-trap, then
// issuing a plain continue.
func (e *Engine) ContinueExec() error {
	pc := e.ProgramCounter()
	if bp, ok := e.bp.Get(pc); ok && bp.Enabled {
		if err := e.stepOverBreakpoint(bp); err != nil {
			return err
		}
		if e.state == StateExited {
			return nil
		}
	}

	if err := e.tracer.ContinueExec(); err != nil {
		return err
	}
	_, err := e.waitAndSync()
	return err
}
