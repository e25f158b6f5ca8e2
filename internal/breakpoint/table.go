// Package breakpoint tracks installed breakpoints by address: at most one
// Breakpoint per address, with an enabled flag and the original
// instruction bytes needed to restore the patched memory.
package breakpoint

import (
	"errors"
	"fmt"
)

// ErrBreakpointInvalidState is returned when Enable/Disable is called
// against the precondition; it indicates a controller bug.
var ErrBreakpointInvalidState = errors.New("breakpoint invalid state")

// ErrNoBreakpointFound is returned by operations addressing a breakpoint
// that does not exist. It is informational when it surfaces from a
// step-over-breakpoint request with no breakpoint present.
var ErrNoBreakpointFound = errors.New("no breakpoint found")

// ErrBreakpointExists is returned by Install when the address is already
// tracked.
var ErrBreakpointExists = errors.New("breakpoint already exists at address")

// Location is the source position resolved at install time.
type Location struct {
	File   string
	Line   int
	Column int
}

// Breakpoint is one tracked software breakpoint.
type Breakpoint struct {
	Address       uint64
	OriginalBytes []byte
	Enabled       bool
	Location      Location
}

// Patcher is the byte-patching capability the table needs from
// internal/target, factored out so the table can be unit-tested without
// ptrace.
type Patcher interface {
	PatchTrap(addr uintptr) (original []byte, err error)
	RestoreOriginal(addr uintptr, original []byte) error
}

// Table indexes breakpoints by address, guaranteeing at most one record
// per address.
type Table struct {
	patcher Patcher
	byAddr  map[uint64]*Breakpoint
}

// New returns an empty breakpoint table bound to patcher for the byte
// patching side effects of Enable/Disable.
func New(patcher Patcher) *Table {
	return &Table{patcher: patcher, byAddr: make(map[uint64]*Breakpoint)}
}

// Install records a new, initially disabled breakpoint at address with the
// given resolved source location and original bytes already read from the
// child (the caller — internal/engine — owns reading them, since that
// requires a stopped target and this package stays target-agnostic).
func (t *Table) Install(address uint64, loc Location, originalBytes []byte) (*Breakpoint, error) {
	if _, exists := t.byAddr[address]; exists {
		return nil, fmt.Errorf("install %#x: %w", address, ErrBreakpointExists)
	}
	bp := &Breakpoint{
		Address:       address,
		OriginalBytes: originalBytes,
		Enabled:       false,
		Location:      loc,
	}
	t.byAddr[address] = bp
	return bp, nil
}

// Enable requires the breakpoint to currently be disabled; patches the
// trap encoding into the child via the Patcher.
func (t *Table) Enable(address uint64) error {
	bp, ok := t.byAddr[address]
	if !ok {
		return fmt.Errorf("enable %#x: %w", address, ErrNoBreakpointFound)
	}
	if bp.Enabled {
		return fmt.Errorf("enable %#x: already enabled: %w", address, ErrBreakpointInvalidState)
	}
	original, err := t.patcher.PatchTrap(uintptr(address))
	if err != nil {
		return err
	}
	bp.OriginalBytes = original
	bp.Enabled = true
	return nil
}

// Disable requires the breakpoint to currently be enabled; restores the
// original bytes via the Patcher.
func (t *Table) Disable(address uint64) error {
	bp, ok := t.byAddr[address]
	if !ok {
		return fmt.Errorf("disable %#x: %w", address, ErrNoBreakpointFound)
	}
	if !bp.Enabled {
		return fmt.Errorf("disable %#x: already disabled: %w", address, ErrBreakpointInvalidState)
	}
	if err := t.patcher.RestoreOriginal(uintptr(address), bp.OriginalBytes); err != nil {
		// Leave the table's enabled flag untouched: the memory patch
		// failed, so the byte in the child is still the trap, and the
		// table must not claim otherwise.
		return err
	}
	bp.Enabled = false
	return nil
}

// Delete ensures the breakpoint is disabled, then removes its table entry.
func (t *Table) Delete(address uint64) error {
	bp, ok := t.byAddr[address]
	if !ok {
		return fmt.Errorf("delete %#x: %w", address, ErrNoBreakpointFound)
	}
	if bp.Enabled {
		if err := t.Disable(address); err != nil {
			return err
		}
	}
	delete(t.byAddr, address)
	return nil
}

// IsBreakpoint reports whether address is tracked, enabled or not.
func (t *Table) IsBreakpoint(address uint64) bool {
	_, ok := t.byAddr[address]
	return ok
}

// Get returns the breakpoint at address, if any.
func (t *Table) Get(address uint64) (*Breakpoint, bool) {
	bp, ok := t.byAddr[address]
	return bp, ok
}

// All returns every tracked breakpoint in unspecified order.
func (t *Table) All() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(t.byAddr))
	for _, bp := range t.byAddr {
		out = append(out, bp)
	}
	return out
}
