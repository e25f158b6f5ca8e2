package target

import "errors"

// errInvalidRegister is wrapped into a descriptive error by each
// architecture's DwarfRegToArchReg when the DWARF expression evaluator names
// a register number the ABI doesn't define. Callers mark the affected
// variable unresolved and continue enumerating the rest.
var errInvalidRegister = errors.New("invalid register")

// IsInvalidRegister reports whether err originates from an unknown DWARF
// register number.
func IsInvalidRegister(err error) bool {
	return errors.Is(err, errInvalidRegister)
}
