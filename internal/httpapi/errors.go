package httpapi

import (
	"errors"
	"net/http"

	"github.com/tracewell/godbg/internal/breakpoint"
	"github.com/tracewell/godbg/internal/command"
	"github.com/tracewell/godbg/internal/dwarfidx"
)

// statusForError maps a command error to an HTTP status: lookup misses are
// 404, front-end validation errors are 400, state-machine misuse is 409,
// everything else surfaces as 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, command.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, dwarfidx.ErrFunctionNotFound),
		errors.Is(err, dwarfidx.ErrNoFunctionAtPC),
		errors.Is(err, dwarfidx.ErrNoSourceUnitForPC),
		errors.Is(err, dwarfidx.ErrAddressNotFound),
		errors.Is(err, breakpoint.ErrNoBreakpointFound):
		return http.StatusNotFound
	case errors.Is(err, breakpoint.ErrBreakpointInvalidState),
		errors.Is(err, breakpoint.ErrBreakpointExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
