package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/godbg/internal/breakpoint"
	"github.com/tracewell/godbg/internal/command"
	"github.com/tracewell/godbg/internal/dwarfidx"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid command", command.ErrInvalidCommand, http.StatusBadRequest},
		{"function not found", dwarfidx.ErrFunctionNotFound, http.StatusNotFound},
		{"no function at pc", dwarfidx.ErrNoFunctionAtPC, http.StatusNotFound},
		{"no breakpoint found", breakpoint.ErrNoBreakpointFound, http.StatusNotFound},
		{"breakpoint invalid state", breakpoint.ErrBreakpointInvalidState, http.StatusConflict},
		{"breakpoint exists", breakpoint.ErrBreakpointExists, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}

func TestRequestSchemaHasKindField(t *testing.T) {
	schema := requestSchema()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema properties missing or wrong type")
	_, ok = props["kind"]
	require.True(t, ok, "request schema missing required \"kind\" property")
}
