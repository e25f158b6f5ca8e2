package engine

import (
	"github.com/tracewell/godbg/internal/variable"
)

// ReadVariables enumerates every DW_TAG_variable DIE in the target,
// evaluating each one's location against the current register/memory
// state.
func (e *Engine) ReadVariables() ([]variable.Variable, error) {
	return e.resolver.EnumerateVariables()
}

// Maps returns the child's current memory mappings, sourced from
// /proc/<pid>/maps.
func (e *Engine) Maps() ([]variable.MemoryMap, error) {
	return variable.ReadMaps(e.pid)
}

// DiscoverVariables resolves name to a root Variable (scanning every
// DW_TAG_variable DIE for a name match), then recursively walks its type
// graph to emit every reachable sub-variable inside mapped memory.
func (e *Engine) DiscoverVariables(name string) ([]variable.DiscoveredVariable, error) {
	root, err := e.findVariableByName(name)
	if err != nil {
		return nil, err
	}
	maps, err := e.Maps()
	if err != nil {
		return nil, err
	}
	return e.resolver.Discover(root, maps), nil
}

func (e *Engine) findVariableByName(name string) (variable.Variable, error) {
	vars, err := e.resolver.EnumerateVariables()
	if err != nil {
		return variable.Variable{}, err
	}
	for _, v := range vars {
		if v.Name == name {
			return v, nil
		}
	}
	return variable.Variable{}, errVariableNotFound(name)
}

type variableNotFoundError string

func (e variableNotFoundError) Error() string {
	return "variable not found: " + string(e)
}

func errVariableNotFound(name string) error {
	return variableNotFoundError(name)
}
